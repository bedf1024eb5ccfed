package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	"github.com/kailas-cloud/hwfinder/internal/domain/query"
)

// extraction is the JSON shape requested from the reasoner.
type extraction struct {
	Category      looseString   `json:"category"`
	Usage         looseString   `json:"usage"`
	Style         looseString   `json:"style"`
	Material      looseString   `json:"material"`
	Budget        looseString   `json:"budget"`
	Brand         looseString   `json:"brand"`
	SearchRequest looseBool     `json:"search_request"`
	Ambiguities   []looseString `json:"ambiguities"`
}

func (e extraction) facets() query.Facets {
	return query.Facets{
		Category: canonicalCategory(canonical(string(e.Category))),
		Usage:    canonical(string(e.Usage)),
		Style:    canonical(string(e.Style)),
		Material: canonical(string(e.Material)),
		Budget:   canonical(string(e.Budget)),
		Brand:    canonical(string(e.Brand)),
	}
}

func (e extraction) ambiguities() []string {
	var out []string
	for _, a := range e.Ambiguities {
		if v := canonical(string(a)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// looseString accepts strings, numbers, booleans and null.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = looseString(t)
	case float64:
		*s = looseString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*s = looseString(strconv.FormatBool(t))
	default:
		*s = ""
	}
	return nil
}

// looseBool accepts booleans and their common string spellings.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = looseBool(t)
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(t))
		*b = looseBool(parsed || strings.EqualFold(strings.TrimSpace(t), "yes"))
	default:
		*b = false
	}
	return nil
}

func parseExtraction(out string) (extraction, error) {
	obj, ok := FirstJSONObject(out)
	if !ok {
		return extraction{}, fmt.Errorf("no JSON object in completion: %w", domain.ErrReasonerParse)
	}
	var e extraction
	if err := json.Unmarshal([]byte(obj), &e); err != nil {
		return extraction{}, fmt.Errorf("decode extraction: %w: %w", domain.ErrReasonerParse, err)
	}
	return e, nil
}

// FirstJSONObject returns the first balanced {...} in s, ignoring braces inside strings.
func FirstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

var absent = map[string]bool{
	"": true, "null": true, "none": true, "n/a": true, "na": true,
	"unknown": true, "not specified": true, "unspecified": true, "any": true,
}

func canonical(v string) string {
	v = strings.ToLower(strings.Join(strings.Fields(v), " "))
	v = strings.Trim(v, `"'.,;`)
	if absent[v] {
		return ""
	}
	return v
}

// categorySynonyms folds common phrasings onto catalog categories.
var categorySynonyms = map[string]string{
	"handles":          "handle",
	"pulls":            "pull",
	"knobs":            "knob",
	"hinges":           "hinge",
	"grips":            "grip",
	"drawer pull":      "pull",
	"drawer pulls":     "pull",
	"cabinet pull":     "pull",
	"cabinet pulls":    "pull",
	"cabinet knob":     "knob",
	"cabinet knobs":    "knob",
	"door handles":     "door handle",
	"cabinet handles":  "cabinet handle",
	"drawer handles":   "drawer handle",
	"furniture handle": "handle",
	"cabinet hinges":   "hinge",
}

func canonicalCategory(v string) string {
	if c, ok := categorySynonyms[v]; ok {
		return c
	}
	return v
}
