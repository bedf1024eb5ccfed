package product

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// aliases maps each canonical field to the upstream keys that may carry it, in preference order.
// Keys are compared after keyKey normalization.
var aliases = map[string][]string{
	"name":             {"name", "product_name", "title", "product_title"},
	"price":            {"price", "list_price", "unit_price"},
	"image_url":        {"image_url", "image", "images", "thumbnail"},
	"product_url":      {"product_url", "url", "link", "href"},
	"description":      {"description", "short_description", "summary"},
	"sku":              {"sku", "product_code", "code", "model"},
	"dimensions":       {"dimensions", "size", "dimension"},
	"material":         {"material", "materials"},
	"finish":           {"finish", "colors", "color", "finish_color"},
	"installation":     {"installation", "installation_method", "mounting"},
	"weight":           {"weight"},
	"package_contents": {"package_contents", "contents", "package"},
	"technical_specs":  {"technical_specs", "specifications", "specs"},
	"certifications":   {"certifications", "standards"},
	"warranty":         {"warranty"},
	"category":         {"category", "product_type", "type"},
	"style":            {"style"},
}

var absentValues = map[string]struct{}{
	"":     {},
	"null": {},
	"none": {},
	"nil":  {},
	"n/a":  {},
	"na":   {},
	"-":    {},
}

var numericPrice = regexp.MustCompile(`^\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)$`)

// Normalize builds a fully populated Product from an upstream record.
// Absent or empty values become Default; search time is the elapsed seconds of the source call.
func Normalize(raw Raw, meta Meta) Product {
	flat := make(map[string]any, len(raw))
	for k, v := range raw {
		flat[keyKey(k)] = v
	}

	get := func(field string) string {
		for _, alias := range aliases[field] {
			v, ok := flat[alias]
			if !ok {
				continue
			}
			if s := stringify(v); s != "" {
				return s
			}
		}
		return Default
	}

	source := meta.Source
	if source == "" {
		source = SourceOnline
	}
	query := strings.TrimSpace(meta.Query)
	if query == "" {
		query = Default
	}

	return Product{
		name:            get("name"),
		price:           formatPrice(flat, get("price")),
		imageURL:        get("image_url"),
		productURL:      get("product_url"),
		description:     get("description"),
		sku:             get("sku"),
		dimensions:      get("dimensions"),
		material:        get("material"),
		finish:          get("finish"),
		installation:    get("installation"),
		weight:          get("weight"),
		packageContents: get("package_contents"),
		technicalSpecs:  get("technical_specs"),
		certifications:  get("certifications"),
		warranty:        get("warranty"),
		category:        get("category"),
		style:           get("style"),
		source:          source,
		searchQuery:     query,
		searchTime:      math.Round(meta.Elapsed.Seconds()*1000) / 1000,
	}
}

// keyKey lowercases a key and joins words with underscores ("Product Name" -> "product_name").
func keyKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	return k
}

// stringify renders an upstream value as display text. Absent values render as "".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(t)
		if _, absent := absentValues[strings.ToLower(s)]; absent {
			return ""
		}
		return s
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []string:
		return joinNonEmpty(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, stringify(item))
		}
		return joinNonEmpty(parts)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := stringify(t[k]); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func joinNonEmpty(items []string) string {
	kept := items[:0:0]
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ", ")
}

// formatPrice renders bare numeric prices as "$x.xx CAD"; text prices are kept as given.
func formatPrice(flat map[string]any, price string) string {
	if price == Default {
		return price
	}
	m := numericPrice.FindStringSubmatch(price)
	if m == nil {
		return price
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return price
	}
	currency := "CAD"
	if c := stringify(flat["currency"]); c != "" {
		currency = strings.ToUpper(c)
	}
	return fmt.Sprintf("$%.2f %s", f, currency)
}
