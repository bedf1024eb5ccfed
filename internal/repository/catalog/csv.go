package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Catalog columns. Other columns are kept as extra product fields.
const (
	ColumnName        = "Product Name"
	ColumnDescription = "Description"
)

// Row is one catalog line keyed by column header.
type Row struct {
	columns []string
	values  map[string]string
}

// Name returns the product name column.
func (r Row) Name() string { return r.values[ColumnName] }

// EmbeddingText is the text a row is indexed by: "name - description", or the name alone.
func (r Row) EmbeddingText() string {
	desc := r.values[ColumnDescription]
	if desc == "" {
		return r.Name()
	}
	return r.Name() + " - " + desc
}

// Fields returns the non-empty columns as a fresh map.
func (r Row) Fields() map[string]string {
	out := make(map[string]string, len(r.values)+2)
	for _, c := range r.columns {
		if v := r.values[c]; v != "" {
			out[c] = v
		}
	}
	return out
}

// ReadCSV parses a catalog with a header line. Rows without a product name are skipped.
func ReadCSV(in io.Reader) ([]Row, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog csv is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	if !slices.Contains(header, ColumnName) {
		return nil, fmt.Errorf("catalog csv has no %q column", ColumnName)
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) && col != "" {
				values[col] = strings.TrimSpace(rec[i])
			}
		}
		if values[ColumnName] == "" {
			continue
		}
		rows = append(rows, Row{columns: header, values: values})
	}
	return rows, nil
}
