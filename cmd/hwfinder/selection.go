package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

type detailResolver interface {
	Resolve(ctx context.Context, name string) (product.Product, error)
}

// parseSelection reads 1-based shortlist numbers separated by commas or spaces.
// Duplicates are dropped; order is kept.
func parseSelection(input string, n int) ([]int, error) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '，'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no product numbers given")
	}

	seen := make(map[int]struct{}, len(fields))
	picks := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%q is not a product number", f)
		}
		if v < 1 || v > n {
			return nil, fmt.Errorf("product number %d is out of range 1-%d", v, n)
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		picks = append(picks, v)
	}
	return picks, nil
}

// detailResult is the lookup outcome for one requested name.
type detailResult struct {
	name    string
	product product.Product
	err     error
}

// resolveAll looks up every name concurrently and returns results in input order.
// A failed lookup never affects the others.
func resolveAll(ctx context.Context, r detailResolver, names []string, concurrency int) []detailResult {
	if concurrency <= 0 {
		concurrency = 4
	}
	out := make([]detailResult, len(names))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, name := range names {
		g.Go(func() error {
			p, err := r.Resolve(ctx, name)
			out[i] = detailResult{name: name, product: p, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// formatDetail renders a product, or the reason it could not be fetched.
func formatDetail(d detailResult) string {
	if d.err != nil {
		return fmt.Sprintf("%s: details unavailable (%v)", d.name, d.err)
	}
	title := cases.Title(language.English)
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", d.product.Name())
	for _, f := range d.product.Fields() {
		if f.Key == "name" || !product.Has(f.Value) {
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", title.String(strings.ReplaceAll(f.Key, "_", " ")), f.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}
