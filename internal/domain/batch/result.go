// Package batch holds per-query outcomes of a batch run.
package batch

import "github.com/kailas-cloud/hwfinder/internal/domain/product"

// ItemStatus is the processing outcome of a single batch query.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusEmpty ItemStatus = "empty"
	StatusError ItemStatus = "error"
)

// Result is the outcome for one input query, keyed by the query string.
type Result struct {
	query    string
	status   ItemStatus
	products []product.Product
	err      error
}

// NewOK creates a successful result.
func NewOK(query string, products []product.Product) Result {
	return Result{query: query, status: StatusOK, products: products}
}

// NewEmpty creates a result for a query that found nothing.
func NewEmpty(query string, err error) Result {
	return Result{query: query, status: StatusEmpty, err: err}
}

// NewError creates a failed result.
func NewError(query string, err error) Result {
	return Result{query: query, status: StatusError, err: err}
}

// Query returns the originating query string.
func (r Result) Query() string { return r.query }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Products returns the shortlist, if any.
func (r Result) Products() []product.Product { return r.products }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
