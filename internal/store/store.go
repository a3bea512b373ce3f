// Package store defines the document/query interface the rest of the
// service consumes, keeping the concrete database behind a small surface:
// full scans, field queries, ordered reads, and path-scoped partial writes.
package store

import (
	"context"
	"errors"
)

// Store errors
var (
	ErrDocNotFound       = errors.New("document not found")
	ErrPreconditionFailed = errors.New("document precondition failed")
)

// Doc is one stored document with its store-assigned id.
type Doc struct {
	ID   string
	Data map[string]any
}

// Op is a query comparison operator.
type Op string

const (
	OpEqual   Op = "=="
	OpGreater Op = ">"
)

// Cond is a single field comparison. Field may be a dot-separated path
// into nested maps, e.g. "tiers.axe".
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Where builds a query condition.
func Where(field string, op Op, value any) Cond {
	return Cond{Field: field, Op: op, Value: value}
}

// Store is the async document interface. Implementations must treat field
// keys in UpdateFields as dot-separated paths: updating "tiers.axe" leaves
// sibling keys of the tiers map untouched.
type Store interface {
	// Get fetches one document by id, ErrDocNotFound when absent.
	Get(ctx context.Context, collection, id string) (Doc, error)

	// List returns every document in the collection.
	List(ctx context.Context, collection string) ([]Doc, error)

	// Query returns documents matching all conditions.
	Query(ctx context.Context, collection string, conds ...Cond) ([]Doc, error)

	// Count returns the number of documents matching all conditions.
	Count(ctx context.Context, collection string, conds ...Cond) (int64, error)

	// OrderByLimit returns up to n documents ordered by field.
	OrderByLimit(ctx context.Context, collection, field string, descending bool, n int) ([]Doc, error)

	// Add inserts a document and returns its store-assigned id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)

	// UpdateFields applies a path-scoped partial update.
	UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error

	// UpdateFieldsIf applies a partial update only while the document's
	// versionField still equals expected, ErrPreconditionFailed otherwise.
	UpdateFieldsIf(ctx context.Context, collection, id string, fields map[string]any, versionField string, expected int64) error

	// Delete removes a document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Close releases the underlying client.
	Close() error
}
