// Package docstore is the document-store contract the engine is written against:
// schema-less JSON records, per-field update operators and no cross-document
// transactions. Every multi-record change is a sequence of independent calls.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Update when the document does not exist.
var ErrNotFound = errors.New("document not found")

// IDField is the key under which every returned document carries its id.
const IDField = "id"

// Doc is a schema-less record.
type Doc map[string]any

// ID returns the document id, or "" if absent.
func (d Doc) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Store is the document store surface consumed by the engine.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Doc, error)
	// Update applies field operations to one document. Each op is applied
	// independently; ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, id string, ops ...FieldOp) error
	// Add inserts a document under a generated id and returns it.
	Add(ctx context.Context, collection string, data Doc) (string, error)
	// Put creates or replaces the document stored under id.
	Put(ctx context.Context, collection, id string, data Doc) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query returns the documents matching every filter. There are no joins.
	Query(ctx context.Context, q Query) ([]Doc, error)
}

// OpKind is the kind of a field update operator.
type OpKind string

const (
	OpSet         OpKind = "set"
	OpArrayUnion  OpKind = "arrayUnion"
	OpArrayRemove OpKind = "arrayRemove"
	OpIncrement   OpKind = "increment"
)

// FieldOp is one per-field update operator.
type FieldOp struct {
	Field  string
	Kind   OpKind
	Value  any   // OpSet
	Values []any // OpArrayUnion, OpArrayRemove
	Delta  int64 // OpIncrement
}

// Set replaces a field value.
func Set(field string, value any) FieldOp {
	return FieldOp{Field: field, Kind: OpSet, Value: value}
}

// ArrayUnion adds values missing from an array field, creating it if needed.
func ArrayUnion(field string, values ...any) FieldOp {
	return FieldOp{Field: field, Kind: OpArrayUnion, Values: values}
}

// ArrayRemove removes every occurrence of values from an array field.
func ArrayRemove(field string, values ...any) FieldOp {
	return FieldOp{Field: field, Kind: OpArrayRemove, Values: values}
}

// Increment adds delta to a numeric field, treating a missing field as 0.
func Increment(field string, delta int64) FieldOp {
	return FieldOp{Field: field, Kind: OpIncrement, Delta: delta}
}

// FilterOp is a query comparison.
type FilterOp string

const (
	OpEqual         FilterOp = "=="
	OpArrayContains FilterOp = "array-contains"
	OpIn            FilterOp = "in"
)

// Filter is a single query condition.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Where builds a Filter.
func Where(field string, op FilterOp, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Eq is Where(field, OpEqual, value).
func Eq(field string, value any) Filter { return Where(field, OpEqual, value) }

// Contains is Where(field, OpArrayContains, value).
func Contains(field string, value any) Filter { return Where(field, OpArrayContains, value) }

// In is Where(field, OpIn, values).
func In(field string, values []string) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Where(field, OpIn, vs)
}

// Order sorts query results by one field.
type Order struct {
	Field string
	Desc  bool
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    *Order
	Limit      int // 0 means no limit
}

// Strings converts a union/remove argument list of ids.
func Strings(ids ...string) []any {
	vs := make([]any, len(ids))
	for i, id := range ids {
		vs[i] = id
	}
	return vs
}
