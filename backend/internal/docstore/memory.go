package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Each call is atomic on its own and
// nothing spans calls, which is the same guarantee the remote stores give.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Doc
	newID       func() string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Doc),
		newID:       func() string { return uuid.New().String() },
	}
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return withID(clone(doc), id), nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, ops ...FieldOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	next := clone(doc)
	for _, op := range ops {
		if err := applyOp(next, op); err != nil {
			return err
		}
	}
	m.collections[collection][id] = next
	return nil
}

func (m *MemoryStore) Add(ctx context.Context, collection string, data Doc) (string, error) {
	id := m.newID()
	if err := m.Put(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Put(ctx context.Context, collection, id string, data Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("put %s: empty id", collection)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]Doc)
		m.collections[collection] = coll
	}
	doc := clone(data)
	delete(doc, IDField)
	coll[id] = doc
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections[collection], id)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, q Query) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Doc
	for id, doc := range m.collections[q.Collection] {
		candidate := withID(clone(doc), id)
		if matchesAll(candidate, q.Filters) {
			out = append(out, candidate)
		}
	}

	if q.OrderBy != nil {
		field, desc := q.OrderBy.Field, q.OrderBy.Desc
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][field], out[j][field])
			if c == 0 {
				return out[i].ID() < out[j].ID()
			}
			if desc {
				return c > 0
			}
			return c < 0
		})
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func withID(doc Doc, id string) Doc {
	doc[IDField] = id
	return doc
}

func applyOp(doc Doc, op FieldOp) error {
	switch op.Kind {
	case OpSet:
		doc[op.Field] = normalize(op.Value)
	case OpArrayUnion:
		list := asList(doc[op.Field])
		for _, v := range op.Values {
			nv := normalize(v)
			if indexOf(list, nv) < 0 {
				list = append(list, nv)
			}
		}
		doc[op.Field] = list
	case OpArrayRemove:
		list := asList(doc[op.Field])
		kept := make([]any, 0, len(list))
		for _, item := range list {
			if indexOf(normalizeAll(op.Values), item) < 0 {
				kept = append(kept, item)
			}
		}
		doc[op.Field] = kept
	case OpIncrement:
		n, _ := doc[op.Field].(float64)
		doc[op.Field] = n + float64(op.Delta)
	default:
		return fmt.Errorf("unsupported field op %q", op.Kind)
	}
	return nil
}

func matchesAll(doc Doc, filters []Filter) bool {
	for _, f := range filters {
		if !matches(doc, f) {
			return false
		}
	}
	return true
}

func matches(doc Doc, f Filter) bool {
	v := doc[f.Field]
	switch f.Op {
	case OpEqual:
		return reflect.DeepEqual(v, normalize(f.Value))
	case OpArrayContains:
		return indexOf(asList(v), normalize(f.Value)) >= 0
	case OpIn:
		return indexOf(asList(normalize(f.Value)), v) >= 0
	}
	return false
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}

func normalizeAll(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = normalize(v)
	}
	return out
}

func indexOf(list []any, v any) int {
	for i, item := range list {
		if reflect.DeepEqual(item, v) {
			return i
		}
	}
	return -1
}

// compare orders two JSON values of the same kind; mismatched kinds and
// missing values sort first.
func compare(a, b any) int {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return 0
}
