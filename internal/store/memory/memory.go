// Package memory is an in-process Store used by tests and for running the
// server without external infrastructure.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/crtiers/crtiers/internal/store"
)

// Store keeps documents in nested maps guarded by a mutex.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]map[string]any)}
}

// collection returns the named collection, creating it on first use.
// Callers must hold the write lock; read paths index s.collections
// directly so they never mutate the map.
func (s *Store) collection(name string) map[string]map[string]any {
	col, ok := s.collections[name]
	if !ok {
		col = make(map[string]map[string]any)
		s.collections[name] = col
	}
	return col
}

// Get fetches one document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return store.Doc{}, store.ErrDocNotFound
	}
	return store.Doc{ID: id, Data: deepCopy(data)}, nil
}

// List returns every document in the collection. A collection that was
// never written to is empty.
func (s *Store) List(ctx context.Context, collection string) ([]store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.collections[collection]
	docs := make([]store.Doc, 0, len(col))
	for id, data := range col {
		docs = append(docs, store.Doc{ID: id, Data: deepCopy(data)})
	}
	// Stable order for callers that iterate.
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Query returns documents matching all conditions.
func (s *Store) Query(ctx context.Context, collection string, conds ...store.Cond) ([]store.Doc, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	matched := docs[:0]
	for _, doc := range docs {
		if matchesAll(doc.Data, conds) {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

// Count returns the number of documents matching all conditions.
func (s *Store) Count(ctx context.Context, collection string, conds ...store.Cond) (int64, error) {
	docs, err := s.Query(ctx, collection, conds...)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// OrderByLimit returns up to n documents ordered by field.
func (s *Store) OrderByLimit(ctx context.Context, collection, field string, descending bool, n int) ([]store.Doc, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := store.LookupPath(docs[i].Data, field)
		b, _ := store.LookupPath(docs[j].Data, field)
		if descending {
			return less(b, a)
		}
		return less(a, b)
	})
	if n > 0 && len(docs) > n {
		docs = docs[:n]
	}
	return docs, nil
}

// Add inserts a document under a generated id.
func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.collection(collection)[id] = deepCopy(data)
	return id, nil
}

// UpdateFields applies a path-scoped partial update.
func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyUpdate(collection, id, fields)
}

// UpdateFieldsIf applies the update only while versionField equals expected.
func (s *Store) UpdateFieldsIf(ctx context.Context, collection, id string, fields map[string]any, versionField string, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.collection(collection)[id]
	if !ok {
		return store.ErrDocNotFound
	}
	current, _ := store.LookupPath(data, versionField)
	if store.AsInt64(current) != expected {
		return store.ErrPreconditionFailed
	}
	return s.applyUpdate(collection, id, fields)
}

func (s *Store) applyUpdate(collection, id string, fields map[string]any) error {
	data, ok := s.collection(collection)[id]
	if !ok {
		return store.ErrDocNotFound
	}
	for path, value := range fields {
		setPath(data, path, value)
	}
	return nil
}

// Delete removes a document; deleting an absent one is a no-op.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collection(collection), id)
	return nil
}

// Close releases nothing; the store is in-process.
func (s *Store) Close() error { return nil }

func matchesAll(data map[string]any, conds []store.Cond) bool {
	for _, cond := range conds {
		value, ok := store.LookupPath(data, cond.Field)
		if !ok {
			return false
		}
		switch cond.Op {
		case store.OpEqual:
			if !equal(value, cond.Value) {
				return false
			}
		case store.OpGreater:
			if !less(cond.Value, value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if isNumeric(a) && isNumeric(b) {
		return store.AsInt64(a) == store.AsInt64(b)
	}
	return a == b
}

func less(a, b any) bool {
	if isNumeric(a) && isNumeric(b) {
		return store.AsInt64(a) < store.AsInt64(b)
	}
	return store.AsString(a) < store.AsString(b)
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int64, float64, float32:
		return true
	}
	return false
}

func setPath(data map[string]any, path string, value any) {
	cur := data
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] != '.' {
			continue
		}
		key := path[start:i]
		start = i + 1
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[key] = next
		}
		cur = next
	}
	cur[path[start:]] = value
}

func deepCopy(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepCopy(nested)
			continue
		}
		out[k] = v
	}
	return out
}
