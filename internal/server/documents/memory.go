package documents

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process memory. It backs tests and local
// development. Returned documents are copies.
type MemoryStore struct {
	mu    sync.RWMutex
	colls map[string][]Fields
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		colls: make(map[string][]Fields),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) indexByForeignID(coll, key string, foreignID int64) int {
	for i, d := range s.colls[coll] {
		if n, ok := d.Int64(key); ok && n == foreignID {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) UpsertByForeignID(ctx context.Context, coll string, foreignID int64, patch Fields) (Fields, error) {
	key, err := ForeignKey(coll)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	i := s.indexByForeignID(coll, key, foreignID)
	if i < 0 {
		doc := Fields{FieldID: uuid.NewString(), key: foreignID, FieldCreatedAt: now}
		s.colls[coll] = append(s.colls[coll], doc)
		i = len(s.colls[coll]) - 1
	}

	doc := s.colls[coll][i]
	for k, v := range contentPatch(patch, key) {
		doc[k] = cloneValue(v)
	}
	doc[FieldUpdatedAt] = now

	return cloneFields(doc), nil
}

func (s *MemoryStore) FindByForeignID(ctx context.Context, coll string, foreignID int64) (Fields, error) {
	key, err := ForeignKey(coll)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexByForeignID(coll, key, foreignID)
	if i < 0 {
		return Fields{}, nil
	}
	return cloneFields(s.colls[coll][i]), nil
}

func (s *MemoryStore) DeleteByForeignID(ctx context.Context, coll string, foreignID int64) (bool, error) {
	key, err := ForeignKey(coll)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByForeignID(coll, key, foreignID)
	if i < 0 {
		return false, nil
	}
	docs := s.colls[coll]
	s.colls[coll] = append(docs[:i:i], docs[i+1:]...)
	return true, nil
}

func (s *MemoryStore) Append(ctx context.Context, coll string, doc Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := cloneFields(doc)
	d[FieldID] = uuid.NewString()
	d[FieldCreatedAt] = s.now()
	s.colls[coll] = append(s.colls[coll], d)
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, coll string, q Query) ([]Fields, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	var matched []Fields
	for _, d := range s.colls[coll] {
		if matches(d, q) {
			matched = append(matched, cloneFields(d))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		ti, _ := matched[i].Time(FieldCreatedAt)
		tj, _ := matched[j].Time(FieldCreatedAt)
		if q.Newest {
			return ti.After(tj)
		}
		return ti.Before(tj)
	})

	total := int64(len(matched))
	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			return []Fields{}, total, nil
		}
		matched = matched[q.Skip:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	if matched == nil {
		matched = []Fields{}
	}
	return matched, total, nil
}

func matches(d Fields, q Query) bool {
	for k, want := range q.Equals {
		got, ok := lookupPath(d, k)
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	if q.From != nil || q.To != nil {
		ts, ok := d.Time(FieldCreatedAt)
		if !ok {
			return false
		}
		if q.From != nil && ts.Before(*q.From) {
			return false
		}
		if q.To != nil && !ts.Before(*q.To) {
			return false
		}
	}
	return true
}

func (s *MemoryStore) DeleteOlderThan(ctx context.Context, coll string, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.colls[coll][:0]
	var removed int64
	for _, d := range s.colls[coll] {
		if ts, ok := d.Time(FieldCreatedAt); ok && ts.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	s.colls[coll] = kept
	return removed, nil
}

func (s *MemoryStore) IncrementCounters(ctx context.Context, coll string, key Fields, counters map[string]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var doc Fields
	for _, d := range s.colls[coll] {
		if matches(d, Query{Equals: key}) {
			doc = d
			break
		}
	}
	if doc == nil {
		doc = cloneFields(key)
		doc[FieldID] = uuid.NewString()
		doc[FieldCreatedAt] = now
		s.colls[coll] = append(s.colls[coll], doc)
	}

	for path, delta := range counters {
		cur, _ := lookupPath(doc, path)
		n, _ := toFloat(cur)
		setPath(doc, path, n+delta)
	}
	doc[FieldUpdatedAt] = now
	return nil
}

// EnsureIndexes is a no-op; foreign-id uniqueness holds by construction.
func (s *MemoryStore) EnsureIndexes(context.Context) error { return nil }

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close(context.Context) error { return nil }

func lookupPath(d Fields, path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(d Fields, path string, v any) {
	parts := strings.Split(path, ".")
	m := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(m[part])
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Fields:
		return m, true
	}
	return nil, false
}

func equalValues(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func cloneFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Fields:
		return map[string]any(cloneFields(t))
	case map[string]any:
		return map[string]any(cloneFields(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case time.Time, string, bool, nil:
		return v
	}

	// typed maps and slices are stored as their generic form, as BSON would
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = cloneValue(iter.Value().Interface())
		}
		return out
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = cloneValue(rv.Index(i).Interface())
		}
		return out
	}
	return v
}
