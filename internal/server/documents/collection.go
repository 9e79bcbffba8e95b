package documents

import "context"

// Collection is a typed view of a foreign-id keyed collection. T is a
// JSON-tagged struct whose fields are all omitempty, so a partially filled T
// is a patch.
type Collection[T any] struct {
	store Store
	name  string
}

func NewCollection[T any](store Store, name string) Collection[T] {
	return Collection[T]{store: store, name: name}
}

func (c Collection[T]) Name() string { return c.name }

// Upsert merges the non-empty top-level fields of patch and returns the
// stored document.
func (c Collection[T]) Upsert(ctx context.Context, foreignID int64, patch *T) (*T, error) {
	fields, err := ToFields(patch)
	if err != nil {
		return nil, err
	}
	stored, err := c.store.UpsertByForeignID(ctx, c.name, foreignID, fields)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := FromFields(stored, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns nil when no document exists.
func (c Collection[T]) Get(ctx context.Context, foreignID int64) (*T, error) {
	stored, err := c.store.FindByForeignID(ctx, c.name, foreignID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}
	out := new(T)
	if err := FromFields(stored, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c Collection[T]) Delete(ctx context.Context, foreignID int64) (bool, error) {
	return c.store.DeleteByForeignID(ctx, c.name, foreignID)
}
