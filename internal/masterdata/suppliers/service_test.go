package suppliers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	byID   map[int64]Supplier
	nextID int64
	inUse  map[int64]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: map[int64]Supplier{}, inUse: map[int64]bool{}}
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
	var out []Supplier
	for _, s := range r.byID {
		if filter.ActiveOnly && !s.IsActive {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Supplier, error) {
	if s, ok := r.byID[id]; ok {
		return s, nil
	}
	return Supplier{}, ErrNotFound
}

func (r *memoryRepo) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	r.nextID++
	supplier.ID = r.nextID
	r.byID[supplier.ID] = supplier
	return supplier, nil
}

func (r *memoryRepo) Update(ctx context.Context, supplier Supplier) (Supplier, error) {
	if _, ok := r.byID[supplier.ID]; !ok {
		return Supplier{}, ErrNotFound
	}
	r.byID[supplier.ID] = supplier
	return supplier, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	if r.inUse[id] {
		return ErrInUse
	}
	delete(r.byID, id)
	return nil
}

func TestSupplierLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Supplier{Name: "   "})
	require.ErrorIs(t, err, ErrInvalid)

	created, err := svc.Create(ctx, Supplier{Name: "Acme Supplies", Email: "sales@acme.test", IsActive: true})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme Supplies", got.Name)

	created.Name = "Acme Wholesale"
	updated, err := svc.Update(ctx, created)
	require.NoError(t, err)
	require.Equal(t, "Acme Wholesale", updated.Name)

	_, err = svc.Update(ctx, Supplier{ID: 99, Name: "Ghost"})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSupplierDeleteGuards(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, Supplier{Name: "Acme Supplies"})
	require.NoError(t, err)
	repo.inUse[created.ID] = true

	require.ErrorIs(t, svc.Delete(ctx, created.ID), ErrInUse)
	require.ErrorIs(t, svc.Delete(ctx, 0), ErrNotFound)
}
