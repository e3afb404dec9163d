package products

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	byID   map[int64]Product
	byCode map[string]int64
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: map[int64]Product{}, byCode: map[string]int64{}}
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	var out []Product
	for _, p := range r.byID {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	if p, ok := r.byID[id]; ok {
		return p, nil
	}
	return Product{}, ErrNotFound
}

func (r *memoryRepo) Create(ctx context.Context, input CreateInput) (Product, error) {
	if _, dup := r.byCode[input.Code]; dup {
		return Product{}, ErrCodeTaken
	}
	r.nextID++
	p := Product{
		ID:           r.nextID,
		Code:         input.Code,
		Name:         input.Name,
		AvailableQty: input.OpeningQty,
		TotalCost:    input.OpeningCost,
		IsActive:     true,
	}
	r.byID[p.ID] = p
	r.byCode[p.Code] = p.ID
	return p, nil
}

func (r *memoryRepo) Update(ctx context.Context, input UpdateInput) (Product, error) {
	p, ok := r.byID[input.ID]
	if !ok {
		return Product{}, ErrNotFound
	}
	if other, dup := r.byCode[input.Code]; dup && other != input.ID {
		return Product{}, ErrCodeTaken
	}
	delete(r.byCode, p.Code)
	p.Code = input.Code
	p.Name = input.Name
	p.IsActive = input.IsActive
	r.byID[p.ID] = p
	r.byCode[p.Code] = p.ID
	return p, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byCode, p.Code)
	return nil
}

func TestCreateSeedsOpeningBalance(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Code: "P-001", Name: "Widget", OpeningQty: 5, OpeningCost: decimal.NewFromInt(20)})
	require.NoError(t, err)
	require.EqualValues(t, 5, created.AvailableQty)
	require.True(t, created.TotalCost.Equal(decimal.NewFromInt(20)))
	require.True(t, created.IsActive)

	// Defaults to an empty ledger pair.
	blank, err := svc.Create(ctx, CreateInput{Code: "P-002", Name: "Gadget"})
	require.NoError(t, err)
	require.EqualValues(t, 0, blank.AvailableQty)
	require.True(t, blank.TotalCost.Equal(decimal.Zero))
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "Widget"})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(ctx, CreateInput{Code: "P-001"})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(ctx, CreateInput{Code: "P-001", Name: "Widget", OpeningQty: -1})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(ctx, CreateInput{Code: "P-001", Name: "Widget", OpeningCost: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(ctx, CreateInput{Code: "P-001", Name: "Widget"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Code: "P-001", Name: "Other"})
	require.ErrorIs(t, err, ErrCodeTaken)
}

func TestUpdateAndDelete(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Code: "P-001", Name: "Widget"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, UpdateInput{ID: created.ID, Code: "P-010", Name: "Widget Mk2", IsActive: false})
	require.NoError(t, err)
	require.Equal(t, "P-010", updated.Code)
	require.False(t, updated.IsActive)

	_, err = svc.Update(ctx, UpdateInput{ID: 99, Code: "X", Name: "Y"})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.ErrorIs(t, svc.Delete(ctx, created.ID), ErrNotFound)
}
