package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradepost-erp/tradepost/internal/shared"
)

// RepositoryPort describes repository operations used by the service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, input CreateInput) (Product, error)
	Update(ctx context.Context, input UpdateInput) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, input CreateInput) (Product, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.Code == "" || input.Name == "" || input.OpeningQty < 0 || input.OpeningCost.IsNegative() {
		return Product{}, ErrInvalid
	}
	created, err := s.repo.Create(ctx, input)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, "product:create", created)
	return created, nil
}

func (s *Service) Update(ctx context.Context, input UpdateInput) (Product, error) {
	if input.ID <= 0 {
		return Product{}, ErrNotFound
	}
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.Code == "" || input.Name == "" {
		return Product{}, ErrInvalid
	}
	updated, err := s.repo.Update(ctx, input)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, "product:update", updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "product:delete",
			Entity:   "product",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, p Product) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", p.ID),
		Meta:     map[string]any{"code": p.Code, "name": p.Name},
	})
}
