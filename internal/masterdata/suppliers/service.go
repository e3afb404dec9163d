package suppliers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradepost-erp/tradepost/internal/shared"
)

// RepositoryPort describes repository operations used by the service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, supplier Supplier) (Supplier, error)
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

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return Supplier{}, ErrInvalid
	}
	created, err := s.repo.Create(ctx, supplier)
	if err != nil {
		return Supplier{}, err
	}
	s.record(ctx, "supplier:create", created)
	return created, nil
}

func (s *Service) Update(ctx context.Context, supplier Supplier) (Supplier, error) {
	if supplier.ID <= 0 {
		return Supplier{}, ErrNotFound
	}
	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return Supplier{}, ErrInvalid
	}
	updated, err := s.repo.Update(ctx, supplier)
	if err != nil {
		return Supplier{}, err
	}
	s.record(ctx, "supplier:update", updated)
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
			Action:   "supplier:delete",
			Entity:   "supplier",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, sup Supplier) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "supplier",
		EntityID: fmt.Sprintf("%d", sup.ID),
		Meta:     map[string]any{"name": sup.Name},
	})
}
