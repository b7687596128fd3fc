package property

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=property
type Repository interface {
	GetProperty(ctx context.Context, id uuid.UUID) (*Property, error)
	GetPropertyBySlug(ctx context.Context, slug string) (*Property, error)
	ListProperties(ctx context.Context, filter ListFilter) ([]*Property, error)
	UpdateSalesStatus(ctx context.Context, update SalesStatusUpdate) (*Property, error)
	AssignAgent(ctx context.Context, propertyID, agentID uuid.UUID, rate decimal.Decimal) error
}

// SalesStatusUpdate carries the field changes applied when a sale moves
// through the pipeline. ListingStatus and SettlementDate are only set when
// the sale settles.
type SalesStatusUpdate struct {
	PropertyID     uuid.UUID
	SalesStatus    SalesStatus
	ListingStatus  *Status
	SettlementDate *time.Time
}

type ListFilter struct {
	Status      *Status
	SalesStatus *SalesStatus
	OwnerID     *uuid.UUID
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Property, error) {
	return s.repo.GetProperty(ctx, id)
}

// GetByIDOrSlug resolves a property from a path segment that is either a
// UUID or a listing slug.
func (s *Service) GetByIDOrSlug(ctx context.Context, idOrSlug string) (*Property, error) {
	if id, err := uuid.Parse(idOrSlug); err == nil {
		return s.repo.GetProperty(ctx, id)
	}

	return s.repo.GetPropertyBySlug(ctx, idOrSlug)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Property, error) {
	return s.repo.ListProperties(ctx, filter)
}

func (s *Service) ApplySalesStatus(ctx context.Context, update SalesStatusUpdate) (*Property, error) {
	return s.repo.UpdateSalesStatus(ctx, update)
}

func (s *Service) AssignAgent(ctx context.Context, propertyID, agentID uuid.UUID, rate decimal.Decimal) error {
	return s.repo.AssignAgent(ctx, propertyID, agentID, rate)
}
