package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=directory
type Repository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsersByRole(ctx context.Context, role Role) ([]*User, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetUserByEmail(ctx, email)
}

// Admins returns every user holding the admin role. System alerts fan out to
// this set.
func (s *Service) Admins(ctx context.Context) ([]*User, error) {
	admins, err := s.repo.ListUsersByRole(ctx, RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("listing admins: %w", err)
	}
	return admins, nil
}
