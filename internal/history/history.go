// Package history resolves a customer's prior claim count from the
// claim store.
package history

import (
	"context"

	"github.com/opensource-claims/heron/internal/domain"
)

// Service implements domain.HistoryLookup over the repository.
type Service struct {
	repo domain.Repository
}

// NewService creates a customer history lookup.
func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

// CountClaims returns the number of claims the customer has on record.
func (s *Service) CountClaims(ctx context.Context, tenantID, customerID string) (int, error) {
	claims, err := s.repo.GetClaimsByCustomer(ctx, tenantID, customerID)
	if err != nil {
		return 0, err
	}
	return len(claims), nil
}
