package oracles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-claims/heron/internal/domain"
	"github.com/opensource-claims/heron/internal/repository"
)

// coverageMap defines which claim categories each coverage type covers.
var coverageMap = map[string][]string{
	domain.CategoryComprehensive: {domain.CategoryCollision, domain.CategoryComprehensive, domain.CategoryLiability},
	domain.CategoryCollision:     {domain.CategoryCollision},
	domain.CategoryLiability:     {domain.CategoryLiability},
}

// PolicyService implements domain.PolicyOracle backed by the repository,
// with a cache in front so validation and approval share one lookup.
type PolicyService struct {
	repo     domain.Repository
	cache    domain.Cache
	cacheTTL time.Duration
}

// NewPolicyService creates the policy lookup oracle. cache may be nil.
func NewPolicyService(repo domain.Repository, cache domain.Cache) *PolicyService {
	return &PolicyService{
		repo:     repo,
		cache:    cache,
		cacheTTL: 5 * time.Minute,
	}
}

// GetPolicy resolves policy details. Returns domain.ErrPolicyNotFound
// when no record exists.
func (s *PolicyService) GetPolicy(ctx context.Context, tenantID, policyID string) (*domain.Policy, error) {
	if policyID == "" {
		return nil, domain.ErrPolicyNotFound
	}

	if s.cache != nil {
		if cached, err := s.cache.GetPolicy(ctx, tenantID, policyID); err == nil && cached != nil {
			return cached, nil
		}
	}

	policy, err := s.repo.GetPolicy(ctx, tenantID, policyID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("policy lookup failed: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.SetPolicy(ctx, tenantID, policyID, policy, s.cacheTTL)
	}

	return policy, nil
}

// CheckCoverage reports whether the policy covers the claim category on
// the incident date.
func (s *PolicyService) CheckCoverage(ctx context.Context, tenantID, policyID, category, incidentDate string) (*domain.CoverageDecision, error) {
	policy, err := s.GetPolicy(ctx, tenantID, policyID)
	if errors.Is(err, domain.ErrPolicyNotFound) {
		return &domain.CoverageDecision{
			Covered: false,
			Reason:  "Policy not found",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	active := policy.Active
	if policy.StartDate != "" && policy.EndDate != "" {
		if incident, perr := domain.ParseDate(incidentDate); perr == nil {
			start, serr := domain.ParseDate(policy.StartDate)
			end, eerr := domain.ParseDate(policy.EndDate)
			if serr == nil && eerr == nil {
				active = !incident.Before(start) && !incident.After(end)
			}
		}
	}

	matches := coverageMatches(policy.CoverageType, category)

	decision := &domain.CoverageDecision{
		Covered:    active && matches,
		PolicyType: policy.CoverageType,
	}
	switch {
	case decision.Covered:
		decision.Reason = "Covered"
	case !active:
		decision.Reason = "Policy was not active on incident date"
	default:
		decision.Reason = fmt.Sprintf("Policy type '%s' does not cover '%s' claims", policy.CoverageType, category)
	}

	return decision, nil
}

func coverageMatches(coverageType, category string) bool {
	for _, covered := range coverageMap[coverageType] {
		if covered == category {
			return true
		}
	}
	return false
}
