package domain

import (
	"context"
	"errors"
)

// ErrPolicyNotFound is returned by PolicyOracle when no policy exists.
// Checkers convert it to a FAIL verdict, never a raised error.
var ErrPolicyNotFound = errors.New("policy not found")

// DamageOracle analyzes damage photos against a declared amount.
type DamageOracle interface {
	Analyze(ctx context.Context, photoRefs []string, declaredAmount float64) (*DamageAssessment, error)
}

// FraudInput carries claim attributes to the fraud oracle.
type FraudInput struct {
	Amount     float64
	RepairShop string
	CustomerID string
	VehicleAge int
	Category   string
}

// FraudOracle scores baseline fraud risk for a claim.
type FraudOracle interface {
	Score(ctx context.Context, input FraudInput) (*FraudAssessment, error)
}

// CoverageDecision is the policy oracle's coverage verdict.
type CoverageDecision struct {
	Covered    bool   `json:"covered"`
	Reason     string `json:"reason"`
	PolicyType string `json:"policyType,omitempty"`
}

// PolicyOracle resolves policy details and coverage questions.
type PolicyOracle interface {
	GetPolicy(ctx context.Context, tenantID, policyID string) (*Policy, error)
	CheckCoverage(ctx context.Context, tenantID, policyID, category, incidentDate string) (*CoverageDecision, error)
}

// SimilarImage is one ranked match from the similarity service.
type SimilarImage struct {
	ClaimID    string  `json:"claimId"`
	Similarity float64 `json:"similarity"`
}

// SimilarityService returns ranked near-duplicate images across claims.
// Failures degrade to "no duplicates found"; callers never propagate them.
type SimilarityService interface {
	FindSimilar(ctx context.Context, tenantID, photoRef, excludeClaimID string, k int) ([]SimilarImage, error)
}

// HistoryLookup counts prior claims filed by a customer.
type HistoryLookup interface {
	CountClaims(ctx context.Context, tenantID, customerID string) (int, error)
}
