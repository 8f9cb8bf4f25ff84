// Package oracles provides the external scoring services consumed by the
// pipeline: damage assessment, fraud scoring, and policy lookup. The
// damage and fraud oracles are deterministic local implementations with
// the same input/output contracts as the hosted services they stand in
// for, so traversals stay reproducible and auditable.
package oracles

import (
	"context"
	"fmt"
	"math"

	"github.com/opensource-claims/heron/internal/domain"
)

// Damage severity bands by declared amount.
const (
	severityMinor     = "minor"
	severityModerate  = "moderate"
	severitySevere    = "severe"
	severityTotalLoss = "total_loss"
)

var damageParts = []string{
	"front_bumper", "rear_bumper", "hood", "trunk", "left_door",
	"right_door", "windshield", "headlight", "taillight", "fender",
	"side_mirror", "roof", "quarter_panel",
}

var partsPerSeverity = map[string]int{
	severityMinor:     1,
	severityModerate:  2,
	severitySevere:    4,
	severityTotalLoss: 6,
}

// DamageService implements domain.DamageOracle.
type DamageService struct{}

// NewDamageService creates the damage assessment oracle.
func NewDamageService() *DamageService {
	return &DamageService{}
}

// Analyze assesses damage photos against the declared amount and returns
// parts, total repair cost, and confidence.
func (s *DamageService) Analyze(ctx context.Context, photoRefs []string, declaredAmount float64) (*domain.DamageAssessment, error) {
	severity := severityForAmount(declaredAmount)

	numParts := partsPerSeverity[severity]
	parts := make([]domain.DamagedPart, 0, numParts)
	repairCost := declaredAmount
	if repairCost <= 0 {
		repairCost = 500
	}

	perPart := math.Round(repairCost/float64(numParts)*100) / 100
	for i := 0; i < numParts; i++ {
		parts = append(parts, domain.DamagedPart{
			Part:          damageParts[i%len(damageParts)],
			Severity:      severity,
			EstimatedCost: perPart,
		})
	}

	// Confidence grows with photo coverage.
	confidence := 0.7 + float64(len(photoRefs))*0.05
	if confidence > 0.95 {
		confidence = 0.95
	}

	return &domain.DamageAssessment{
		Parts:           parts,
		TotalRepairCost: math.Round(repairCost*100) / 100,
		Confidence:      math.Round(confidence*100) / 100,
		Severity:        severity,
		Notes:           fmt.Sprintf("detected %d damaged components with %s damage level", numParts, severity),
	}, nil
}

func severityForAmount(amount float64) string {
	switch {
	case amount < 2000:
		return severityMinor
	case amount < 8000:
		return severityModerate
	case amount < 20000:
		return severitySevere
	default:
		return severityTotalLoss
	}
}
