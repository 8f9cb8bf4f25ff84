// Package approval converts fraud score, eligibility and coverage into
// a final claim verdict and payout.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/opensource-claims/heron/internal/domain"
)

// defaultVehicleAge mirrors the fraud investigator's assumption when no
// vehicle data accompanies the claim.
const defaultVehicleAge = 5

// Maker runs the approval stage.
type Maker struct {
	damage   domain.DamageOracle
	fraud    domain.FraudOracle
	policies domain.PolicyOracle
	cfg      domain.ProcessingConfig
	logger   *slog.Logger
}

// NewMaker creates a decision maker.
func NewMaker(damage domain.DamageOracle, fraud domain.FraudOracle, policies domain.PolicyOracle, cfg domain.ProcessingConfig, logger *slog.Logger) *Maker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maker{
		damage:   damage,
		fraud:    fraud,
		policies: policies,
		cfg:      cfg,
		logger:   logger.With("component", "approval"),
	}
}

// Decide writes the final verdict, payout and processing estimate onto
// the claim. An INVALID eligibility verdict short-circuits to DENIED
// with no oracle calls.
func (m *Maker) Decide(ctx context.Context, claim *domain.ClaimRecord) {
	if claim.Eligibility != nil && claim.Eligibility.Status == domain.EligibilityInvalid {
		claim.ApprovalStatus = domain.ApprovalDenied
		claim.ApprovalReason = "claim ineligible: " + claim.Eligibility.Reason
		claim.PayoutAmount = 0
		m.log(claim)
		return
	}

	if claim.DamageAssessment == nil {
		assessment, err := m.damage.Analyze(ctx, claim.Photos, claim.Amount)
		if err != nil {
			m.logger.Warn("damage oracle failed at approval",
				"claim_id", claim.ID,
				"error", err)
		} else {
			claim.DamageAssessment = assessment
		}
	}

	// Fraud is always re-scored at this stage; the fresh score replaces
	// whatever the investigation stage left behind.
	if assessment, err := m.fraud.Score(ctx, domain.FraudInput{
		Amount:     claim.Amount,
		RepairShop: claim.RepairShop,
		CustomerID: claim.CustomerID,
		VehicleAge: defaultVehicleAge,
		Category:   claim.Category,
	}); err != nil {
		m.logger.Warn("fraud oracle failed at approval",
			"claim_id", claim.ID,
			"error", err)
	} else {
		claim.FraudAssessment = assessment
		claim.FraudScore = assessment.Score
	}

	policy := claim.Policy
	if policy == nil {
		p, err := m.policies.GetPolicy(ctx, claim.TenantID, claim.PolicyID)
		if err != nil {
			claim.ApprovalStatus = domain.ApprovalDenied
			claim.ApprovalReason = fmt.Sprintf("policy %s not found", claim.PolicyID)
			claim.PayoutAmount = 0
			m.log(claim)
			return
		}
		policy = p
		claim.Policy = p
	}

	switch {
	case claim.FraudScore > m.cfg.FraudScoreHigh:
		claim.ApprovalStatus = domain.ApprovalNeedsReview
		claim.ApprovalReason = "high fraud risk, manual review required"
	case claim.FraudScore > m.cfg.FraudScoreMedium:
		claim.ApprovalStatus = domain.ApprovalApproved
		claim.ApprovalReason = "approved with monitoring flag"
	default:
		claim.ApprovalStatus = domain.ApprovalApproved
		claim.ApprovalReason = "auto-approved, low fraud risk"
	}

	claim.Deductible = policy.Deductible
	claim.PayoutAmount = payout(damageTotal(claim), policy.Deductible, policy.CoverageLimit)
	claim.ProcessingDays = processingDays(claim.FraudScore, m.cfg)

	m.log(claim)
}

func (m *Maker) log(claim *domain.ClaimRecord) {
	m.logger.Info("approval decision",
		"claim_id", claim.ID,
		"tenant_id", claim.TenantID,
		"status", claim.ApprovalStatus,
		"payout", claim.PayoutAmount,
		"processing_days", claim.ProcessingDays)
}

func damageTotal(claim *domain.ClaimRecord) float64 {
	if claim.DamageAssessment != nil {
		return claim.DamageAssessment.TotalRepairCost
	}
	return claim.Amount
}

// payout is clamp(damage - deductible, 0, limit) rounded to cents.
func payout(damage, deductible, limit float64) float64 {
	p := damage - deductible
	if p < 0 {
		p = 0
	}
	if p > limit {
		p = limit
	}
	return math.Round(p*100) / 100
}

func processingDays(score float64, cfg domain.ProcessingConfig) int {
	switch {
	case score < cfg.FraudScoreLow:
		return 2
	case score < 0.5:
		return 5
	default:
		return 10
	}
}
