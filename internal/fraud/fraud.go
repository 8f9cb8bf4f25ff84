// Package fraud combines the fraud oracle's baseline score with pattern
// rules, shop reputation, customer history and duplicate-image signals
// into an adjusted score and an advisory recommendation.
package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/opensource-claims/heron/internal/domain"
	"github.com/opensource-claims/heron/internal/rules"
)

// Advisory recommendations. The decision maker is not bound by these.
const (
	RecommendDeny     = "DENY"
	RecommendEscalate = "ESCALATE"
	RecommendMonitor  = "APPROVE_WITH_MONITORING"
	RecommendApprove  = "APPROVE"
)

// FlagDuplicateImage is the high-severity flag raised when the
// ingestion-time similarity check reported a duplicate.
const FlagDuplicateImage = "DUPLICATE_IMAGE_FRAUD"

// defaultVehicleAge is assumed when no vehicle data accompanies the claim.
const defaultVehicleAge = 5

// Shop reputation keyword lists.
var (
	riskyShopKeywords = []string{"quick", "fast", "cheap", "discount"}
	safeShopKeywords  = []string{"certified", "authorized", "dealer", "oem"}
)

// Investigator runs the fraud analysis stage.
type Investigator struct {
	oracle  domain.FraudOracle
	engine  *rules.Engine
	history domain.HistoryLookup
	cfg     domain.ProcessingConfig
	logger  *slog.Logger
}

// NewInvestigator creates a fraud investigator.
func NewInvestigator(oracle domain.FraudOracle, engine *rules.Engine, history domain.HistoryLookup, cfg domain.ProcessingConfig, logger *slog.Logger) *Investigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Investigator{
		oracle:  oracle,
		engine:  engine,
		history: history,
		cfg:     cfg,
		logger:  logger.With("component", "fraud"),
	}
}

// Investigate scores the claim and writes the investigation findings
// onto it. Collaborator failures degrade to neutral signals.
func (inv *Investigator) Investigate(ctx context.Context, claim *domain.ClaimRecord) {
	investigation := &domain.Investigation{}

	score := inv.baseScore(ctx, claim, investigation)

	inv.applyPatterns(ctx, claim, investigation)
	inv.applyShopReputation(claim, investigation)
	inv.applyCustomerHistory(ctx, claim, investigation)

	score = inv.applyDuplicateSignals(claim, investigation, score)
	score = applyFactorBalance(investigation, score)

	investigation.Recommendation, investigation.Confidence = recommend(score)

	claim.FraudScore = score
	claim.Investigation = investigation

	inv.logger.Info("fraud investigation complete",
		"claim_id", claim.ID,
		"tenant_id", claim.TenantID,
		"score", score,
		"risk_factors", len(investigation.RiskFactors),
		"mitigating_factors", len(investigation.MitigatingFactors),
		"recommendation", investigation.Recommendation)
}

func (inv *Investigator) baseScore(ctx context.Context, claim *domain.ClaimRecord, investigation *domain.Investigation) float64 {
	assessment, err := inv.oracle.Score(ctx, domain.FraudInput{
		Amount:     claim.Amount,
		RepairShop: claim.RepairShop,
		CustomerID: claim.CustomerID,
		VehicleAge: defaultVehicleAge,
		Category:   claim.Category,
	})
	if err != nil {
		// Neutral default keeps the pipeline moving without the oracle.
		inv.logger.Warn("fraud oracle failed",
			"claim_id", claim.ID,
			"error", err)
		return claim.FraudScore
	}

	claim.FraudAssessment = assessment
	investigation.RiskFactors = append(investigation.RiskFactors, assessment.Indicators...)
	return assessment.Score
}

func (inv *Investigator) applyPatterns(ctx context.Context, claim *domain.ClaimRecord, investigation *domain.Investigation) {
	if inv.engine == nil {
		return
	}
	for _, result := range inv.engine.EvaluateAll(ctx, rules.FactsFromClaim(claim)) {
		if result.Err != "" {
			inv.logger.Warn("pattern rule failed",
				"claim_id", claim.ID,
				"rule_id", result.RuleID,
				"error", result.Err)
			continue
		}
		if result.Triggered {
			investigation.RiskFactors = append(investigation.RiskFactors, result.Reason)
		}
	}
}

func (inv *Investigator) applyShopReputation(claim *domain.ClaimRecord, investigation *domain.Investigation) {
	shop := strings.ToLower(claim.RepairShop)

	for _, kw := range riskyShopKeywords {
		if strings.Contains(shop, kw) {
			investigation.ShopRisk = "high"
			investigation.ShopReason = fmt.Sprintf("shop name contains risk keyword %q", kw)
			investigation.RiskFactors = append(investigation.RiskFactors, "repair shop has risk indicators")
			return
		}
	}
	for _, kw := range safeShopKeywords {
		if strings.Contains(shop, kw) {
			investigation.ShopRisk = "low"
			investigation.ShopReason = fmt.Sprintf("shop name contains trust keyword %q", kw)
			investigation.MitigatingFactors = append(investigation.MitigatingFactors, "repair shop is an established provider")
			return
		}
	}
	investigation.ShopRisk = "medium"
	investigation.ShopReason = "shop reputation unknown"
}

func (inv *Investigator) applyCustomerHistory(ctx context.Context, claim *domain.ClaimRecord, investigation *domain.Investigation) {
	if inv.history == nil {
		return
	}
	count, err := inv.history.CountClaims(ctx, claim.TenantID, claim.CustomerID)
	if err != nil {
		inv.logger.Warn("customer history lookup failed",
			"claim_id", claim.ID,
			"customer_id", claim.CustomerID,
			"error", err)
		return
	}

	investigation.PriorClaims = count
	switch {
	case count > 3:
		investigation.RiskFactors = append(investigation.RiskFactors,
			fmt.Sprintf("customer has %d prior claims", count))
	case count == 0:
		investigation.MitigatingFactors = append(investigation.MitigatingFactors,
			"first claim for this customer")
	}
}

// applyDuplicateSignals applies both duplicate-image escalations. The
// document-checker signal adds 0.2 and the ingestion-time signal adds
// 0.3; both can stack, and the score is clamped after each addition.
func (inv *Investigator) applyDuplicateSignals(claim *domain.ClaimRecord, investigation *domain.Investigation, score float64) float64 {
	if claim.DocumentReport != nil && claim.DocumentReport.DuplicateImages {
		score = clamp01(score + 0.2)
		investigation.RiskFactors = append(investigation.RiskFactors,
			fmt.Sprintf("duplicate images matched claims %s", strings.Join(claim.DocumentReport.SimilarClaims, ", ")))
	}
	if claim.ImageFraudCheck != nil && claim.ImageFraudCheck.IsPotentialDuplicate {
		score = clamp01(score + 0.3)
		investigation.RiskFactors = append(investigation.RiskFactors,
			"submitted images duplicate another claim's evidence")
		claim.FraudFlags = append(claim.FraudFlags, FlagDuplicateImage)
	}
	return score
}

// applyFactorBalance nudges the score by 0.1 per point of imbalance
// between risk and mitigating factors, floored at 0 and rounded to
// 3 decimals.
func applyFactorBalance(investigation *domain.Investigation, score float64) float64 {
	delta := float64(len(investigation.RiskFactors) - len(investigation.MitigatingFactors))
	score += 0.1 * delta
	if score < 0 {
		score = 0
	}
	score = clamp01(score)
	return math.Round(score*1000) / 1000
}

func recommend(score float64) (string, float64) {
	switch {
	case score > 0.8:
		return RecommendDeny, 0.9
	case score > 0.6:
		return RecommendEscalate, 0.7
	case score > 0.4:
		return RecommendMonitor, 0.75
	default:
		return RecommendApprove, 0.85
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
