package oracles

import (
	"context"
	"math"
	"strings"

	"github.com/opensource-claims/heron/internal/domain"
)

// Shops recognized as established repair networks.
var knownShops = []string{"certified_auto", "dealer_service", "national_chain"}

// FraudService implements domain.FraudOracle with a deterministic
// attribute-based scoring model.
type FraudService struct{}

// NewFraudService creates the fraud scoring oracle.
func NewFraudService() *FraudService {
	return &FraudService{}
}

// Score returns a baseline fraud score in [0, 1] with indicators.
func (s *FraudService) Score(ctx context.Context, input domain.FraudInput) (*domain.FraudAssessment, error) {
	score := 0.15
	var indicators []string

	// High claim amounts increase risk.
	if input.Amount > 15000 {
		score += 0.15
		indicators = append(indicators, "high_value_claim")
	} else if input.Amount > 8000 {
		score += 0.08
	}

	// Old vehicle with a high claim is suspicious.
	if input.VehicleAge > 10 && input.Amount > 10000 {
		score += 0.2
		indicators = append(indicators, "high_claim_old_vehicle")
	}

	// Unrecognized repair shops are riskier.
	if input.RepairShop != "" && !isKnownShop(input.RepairShop) {
		score += 0.1
		indicators = append(indicators, "unverified_repair_shop")
	}

	score = clamp01(score)

	return &domain.FraudAssessment{
		Score:          math.Round(score*1000) / 1000,
		Indicators:     indicators,
		RiskLevel:      riskLevel(score),
		Recommendation: recommendation(score),
		Confidence:     0.85,
	}, nil
}

func isKnownShop(shop string) bool {
	lower := strings.ToLower(shop)
	for _, known := range knownShops {
		if strings.Contains(lower, known) {
			return true
		}
	}
	return false
}

func riskLevel(score float64) string {
	switch {
	case score < 0.2:
		return "LOW"
	case score < 0.4:
		return "MODERATE_LOW"
	case score < 0.7:
		return "MODERATE_HIGH"
	default:
		return "HIGH"
	}
}

func recommendation(score float64) string {
	switch {
	case score < 0.2:
		return "AUTO_APPROVE"
	case score < 0.4:
		return "APPROVE_WITH_MONITORING"
	case score < 0.7:
		return "MANUAL_REVIEW_RECOMMENDED"
	default:
		return "INVESTIGATION_REQUIRED"
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
