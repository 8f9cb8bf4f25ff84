package rules

import "github.com/opensource-claims/heron/internal/domain"

// BuiltinRules returns the default fraud pattern rules shipped with the
// engine. Tenants can override or extend these via the rules API.
func BuiltinRules() []*domain.PatternRule {
	return []*domain.PatternRule{
		{
			ID:          "pattern-same-day",
			Name:        "Same-Day Filing",
			Description: "Claim filed on the same day the incident occurred",
			Version:     "1.0",
			Expression:  `has_valid_dates && filing_gap_days == 0`,
			Reason:      "Claim filed same day as incident",
			Enabled:     true,
		},
		{
			ID:          "pattern-weekend",
			Name:        "Weekend Incident",
			Description: "Incident occurred on a Saturday or Sunday",
			Version:     "1.0",
			Expression:  `has_valid_dates && incident_weekday >= 5`,
			Reason:      "Incident occurred on weekend",
			Enabled:     true,
		},
		{
			ID:          "pattern-round-amount",
			Name:        "Round Claim Amount",
			Description: "Claim amount is a suspiciously round figure",
			Version:     "1.0",
			Expression:  `amount > 1000.0 && amount_int % 1000 == 0 && double(amount_int) == amount`,
			Reason:      "Claim amount is a round number",
			Enabled:     true,
		},
		{
			ID:          "pattern-high-amount",
			Name:        "High Claim Amount",
			Description: "Claim amount significantly above the book average",
			Version:     "1.0",
			Expression:  `amount > 30000.0`,
			Reason:      "Claim amount significantly above average",
			Enabled:     true,
		},
	}
}
