// Package eligibility runs the five claim validation checks and
// aggregates them into a VALID or INVALID verdict.
package eligibility

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensource-claims/heron/internal/domain"
)

// Check names, keyed into the eligibility report.
const (
	CheckFilingTimeline = "filing_timeline"
	CheckPolicyActive   = "policy_active"
	CheckCoverageMatch  = "coverage_match"
	CheckDocuments      = "required_documents"
	CheckEstimate       = "estimate_reasonableness"
)

// fallbackCoverageLimit bounds the estimate check when no policy record
// could be resolved.
const fallbackCoverageLimit = 50000

// Checker validates claims against policy and filing rules.
type Checker struct {
	policies domain.PolicyOracle
	cfg      domain.ProcessingConfig
	logger   *slog.Logger
}

// NewChecker creates an eligibility checker.
func NewChecker(policies domain.PolicyOracle, cfg domain.ProcessingConfig, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		policies: policies,
		cfg:      cfg,
		logger:   logger.With("component", "eligibility"),
	}
}

// Validate runs all five checks and writes the aggregate verdict onto
// the claim. Business-rule failures become FAIL entries, never errors.
func (c *Checker) Validate(ctx context.Context, claim *domain.ClaimRecord) {
	report := &domain.EligibilityReport{
		Checks: make(map[string]domain.CheckResult),
	}

	report.Checks[CheckFilingTimeline] = c.checkFilingTimeline(claim)
	report.Checks[CheckPolicyActive] = c.checkPolicyActive(ctx, claim)
	report.Checks[CheckCoverageMatch] = c.checkCoverageMatch(claim)
	report.Checks[CheckDocuments] = c.checkDocuments(claim)
	report.Checks[CheckEstimate] = c.checkEstimate(claim)

	var failures []string
	for _, name := range []string{CheckFilingTimeline, CheckPolicyActive, CheckCoverageMatch, CheckDocuments, CheckEstimate} {
		if res := report.Checks[name]; res.Status == domain.CheckFail {
			failures = append(failures, res.Reason)
		}
	}

	if len(failures) == 0 {
		report.Status = domain.EligibilityValid
		report.Reason = "all eligibility checks passed"
	} else {
		report.Status = domain.EligibilityInvalid
		report.Reason = strings.Join(failures, "; ")
	}

	claim.Eligibility = report

	c.logger.Info("eligibility validated",
		"claim_id", claim.ID,
		"tenant_id", claim.TenantID,
		"status", report.Status,
		"failures", len(failures))
}

func (c *Checker) checkFilingTimeline(claim *domain.ClaimRecord) domain.CheckResult {
	incident, err := domain.ParseDate(claim.IncidentDate)
	if err != nil {
		return fail(fmt.Sprintf("unparsable incident date %q", claim.IncidentDate))
	}
	filing, err := domain.ParseDate(claim.FilingDate)
	if err != nil {
		return fail(fmt.Sprintf("unparsable filing date %q", claim.FilingDate))
	}

	days := int(filing.Sub(incident).Hours() / 24)
	if days < 0 {
		return fail("filing date precedes incident date")
	}
	if days > c.cfg.FilingDaysLimit {
		return fail(fmt.Sprintf("claim filed %d days after incident, limit is %d", days, c.cfg.FilingDaysLimit))
	}
	return pass(fmt.Sprintf("filed %d days after incident", days))
}

func (c *Checker) checkPolicyActive(ctx context.Context, claim *domain.ClaimRecord) domain.CheckResult {
	policy, err := c.policies.GetPolicy(ctx, claim.TenantID, claim.PolicyID)
	if err != nil {
		// Lookup failure degrades to a FAIL verdict so the pipeline
		// always makes forward progress.
		c.logger.Warn("policy lookup failed",
			"claim_id", claim.ID,
			"policy_id", claim.PolicyID,
			"error", err)
		return fail(fmt.Sprintf("policy %s not found", claim.PolicyID))
	}

	// Cache for the approval step so it skips a second lookup.
	claim.Policy = policy

	if !policy.Active {
		return fail(fmt.Sprintf("policy %s is not active", policy.ID))
	}

	if policy.StartDate != "" && policy.EndDate != "" {
		incident, err := domain.ParseDate(claim.IncidentDate)
		if err != nil {
			return fail(fmt.Sprintf("unparsable incident date %q", claim.IncidentDate))
		}
		start, serr := domain.ParseDate(policy.StartDate)
		end, eerr := domain.ParseDate(policy.EndDate)
		if serr == nil && eerr == nil {
			if incident.Before(start) || incident.After(end) {
				return fail(fmt.Sprintf("incident date outside policy validity window %s to %s", policy.StartDate, policy.EndDate))
			}
		}
	}

	return pass(fmt.Sprintf("policy %s active", policy.ID))
}

// coveredCategories maps a policy coverage type to the claim categories
// it pays for.
var coveredCategories = map[string][]string{
	domain.CategoryComprehensive: {domain.CategoryCollision, domain.CategoryComprehensive, domain.CategoryLiability},
	domain.CategoryCollision:     {domain.CategoryCollision},
	domain.CategoryLiability:     {domain.CategoryLiability},
}

func (c *Checker) checkCoverageMatch(claim *domain.ClaimRecord) domain.CheckResult {
	if claim.Policy == nil {
		return fail("coverage unknown, no policy on record")
	}

	covered := coveredCategories[claim.Policy.CoverageType]
	for _, cat := range covered {
		if cat == claim.Category {
			return pass(fmt.Sprintf("category %s covered by %s policy", claim.Category, claim.Policy.CoverageType))
		}
	}
	return fail(fmt.Sprintf("category %s not covered by %s policy", claim.Category, claim.Policy.CoverageType))
}

func (c *Checker) checkDocuments(claim *domain.ClaimRecord) domain.CheckResult {
	var missing []string
	if len(claim.Photos) == 0 {
		missing = append(missing, "photos")
	}
	if strings.TrimSpace(claim.IncidentReport) == "" {
		missing = append(missing, "incident report")
	}
	if strings.TrimSpace(claim.RepairEstimate) == "" {
		missing = append(missing, "repair estimate")
	}
	if len(missing) > 0 {
		return fail("missing required documents: " + strings.Join(missing, ", "))
	}
	return pass("all required documents present")
}

func (c *Checker) checkEstimate(claim *domain.ClaimRecord) domain.CheckResult {
	if claim.Amount <= 0 {
		return fail("declared amount must be positive")
	}

	limit := float64(fallbackCoverageLimit)
	if claim.Policy != nil {
		limit = claim.Policy.CoverageLimit
	}
	if claim.Amount > 1.5*limit {
		return fail(fmt.Sprintf("declared amount %.2f exceeds 1.5x coverage limit %.2f", claim.Amount, limit))
	}
	return pass("declared amount within reasonable bounds")
}

func pass(reason string) domain.CheckResult {
	return domain.CheckResult{Status: domain.CheckPass, Reason: reason}
}

func fail(reason string) domain.CheckResult {
	return domain.CheckResult{Status: domain.CheckFail, Reason: reason}
}
