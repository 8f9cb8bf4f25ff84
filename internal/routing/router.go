// Package routing implements the supervisor that drives a claim through
// the processing workers and the traversal engine that executes its
// decisions.
package routing

import (
	"fmt"

	"github.com/opensource-claims/heron/internal/domain"
)

// Router maps the current claim state to the next action. Routing is a
// pure function of the claim; it never mutates anything but the
// decision it returns.
type Router struct {
	cfg domain.ProcessingConfig
}

// NewRouter creates a router with the given thresholds.
func NewRouter(cfg domain.ProcessingConfig) *Router {
	return &Router{cfg: cfg}
}

// Complexity scores a claim for priority tagging and the
// fraud-investigation trigger. Higher is more complex.
func (r *Router) Complexity(claim *domain.ClaimRecord) int {
	score := 0

	switch {
	case claim.Amount > 50000:
		score += 3
	case claim.Amount > 20000:
		score += 2
	case claim.Amount > 5000:
		score++
	}

	switch {
	case len(claim.Photos) > 5:
		score += 2
	case len(claim.Photos) > 2:
		score++
	}

	if domain.HighRiskCategories[claim.Category] {
		score += 2
	}

	if gap, ok := filingGapDays(claim); ok && gap > 20 {
		score++
	}

	switch {
	case claim.FraudScore > 0.7:
		score += 3
	case claim.FraudScore > 0.4:
		score += 2
	}

	// Duplicate images from the ingestion-time similarity check are the
	// strongest automatic escalation signal.
	if claim.ImageFraudCheck != nil && claim.ImageFraudCheck.IsPotentialDuplicate {
		score += 4
	}

	return score
}

// PriorityFor buckets a complexity score.
func PriorityFor(score int) domain.Priority {
	switch {
	case score >= 6:
		return domain.PriorityCritical
	case score >= 4:
		return domain.PriorityHigh
	case score >= 2:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// Route evaluates the transition table for the claim's current step.
// Every branch advances the workflow; an unrecognized step falls
// through to complete so a traversal can never loop.
func (r *Router) Route(claim *domain.ClaimRecord) domain.RouteDecision {
	complexity := r.Complexity(claim)
	priority := PriorityFor(complexity)

	decide := func(next domain.Action, reasoning string) domain.RouteDecision {
		return domain.RouteDecision{Next: next, Reasoning: reasoning, Priority: priority}
	}

	switch claim.CurrentStep {
	case domain.StepStarted:
		if len(claim.Photos) > 0 {
			return decide(domain.ActionDocumentAnalyzer, "photos submitted, analyzing documents first")
		}
		return decide(domain.ActionValidation, "no photos submitted, proceeding to validation")

	case domain.StepDocumentAnalysisComplete:
		return decide(domain.ActionValidation, "documents analyzed, validating eligibility")

	case domain.StepValidationComplete:
		if claim.Eligibility != nil && claim.Eligibility.Status == domain.EligibilityInvalid {
			return decide(domain.ActionComplete, "claim ineligible: "+claim.Eligibility.Reason)
		}
		if reason, ok := r.fraudTrigger(claim, priority); ok {
			return decide(domain.ActionFraudInvestigation, reason)
		}
		return decide(domain.ActionApproval, "no fraud triggers, proceeding to approval")

	case domain.StepFraudInvestigationComplete:
		if claim.FraudScore > 0.8 {
			return decide(domain.ActionHumanReview,
				fmt.Sprintf("fraud score %.3f exceeds human review threshold", claim.FraudScore))
		}
		return decide(domain.ActionApproval, "fraud investigation complete, proceeding to approval")

	case domain.StepApprovalComplete:
		if claim.ApprovalStatus == domain.ApprovalNeedsReview {
			return decide(domain.ActionHumanReview, "approval requires manual review")
		}
		return decide(domain.ActionComplete, "approval decision final")

	case domain.StepHumanReviewComplete:
		return decide(domain.ActionComplete, "human review recorded")

	default:
		// Fail-safe: unknown states terminate rather than loop.
		return decide(domain.ActionComplete,
			fmt.Sprintf("unrecognized step %q, completing", claim.CurrentStep))
	}
}

// fraudTrigger reports whether a validated claim needs the fraud
// investigation detour, with the triggering reason.
func (r *Router) fraudTrigger(claim *domain.ClaimRecord, priority domain.Priority) (string, bool) {
	switch {
	case priority == domain.PriorityHigh || priority == domain.PriorityCritical:
		return fmt.Sprintf("claim complexity is %s priority", priority), true
	case claim.FraudScore > 0.5:
		return fmt.Sprintf("fraud score %.3f above investigation threshold", claim.FraudScore), true
	case claim.Amount > 30000:
		return fmt.Sprintf("claim amount %.2f above investigation threshold", claim.Amount), true
	case domain.HighRiskCategories[claim.Category]:
		return fmt.Sprintf("high-risk category %s", claim.Category), true
	case claim.ImageFraudCheck != nil && claim.ImageFraudCheck.IsPotentialDuplicate:
		return "duplicate images flagged at ingestion", true
	case claim.DocumentReport != nil && claim.DocumentReport.DuplicateImages:
		return "duplicate images found during document analysis", true
	}
	return "", false
}

func filingGapDays(claim *domain.ClaimRecord) (int, bool) {
	incident, err := domain.ParseDate(claim.IncidentDate)
	if err != nil {
		return 0, false
	}
	filing, err := domain.ParseDate(claim.FilingDate)
	if err != nil {
		return 0, false
	}
	return int(filing.Sub(incident).Hours() / 24), true
}
