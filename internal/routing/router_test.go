package routing

import (
	"testing"
	"time"

	"github.com/opensource-claims/heron/internal/domain"
)

func testRouter() *Router {
	return NewRouter(domain.DefaultProcessing())
}

func daysAgo(n int) string {
	return time.Now().UTC().AddDate(0, 0, -n).Format("2006-01-02")
}

func TestComplexity(t *testing.T) {
	tests := []struct {
		name  string
		claim domain.ClaimRecord
		want  int
	}{
		{
			name:  "trivial claim",
			claim: domain.ClaimRecord{Amount: 1000, Category: domain.CategoryCollision},
			want:  0,
		},
		{
			name:  "amount over 5000",
			claim: domain.ClaimRecord{Amount: 6000},
			want:  1,
		},
		{
			name:  "amount over 20000",
			claim: domain.ClaimRecord{Amount: 25000},
			want:  2,
		},
		{
			name:  "amount over 50000",
			claim: domain.ClaimRecord{Amount: 60000},
			want:  3,
		},
		{
			name:  "photo volume",
			claim: domain.ClaimRecord{Photos: []string{"1", "2", "3", "4", "5", "6"}},
			want:  2,
		},
		{
			name:  "moderate photo volume",
			claim: domain.ClaimRecord{Photos: []string{"1", "2", "3"}},
			want:  1,
		},
		{
			name:  "high risk category",
			claim: domain.ClaimRecord{Category: "theft"},
			want:  2,
		},
		{
			name:  "late filing",
			claim: domain.ClaimRecord{IncidentDate: daysAgo(25), FilingDate: daysAgo(0)},
			want:  1,
		},
		{
			name:  "elevated fraud score",
			claim: domain.ClaimRecord{FraudScore: 0.5},
			want:  2,
		},
		{
			name:  "high fraud score",
			claim: domain.ClaimRecord{FraudScore: 0.75},
			want:  3,
		},
		{
			name: "ingestion duplicate flag",
			claim: domain.ClaimRecord{
				ImageFraudCheck: &domain.DuplicateCheck{IsPotentialDuplicate: true},
			},
			want: 4,
		},
		{
			name: "stacked signals",
			claim: domain.ClaimRecord{
				Amount:          25000,
				Category:        "fire",
				FraudScore:      0.75,
				ImageFraudCheck: &domain.DuplicateCheck{IsPotentialDuplicate: true},
			},
			want: 11,
		},
		{
			name:  "malformed dates score no filing penalty",
			claim: domain.ClaimRecord{IncidentDate: "bad", FilingDate: daysAgo(0)},
			want:  0,
		},
	}

	r := testRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Complexity(&tt.claim); got != tt.want {
				t.Errorf("Complexity = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		score int
		want  domain.Priority
	}{
		{0, domain.PriorityLow},
		{1, domain.PriorityLow},
		{2, domain.PriorityMedium},
		{3, domain.PriorityMedium},
		{4, domain.PriorityHigh},
		{5, domain.PriorityHigh},
		{6, domain.PriorityCritical},
		{11, domain.PriorityCritical},
	}
	for _, tt := range tests {
		if got := PriorityFor(tt.score); got != tt.want {
			t.Errorf("PriorityFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRouteStarted(t *testing.T) {
	r := testRouter()

	t.Run("photos route to document analyzer", func(t *testing.T) {
		claim := &domain.ClaimRecord{CurrentStep: domain.StepStarted, Photos: []string{"a.jpg"}}
		if got := r.Route(claim).Next; got != domain.ActionDocumentAnalyzer {
			t.Errorf("Next = %s, want document_analyzer", got)
		}
	})

	t.Run("no photos skip to validation", func(t *testing.T) {
		claim := &domain.ClaimRecord{CurrentStep: domain.StepStarted}
		if got := r.Route(claim).Next; got != domain.ActionValidation {
			t.Errorf("Next = %s, want validation", got)
		}
	})
}

func TestRouteDocumentAnalysisComplete(t *testing.T) {
	claim := &domain.ClaimRecord{CurrentStep: domain.StepDocumentAnalysisComplete}
	if got := testRouter().Route(claim).Next; got != domain.ActionValidation {
		t.Errorf("Next = %s, want validation", got)
	}
}

func TestRouteValidationComplete(t *testing.T) {
	r := testRouter()

	valid := func() *domain.ClaimRecord {
		return &domain.ClaimRecord{
			CurrentStep: domain.StepValidationComplete,
			Category:    domain.CategoryCollision,
			Amount:      4000,
			Eligibility: &domain.EligibilityReport{Status: domain.EligibilityValid},
		}
	}

	t.Run("invalid claim completes", func(t *testing.T) {
		claim := valid()
		claim.Eligibility = &domain.EligibilityReport{
			Status: domain.EligibilityInvalid,
			Reason: "late filing",
		}
		if got := r.Route(claim).Next; got != domain.ActionComplete {
			t.Errorf("Next = %s, want complete", got)
		}
	})

	t.Run("clean claim goes to approval", func(t *testing.T) {
		if got := r.Route(valid()).Next; got != domain.ActionApproval {
			t.Errorf("Next = %s, want approval", got)
		}
	})

	t.Run("fraud score triggers investigation", func(t *testing.T) {
		claim := valid()
		claim.FraudScore = 0.55
		if got := r.Route(claim).Next; got != domain.ActionFraudInvestigation {
			t.Errorf("Next = %s, want fraud_investigation", got)
		}
	})

	t.Run("large amount triggers investigation", func(t *testing.T) {
		claim := valid()
		claim.Amount = 35000
		if got := r.Route(claim).Next; got != domain.ActionFraudInvestigation {
			t.Errorf("Next = %s, want fraud_investigation", got)
		}
	})

	t.Run("high risk category triggers investigation", func(t *testing.T) {
		claim := valid()
		claim.Category = "vandalism"
		if got := r.Route(claim).Next; got != domain.ActionFraudInvestigation {
			t.Errorf("Next = %s, want fraud_investigation", got)
		}
	})

	t.Run("duplicate flag triggers investigation regardless of amount", func(t *testing.T) {
		claim := valid()
		claim.ImageFraudCheck = &domain.DuplicateCheck{IsPotentialDuplicate: true}
		decision := r.Route(claim)
		if decision.Next != domain.ActionFraudInvestigation {
			t.Errorf("Next = %s, want fraud_investigation", decision.Next)
		}
		if decision.Priority != domain.PriorityHigh {
			t.Errorf("Priority = %s, want high", decision.Priority)
		}
	})

	t.Run("document duplicates trigger investigation", func(t *testing.T) {
		claim := valid()
		claim.DocumentReport = &domain.DocumentReport{DuplicateImages: true}
		if got := r.Route(claim).Next; got != domain.ActionFraudInvestigation {
			t.Errorf("Next = %s, want fraud_investigation", got)
		}
	})
}

func TestRouteFraudInvestigationComplete(t *testing.T) {
	r := testRouter()

	t.Run("high score escalates to human review", func(t *testing.T) {
		claim := &domain.ClaimRecord{CurrentStep: domain.StepFraudInvestigationComplete, FraudScore: 0.85}
		if got := r.Route(claim).Next; got != domain.ActionHumanReview {
			t.Errorf("Next = %s, want human_review", got)
		}
	})

	t.Run("moderate score goes to approval", func(t *testing.T) {
		claim := &domain.ClaimRecord{CurrentStep: domain.StepFraudInvestigationComplete, FraudScore: 0.6}
		if got := r.Route(claim).Next; got != domain.ActionApproval {
			t.Errorf("Next = %s, want approval", got)
		}
	})
}

func TestRouteApprovalComplete(t *testing.T) {
	r := testRouter()

	t.Run("needs review escalates", func(t *testing.T) {
		claim := &domain.ClaimRecord{
			CurrentStep:    domain.StepApprovalComplete,
			ApprovalStatus: domain.ApprovalNeedsReview,
		}
		if got := r.Route(claim).Next; got != domain.ActionHumanReview {
			t.Errorf("Next = %s, want human_review", got)
		}
	})

	t.Run("approved completes", func(t *testing.T) {
		claim := &domain.ClaimRecord{
			CurrentStep:    domain.StepApprovalComplete,
			ApprovalStatus: domain.ApprovalApproved,
		}
		if got := r.Route(claim).Next; got != domain.ActionComplete {
			t.Errorf("Next = %s, want complete", got)
		}
	})
}

func TestRouteFailSafe(t *testing.T) {
	r := testRouter()

	t.Run("human review complete", func(t *testing.T) {
		claim := &domain.ClaimRecord{CurrentStep: domain.StepHumanReviewComplete}
		if got := r.Route(claim).Next; got != domain.ActionComplete {
			t.Errorf("Next = %s, want complete", got)
		}
	})

	t.Run("unrecognized step", func(t *testing.T) {
		claim := &domain.ClaimRecord{CurrentStep: "corrupted_state"}
		if got := r.Route(claim).Next; got != domain.ActionComplete {
			t.Errorf("Next = %s, want complete fail-safe", got)
		}
	})
}
