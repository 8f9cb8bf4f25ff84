package eligibility

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/opensource-claims/heron/internal/domain"
)

type stubPolicyOracle struct {
	policy *domain.Policy
	err    error
}

func (s *stubPolicyOracle) GetPolicy(_ context.Context, _, _ string) (*domain.Policy, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.policy, nil
}

func (s *stubPolicyOracle) CheckCoverage(_ context.Context, _, _, _, _ string) (*domain.CoverageDecision, error) {
	return &domain.CoverageDecision{Covered: true}, nil
}

func daysAgo(n int) string {
	return time.Now().UTC().AddDate(0, 0, -n).Format("2006-01-02")
}

func validClaim() *domain.ClaimRecord {
	return &domain.ClaimRecord{
		ID:             "CLM-1",
		TenantID:       "tenant-a",
		PolicyID:       "POL-1",
		CustomerID:     "CUST-1",
		IncidentDate:   daysAgo(5),
		FilingDate:     daysAgo(0),
		Category:       domain.CategoryCollision,
		Description:    "rear-ended at intersection, bumper and trunk damage",
		RepairShop:     "certified_auto",
		Amount:         5000,
		Photos:         []string{"photo1.jpg", "photo2.jpg"},
		IncidentReport: "police report #8841",
		RepairEstimate: "estimate from certified_auto",
	}
}

func activePolicy() *domain.Policy {
	return &domain.Policy{
		ID:            "POL-1",
		CustomerID:    "CUST-1",
		CoverageType:  domain.CategoryComprehensive,
		CoverageLimit: 50000,
		Deductible:    500,
		Active:        true,
	}
}

func newChecker(oracle domain.PolicyOracle) *Checker {
	return NewChecker(oracle, domain.DefaultProcessing(), slog.New(slog.NewTextHandler(testWriter{}, nil)))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestValidateAllChecksPass(t *testing.T) {
	claim := validClaim()
	c := newChecker(&stubPolicyOracle{policy: activePolicy()})

	c.Validate(context.Background(), claim)

	if claim.Eligibility == nil {
		t.Fatal("eligibility report not written")
	}
	if claim.Eligibility.Status != domain.EligibilityValid {
		t.Fatalf("status = %s, want VALID (reason: %s)", claim.Eligibility.Status, claim.Eligibility.Reason)
	}
	if len(claim.Eligibility.Checks) != 5 {
		t.Errorf("expected 5 checks, got %d", len(claim.Eligibility.Checks))
	}
	if claim.Policy == nil {
		t.Error("policy not cached onto claim")
	}
}

func TestValidateFilingTimeline(t *testing.T) {
	t.Run("late filing", func(t *testing.T) {
		claim := validClaim()
		claim.IncidentDate = daysAgo(45)
		c := newChecker(&stubPolicyOracle{policy: activePolicy()})

		c.Validate(context.Background(), claim)

		if claim.Eligibility.Status != domain.EligibilityInvalid {
			t.Fatal("expected INVALID for 45-day filing gap")
		}
		if claim.Eligibility.Checks[CheckFilingTimeline].Status != domain.CheckFail {
			t.Error("filing timeline check did not fail")
		}
	})

	t.Run("malformed date fails without raising", func(t *testing.T) {
		claim := validClaim()
		claim.IncidentDate = "yesterday-ish"
		c := newChecker(&stubPolicyOracle{policy: activePolicy()})

		c.Validate(context.Background(), claim)

		res := claim.Eligibility.Checks[CheckFilingTimeline]
		if res.Status != domain.CheckFail {
			t.Fatal("expected FAIL for malformed incident date")
		}
		if !strings.Contains(res.Reason, "unparsable") {
			t.Errorf("reason = %q, want parsing-error reason", res.Reason)
		}
	})

	t.Run("filing before incident", func(t *testing.T) {
		claim := validClaim()
		claim.IncidentDate = daysAgo(0)
		claim.FilingDate = daysAgo(3)
		c := newChecker(&stubPolicyOracle{policy: activePolicy()})

		c.Validate(context.Background(), claim)

		if claim.Eligibility.Checks[CheckFilingTimeline].Status != domain.CheckFail {
			t.Error("expected FAIL when filing precedes incident")
		}
	})
}

func TestValidatePolicyActive(t *testing.T) {
	t.Run("inactive policy", func(t *testing.T) {
		p := activePolicy()
		p.Active = false
		claim := validClaim()
		c := newChecker(&stubPolicyOracle{policy: p})

		c.Validate(context.Background(), claim)

		if claim.Eligibility.Status != domain.EligibilityInvalid {
			t.Fatal("expected INVALID for inactive policy")
		}
		if claim.Eligibility.Checks[CheckPolicyActive].Status != domain.CheckFail {
			t.Error("policy active check did not fail")
		}
	})

	t.Run("policy not found degrades to FAIL", func(t *testing.T) {
		claim := validClaim()
		c := newChecker(&stubPolicyOracle{err: domain.ErrPolicyNotFound})

		c.Validate(context.Background(), claim)

		res := claim.Eligibility.Checks[CheckPolicyActive]
		if res.Status != domain.CheckFail {
			t.Fatal("expected FAIL for missing policy")
		}
		if !strings.Contains(res.Reason, "not found") {
			t.Errorf("reason = %q, want not-found reason", res.Reason)
		}
	})

	t.Run("incident outside validity window", func(t *testing.T) {
		p := activePolicy()
		p.StartDate = "2020-01-01"
		p.EndDate = "2020-12-31"
		claim := validClaim()
		c := newChecker(&stubPolicyOracle{policy: p})

		c.Validate(context.Background(), claim)

		if claim.Eligibility.Checks[CheckPolicyActive].Status != domain.CheckFail {
			t.Error("expected FAIL for incident outside policy window")
		}
	})
}

func TestValidateCoverageMatch(t *testing.T) {
	t.Run("collision policy rejects comprehensive claim", func(t *testing.T) {
		p := activePolicy()
		p.CoverageType = domain.CategoryCollision
		claim := validClaim()
		claim.Category = domain.CategoryComprehensive
		c := newChecker(&stubPolicyOracle{policy: p})

		c.Validate(context.Background(), claim)

		if claim.Eligibility.Checks[CheckCoverageMatch].Status != domain.CheckFail {
			t.Error("expected coverage-match FAIL")
		}
		if claim.Eligibility.Status != domain.EligibilityInvalid {
			t.Error("expected INVALID verdict")
		}
	})

	t.Run("comprehensive covers liability", func(t *testing.T) {
		claim := validClaim()
		claim.Category = domain.CategoryLiability
		c := newChecker(&stubPolicyOracle{policy: activePolicy()})

		c.Validate(context.Background(), claim)

		if claim.Eligibility.Checks[CheckCoverageMatch].Status != domain.CheckPass {
			t.Error("comprehensive policy should cover liability claims")
		}
	})
}

func TestValidateDocuments(t *testing.T) {
	claim := validClaim()
	claim.Photos = nil
	claim.IncidentReport = ""
	claim.RepairEstimate = "  "
	c := newChecker(&stubPolicyOracle{policy: activePolicy()})

	c.Validate(context.Background(), claim)

	res := claim.Eligibility.Checks[CheckDocuments]
	if res.Status != domain.CheckFail {
		t.Fatal("expected documents FAIL")
	}
	for _, want := range []string{"photos", "incident report", "repair estimate"} {
		if !strings.Contains(res.Reason, want) {
			t.Errorf("reason %q missing %q", res.Reason, want)
		}
	}
}

func TestValidateEstimate(t *testing.T) {
	t.Run("zero amount", func(t *testing.T) {
		claim := validClaim()
		claim.Amount = 0
		c := newChecker(&stubPolicyOracle{policy: activePolicy()})

		c.Validate(context.Background(), claim)

		if claim.Eligibility.Checks[CheckEstimate].Status != domain.CheckFail {
			t.Error("expected FAIL for zero amount")
		}
	})

	t.Run("amount above 1.5x limit", func(t *testing.T) {
		claim := validClaim()
		claim.Amount = 80000
		c := newChecker(&stubPolicyOracle{policy: activePolicy()})

		c.Validate(context.Background(), claim)

		if claim.Eligibility.Checks[CheckEstimate].Status != domain.CheckFail {
			t.Error("expected FAIL for amount above 1.5x coverage limit")
		}
	})

	t.Run("fallback limit when policy missing", func(t *testing.T) {
		claim := validClaim()
		claim.Amount = 60000
		c := newChecker(&stubPolicyOracle{err: domain.ErrPolicyNotFound})

		c.Validate(context.Background(), claim)

		// 60000 <= 1.5 * 50000 fallback
		if claim.Eligibility.Checks[CheckEstimate].Status != domain.CheckPass {
			t.Error("estimate check should use 50000 fallback limit")
		}
	})
}

func TestValidateIdempotent(t *testing.T) {
	claim := validClaim()
	c := newChecker(&stubPolicyOracle{policy: activePolicy()})

	c.Validate(context.Background(), claim)
	first := *claim.Eligibility

	c.Validate(context.Background(), claim)
	second := *claim.Eligibility

	if first.Status != second.Status || first.Reason != second.Reason {
		t.Errorf("re-validation changed verdict: %+v vs %+v", first, second)
	}
}
