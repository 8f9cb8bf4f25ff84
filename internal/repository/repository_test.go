package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-claims/heron/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "heron-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetClaim", func(t *testing.T) {
		claim := &domain.ClaimRecord{
			ID:           "claim-001",
			TenantID:     tenantID,
			PolicyID:     "pol-001",
			CustomerID:   "cust-001",
			Category:     domain.CategoryCollision,
			Amount:       5000,
			IncidentDate: "2024-05-01",
			FilingDate:   "2024-05-03",
			Photos:       []string{"front.jpg"},
			CurrentStep:  domain.StepStarted,
			CreatedAt:    time.Now().UTC(),
		}

		if err := repo.SaveClaim(ctx, tenantID, claim); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}

		retrieved, err := repo.GetClaim(ctx, tenantID, claim.ID)
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}

		if retrieved.ID != claim.ID {
			t.Errorf("expected ID %s, got %s", claim.ID, retrieved.ID)
		}
		if retrieved.Amount != claim.Amount {
			t.Errorf("expected Amount %.2f, got %.2f", claim.Amount, retrieved.Amount)
		}
		if len(retrieved.Photos) != 1 {
			t.Errorf("expected 1 photo in snapshot, got %d", len(retrieved.Photos))
		}
	})

	t.Run("UpdateClaimSnapshot", func(t *testing.T) {
		claim, err := repo.GetClaim(ctx, tenantID, "claim-001")
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}

		claim.CurrentStep = domain.StepValidationComplete
		claim.Eligibility = &domain.EligibilityReport{Status: domain.EligibilityValid}
		claim.FraudScore = 0.35

		if err := repo.UpdateClaim(ctx, tenantID, claim); err != nil {
			t.Fatalf("UpdateClaim failed: %v", err)
		}

		retrieved, err := repo.GetClaim(ctx, tenantID, claim.ID)
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}
		if retrieved.CurrentStep != domain.StepValidationComplete {
			t.Errorf("expected step %s, got %s", domain.StepValidationComplete, retrieved.CurrentStep)
		}
		if retrieved.Eligibility == nil || retrieved.Eligibility.Status != domain.EligibilityValid {
			t.Error("eligibility report not round-tripped")
		}
		if retrieved.FraudScore != 0.35 {
			t.Errorf("expected FraudScore 0.35, got %v", retrieved.FraudScore)
		}
	})

	t.Run("UpdateMissingClaim", func(t *testing.T) {
		claim := &domain.ClaimRecord{ID: "ghost", CreatedAt: time.Now().UTC()}
		if err := repo.UpdateClaim(ctx, tenantID, claim); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_, err := repo.GetClaim(ctx, "tenant-002", "claim-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		claim := &domain.ClaimRecord{ID: "claim-x", CreatedAt: time.Now().UTC()}

		if err := repo.SaveClaim(ctx, "", claim); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := repo.GetClaim(ctx, "", "claim-001"); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("GetClaimsByCustomer", func(t *testing.T) {
		second := &domain.ClaimRecord{
			ID:          "claim-002",
			TenantID:    tenantID,
			PolicyID:    "pol-001",
			CustomerID:  "cust-001",
			Category:    domain.CategoryCollision,
			Amount:      1200,
			CurrentStep: domain.StepStarted,
			CreatedAt:   time.Now().UTC(),
		}
		if err := repo.SaveClaim(ctx, tenantID, second); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}

		claims, err := repo.GetClaimsByCustomer(ctx, tenantID, "cust-001")
		if err != nil {
			t.Fatalf("GetClaimsByCustomer failed: %v", err)
		}
		if len(claims) != 2 {
			t.Errorf("expected 2 claims, got %d", len(claims))
		}
	})

	t.Run("SaveAndGetPolicy", func(t *testing.T) {
		policy := &domain.Policy{
			ID:            "pol-001",
			CustomerID:    "cust-001",
			CoverageType:  domain.CategoryComprehensive,
			CoverageLimit: 50000,
			Deductible:    500,
			Active:        true,
			StartDate:     "2024-01-01",
			EndDate:       "2024-12-31",
		}

		if err := repo.SavePolicy(ctx, tenantID, policy); err != nil {
			t.Fatalf("SavePolicy failed: %v", err)
		}

		retrieved, err := repo.GetPolicy(ctx, tenantID, policy.ID)
		if err != nil {
			t.Fatalf("GetPolicy failed: %v", err)
		}
		if retrieved.CoverageLimit != 50000 || !retrieved.Active {
			t.Errorf("policy not round-tripped: %+v", retrieved)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}

		// Upsert updates in place.
		policy.Active = false
		if err := repo.SavePolicy(ctx, tenantID, policy); err != nil {
			t.Fatalf("SavePolicy upsert failed: %v", err)
		}
		retrieved, err = repo.GetPolicy(ctx, tenantID, policy.ID)
		if err != nil {
			t.Fatalf("GetPolicy failed: %v", err)
		}
		if retrieved.Active {
			t.Error("upsert did not update the active flag")
		}
	})

	t.Run("SaveAndGetTraversal", func(t *testing.T) {
		tr := &domain.Traversal{
			ID:                "trav-001",
			TenantID:          tenantID,
			ClaimID:           "claim-001",
			EligibilityStatus: domain.EligibilityValid,
			ApprovalStatus:    domain.ApprovalApproved,
			FraudScore:        0.15,
			PayoutAmount:      4500,
			Priority:          domain.PriorityLow,
			History: []domain.AuditEntry{
				{Step: "started", Action: "dispatch document_analyzer", At: time.Now().UTC()},
			},
			Metadata:  domain.TraversalMetadata{WorkersInvoked: 3, RoutingPasses: 4, EngineVersion: "1.0.0"},
			Timestamp: time.Now().UTC(),
		}

		if err := repo.SaveTraversal(ctx, tenantID, tr); err != nil {
			t.Fatalf("SaveTraversal failed: %v", err)
		}

		retrieved, err := repo.GetTraversal(ctx, tenantID, tr.ID)
		if err != nil {
			t.Fatalf("GetTraversal failed: %v", err)
		}
		if retrieved.ApprovalStatus != domain.ApprovalApproved {
			t.Errorf("expected ApprovalStatus APPROVED, got %s", retrieved.ApprovalStatus)
		}
		if retrieved.Metadata.WorkersInvoked != 3 {
			t.Errorf("metadata not round-tripped: %+v", retrieved.Metadata)
		}
		if len(retrieved.History) != 1 {
			t.Errorf("expected 1 history entry, got %d", len(retrieved.History))
		}
	})

	t.Run("SaveAndListPatternRules", func(t *testing.T) {
		rule := &domain.PatternRule{
			ID:         "pattern-high-amount",
			Name:       "High Claim Amount",
			Version:    "1.0",
			Expression: `amount > 30000.0`,
			Reason:     "Claim amount significantly above average",
			Enabled:    true,
		}

		if err := repo.SavePatternRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SavePatternRule failed: %v", err)
		}

		rules, err := repo.ListPatternRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListPatternRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("expected 1 rule, got %d", len(rules))
		}
		if rules[0].Expression != rule.Expression {
			t.Errorf("expression not round-tripped: %q", rules[0].Expression)
		}

		// Disabled rules are excluded from listing.
		rule.Enabled = false
		if err := repo.SavePatternRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SavePatternRule upsert failed: %v", err)
		}
		rules, err = repo.ListPatternRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListPatternRules failed: %v", err)
		}
		if len(rules) != 0 {
			t.Errorf("expected 0 enabled rules, got %d", len(rules))
		}
	})

	t.Run("Fingerprints", func(t *testing.T) {
		fps := []*domain.PhotoFingerprint{
			{ClaimID: "claim-001", PhotoRef: "front.jpg", Digest: "aa,bb,cc", CreatedAt: time.Now().UTC()},
			{ClaimID: "claim-002", PhotoRef: "side.jpg", Digest: "dd,ee", CreatedAt: time.Now().UTC()},
		}
		for _, fp := range fps {
			if err := repo.SaveFingerprint(ctx, tenantID, fp); err != nil {
				t.Fatalf("SaveFingerprint failed: %v", err)
			}
		}

		listed, err := repo.ListFingerprints(ctx, tenantID, "claim-001")
		if err != nil {
			t.Fatalf("ListFingerprints failed: %v", err)
		}
		if len(listed) != 1 {
			t.Fatalf("expected 1 fingerprint after exclusion, got %d", len(listed))
		}
		if listed[0].ClaimID != "claim-002" {
			t.Errorf("excluded claim's fingerprint returned: %s", listed[0].ClaimID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetClaim(ctx, tenantID, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetPolicy(ctx, tenantID, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetTraversal(ctx, tenantID, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
