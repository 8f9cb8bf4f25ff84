package routing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/opensource-claims/heron/internal/approval"
	"github.com/opensource-claims/heron/internal/document"
	"github.com/opensource-claims/heron/internal/domain"
	"github.com/opensource-claims/heron/internal/eligibility"
	"github.com/opensource-claims/heron/internal/fraud"
	"github.com/opensource-claims/heron/internal/rules"
)

// Stub collaborators with deterministic outputs.

type stubDamage struct{ total float64 }

func (s *stubDamage) Analyze(_ context.Context, _ []string, _ float64) (*domain.DamageAssessment, error) {
	return &domain.DamageAssessment{TotalRepairCost: s.total, Severity: "moderate", Confidence: 0.8}, nil
}

type stubFraudOracle struct{ score float64 }

func (s *stubFraudOracle) Score(_ context.Context, _ domain.FraudInput) (*domain.FraudAssessment, error) {
	return &domain.FraudAssessment{Score: s.score, Confidence: 0.85}, nil
}

type stubPolicies struct{ policy *domain.Policy }

func (s *stubPolicies) GetPolicy(_ context.Context, _, _ string) (*domain.Policy, error) {
	if s.policy == nil {
		return nil, domain.ErrPolicyNotFound
	}
	return s.policy, nil
}

func (s *stubPolicies) CheckCoverage(_ context.Context, _, _, _, _ string) (*domain.CoverageDecision, error) {
	return &domain.CoverageDecision{Covered: true}, nil
}

type stubSimilarity struct{ matches []domain.SimilarImage }

func (s *stubSimilarity) FindSimilar(_ context.Context, _, _, _ string, _ int) ([]domain.SimilarImage, error) {
	return s.matches, nil
}

type stubHistory struct{ count int }

func (s *stubHistory) CountClaims(_ context.Context, _, _ string) (int, error) {
	return s.count, nil
}

// memRepo records snapshots and traversals.
type memRepo struct {
	updates    int
	traversals []*domain.Traversal
}

func (m *memRepo) SaveClaim(context.Context, string, *domain.ClaimRecord) error { return nil }
func (m *memRepo) UpdateClaim(context.Context, string, *domain.ClaimRecord) error {
	m.updates++
	return nil
}
func (m *memRepo) GetClaim(context.Context, string, string) (*domain.ClaimRecord, error) {
	return nil, nil
}
func (m *memRepo) ListClaims(context.Context, string) ([]*domain.ClaimRecord, error) {
	return nil, nil
}
func (m *memRepo) GetClaimsByCustomer(context.Context, string, string) ([]*domain.ClaimRecord, error) {
	return nil, nil
}
func (m *memRepo) SavePolicy(context.Context, string, *domain.Policy) error { return nil }
func (m *memRepo) GetPolicy(context.Context, string, string) (*domain.Policy, error) {
	return nil, nil
}
func (m *memRepo) ListPolicies(context.Context, string) ([]*domain.Policy, error) { return nil, nil }
func (m *memRepo) SaveTraversal(_ context.Context, _ string, tr *domain.Traversal) error {
	m.traversals = append(m.traversals, tr)
	return nil
}
func (m *memRepo) GetTraversal(context.Context, string, string) (*domain.Traversal, error) {
	return nil, nil
}
func (m *memRepo) SavePatternRule(context.Context, string, *domain.PatternRule) error { return nil }
func (m *memRepo) ListPatternRules(context.Context, string) ([]*domain.PatternRule, error) {
	return nil, nil
}
func (m *memRepo) SaveFingerprint(context.Context, string, *domain.PhotoFingerprint) error {
	return nil
}
func (m *memRepo) ListFingerprints(context.Context, string, string) ([]*domain.PhotoFingerprint, error) {
	return nil, nil
}
func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type engineDeps struct {
	damage     *stubDamage
	fraudO     *stubFraudOracle
	policies   *stubPolicies
	similarity *stubSimilarity
	history    *stubHistory
	repo       *memRepo
}

func defaultDeps() *engineDeps {
	return &engineDeps{
		damage: &stubDamage{total: 5000},
		fraudO: &stubFraudOracle{score: 0.15},
		policies: &stubPolicies{policy: &domain.Policy{
			ID:            "POL-1",
			CustomerID:    "CUST-1",
			CoverageType:  domain.CategoryComprehensive,
			CoverageLimit: 50000,
			Deductible:    500,
			Active:        true,
		}},
		similarity: &stubSimilarity{},
		history:    &stubHistory{count: 1},
		repo:       &memRepo{},
	}
}

func newTestEngine(t *testing.T, deps *engineDeps) *Engine {
	t.Helper()

	cfg := domain.DefaultProcessing()
	logger := quietLogger()

	engine, err := rules.NewEngine(2)
	if err != nil {
		t.Fatalf("rules.NewEngine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	return NewEngine(
		NewRouter(cfg),
		document.NewChecker(deps.damage, deps.similarity, cfg, logger),
		eligibility.NewChecker(deps.policies, cfg, logger),
		fraud.NewInvestigator(deps.fraudO, engine, deps.history, cfg, logger),
		approval.NewMaker(deps.damage, deps.fraudO, deps.policies, cfg, logger),
		deps.repo,
		cfg,
		logger,
	)
}

func submittedClaim() *domain.ClaimRecord {
	req := &domain.ClaimRequest{
		PolicyID:       "POL-1",
		CustomerID:     "CUST-1",
		IncidentDate:   daysAgo(5),
		FilingDate:     daysAgo(0),
		Category:       domain.CategoryCollision,
		Description:    "rear-ended at an intersection, trunk will not close",
		RepairShop:     "midtown motors",
		Amount:         5000,
		Photos:         []string{"damage1.jpg"},
		IncidentReport: "police report #1234",
		RepairEstimate: "estimate attached",
	}
	return req.ToClaim("CLM-1", "tenant-a")
}

func TestProcessCleanClaimApproved(t *testing.T) {
	deps := defaultDeps()
	engine := newTestEngine(t, deps)
	claim := submittedClaim()

	tr, err := engine.Process(context.Background(), claim)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if claim.CurrentStep != domain.StepComplete {
		t.Errorf("CurrentStep = %s, want complete", claim.CurrentStep)
	}
	if claim.Eligibility.Status != domain.EligibilityValid {
		t.Errorf("Eligibility = %s, want VALID (%s)", claim.Eligibility.Status, claim.Eligibility.Reason)
	}
	if claim.ApprovalStatus != domain.ApprovalApproved {
		t.Errorf("ApprovalStatus = %s, want APPROVED", claim.ApprovalStatus)
	}
	if claim.PayoutAmount != 4500 {
		t.Errorf("PayoutAmount = %v, want 4500", claim.PayoutAmount)
	}
	if claim.ProcessingDays != 2 {
		t.Errorf("ProcessingDays = %d, want 2", claim.ProcessingDays)
	}
	if claim.HumanReviewRequired {
		t.Error("clean claim must not require human review")
	}
	if claim.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	if tr.Metadata.WorkersInvoked != 3 {
		t.Errorf("WorkersInvoked = %d, want 3 (documents, validation, approval)", tr.Metadata.WorkersInvoked)
	}
	if tr.EligibilityStatus != domain.EligibilityValid {
		t.Errorf("traversal EligibilityStatus = %s", tr.EligibilityStatus)
	}
	if len(deps.repo.traversals) != 1 {
		t.Fatalf("traversals saved = %d, want 1", len(deps.repo.traversals))
	}
	if deps.repo.updates == 0 {
		t.Error("no claim snapshots persisted")
	}
}

func TestProcessLateFilingDenied(t *testing.T) {
	deps := defaultDeps()
	engine := newTestEngine(t, deps)
	claim := submittedClaim()
	claim.IncidentDate = daysAgo(45)

	if _, err := engine.Process(context.Background(), claim); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if claim.Eligibility.Status != domain.EligibilityInvalid {
		t.Fatal("expected INVALID for 45-day filing gap")
	}
	if claim.ApprovalStatus != domain.ApprovalDenied {
		t.Errorf("ApprovalStatus = %s, want DENIED", claim.ApprovalStatus)
	}
	if claim.PayoutAmount != 0 {
		t.Errorf("PayoutAmount = %v, want 0", claim.PayoutAmount)
	}
	if claim.ApprovalReason == "" {
		t.Error("denial must carry a displayable reason")
	}
}

func TestProcessInactivePolicyDenied(t *testing.T) {
	deps := defaultDeps()
	deps.policies.policy.Active = false
	engine := newTestEngine(t, deps)
	claim := submittedClaim()

	if _, err := engine.Process(context.Background(), claim); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if claim.ApprovalStatus != domain.ApprovalDenied {
		t.Errorf("ApprovalStatus = %s, want DENIED", claim.ApprovalStatus)
	}
	if claim.PayoutAmount != 0 {
		t.Errorf("PayoutAmount = %v, want 0", claim.PayoutAmount)
	}
}

func TestProcessCoverageMismatchDenied(t *testing.T) {
	deps := defaultDeps()
	deps.policies.policy.CoverageType = domain.CategoryCollision
	engine := newTestEngine(t, deps)
	claim := submittedClaim()
	claim.Category = domain.CategoryComprehensive

	if _, err := engine.Process(context.Background(), claim); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if claim.ApprovalStatus != domain.ApprovalDenied {
		t.Errorf("ApprovalStatus = %s, want DENIED", claim.ApprovalStatus)
	}
}

func TestProcessMissingDocumentsDenied(t *testing.T) {
	deps := defaultDeps()
	engine := newTestEngine(t, deps)
	claim := submittedClaim()
	claim.Photos = nil
	claim.IncidentReport = ""
	claim.RepairEstimate = ""

	tr, err := engine.Process(context.Background(), claim)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if claim.ApprovalStatus != domain.ApprovalDenied {
		t.Errorf("ApprovalStatus = %s, want DENIED", claim.ApprovalStatus)
	}
	// No photos means the document analyzer is skipped entirely.
	if tr.Metadata.WorkersInvoked != 1 {
		t.Errorf("WorkersInvoked = %d, want 1 (validation only)", tr.Metadata.WorkersInvoked)
	}
}

func TestProcessDuplicateImagesEscalate(t *testing.T) {
	deps := defaultDeps()
	deps.fraudO.score = 0.35
	deps.similarity.matches = []domain.SimilarImage{{ClaimID: "CLM-88", Similarity: 0.9}}
	deps.history.count = 5
	engine := newTestEngine(t, deps)

	claim := submittedClaim()
	claim.Amount = 4000
	claim.ImageFraudCheck = &domain.DuplicateCheck{
		IsPotentialDuplicate: true,
		SimilarClaims:        []string{"CLM-88"},
		HighestSimilarity:    0.9,
	}

	tr, err := engine.Process(context.Background(), claim)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if !claim.WasInvoked(domain.ActionFraudInvestigation) {
		t.Fatal("duplicate flag must route through fraud investigation regardless of amount")
	}
	if claim.FraudScore <= 0.8 {
		t.Errorf("FraudScore = %v, want > 0.8 after stacked escalations", claim.FraudScore)
	}
	if !claim.HumanReviewRequired {
		t.Error("expected human review escalation")
	}
	if claim.ApprovalStatus != domain.ApprovalNeedsReview {
		t.Errorf("ApprovalStatus = %s, want NEEDS_REVIEW", claim.ApprovalStatus)
	}
	found := false
	for _, f := range claim.FraudFlags {
		if f == fraud.FlagDuplicateImage {
			found = true
		}
	}
	if !found {
		t.Errorf("FraudFlags = %v, want duplicate-image flag", claim.FraudFlags)
	}
	if !tr.HumanReview {
		t.Error("traversal record must carry the human review flag")
	}
}

func TestProcessMonotonicStateAdvance(t *testing.T) {
	rank := map[domain.Step]int{
		domain.StepStarted:                    0,
		domain.StepDocumentAnalysisComplete:   1,
		domain.StepValidationComplete:         2,
		domain.StepFraudInvestigationComplete: 3,
		domain.StepApprovalComplete:           4,
		domain.StepHumanReviewComplete:        5,
		domain.StepComplete:                   6,
	}

	deps := defaultDeps()
	engine := newTestEngine(t, deps)
	claim := submittedClaim()

	if _, err := engine.Process(context.Background(), claim); err != nil {
		t.Fatalf("Process: %v", err)
	}

	prev := -1
	for _, entry := range claim.History {
		r, ok := rank[domain.Step(entry.Step)]
		if !ok {
			t.Fatalf("unknown step in history: %s", entry.Step)
		}
		if r < prev {
			t.Fatalf("state regressed: %s after rank %d", entry.Step, prev)
		}
		prev = r
	}
}

func TestProcessFailSafeOnCorruptedStep(t *testing.T) {
	deps := defaultDeps()
	engine := newTestEngine(t, deps)
	claim := submittedClaim()
	claim.CurrentStep = "corrupted_state"

	if _, err := engine.Process(context.Background(), claim); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if claim.CurrentStep != domain.StepComplete {
		t.Errorf("CurrentStep = %s, want complete fail-safe", claim.CurrentStep)
	}
}

func TestProcessFraudScoreStaysBounded(t *testing.T) {
	deps := defaultDeps()
	deps.fraudO.score = 0.95
	deps.similarity.matches = []domain.SimilarImage{{ClaimID: "CLM-88", Similarity: 0.99}}
	deps.history.count = 10
	engine := newTestEngine(t, deps)

	claim := submittedClaim()
	claim.Amount = 60000
	claim.ImageFraudCheck = &domain.DuplicateCheck{IsPotentialDuplicate: true}

	if _, err := engine.Process(context.Background(), claim); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if claim.FraudScore < 0 || claim.FraudScore > 1 {
		t.Errorf("FraudScore = %v, want within [0, 1]", claim.FraudScore)
	}
}
