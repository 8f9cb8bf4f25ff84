package routing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-claims/heron/internal/domain"
)

const engineVersion = "1.0.0"

// Worker contracts invoked by the engine. Each worker mutates the claim
// it receives and never raises for business-rule failures.
type (
	// DocumentAnalyzer assesses submitted artifacts and duplicates.
	DocumentAnalyzer interface {
		Analyze(ctx context.Context, claim *domain.ClaimRecord)
	}

	// Validator runs the eligibility checks.
	Validator interface {
		Validate(ctx context.Context, claim *domain.ClaimRecord)
	}

	// FraudInvestigator produces the adjusted fraud score.
	FraudInvestigator interface {
		Investigate(ctx context.Context, claim *domain.ClaimRecord)
	}

	// ApprovalMaker produces the final verdict and payout.
	ApprovalMaker interface {
		Decide(ctx context.Context, claim *domain.ClaimRecord)
	}
)

// Engine executes one traversal per claim: it asks the router for the
// next action, dispatches the worker, snapshots the claim, and repeats
// until the claim completes. A single traversal is strictly sequential;
// distinct claims may be processed in parallel.
type Engine struct {
	router       *Router
	documents    DocumentAnalyzer
	validator    Validator
	investigator FraudInvestigator
	approver     ApprovalMaker
	repo         domain.Repository
	cfg          domain.ProcessingConfig
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewEngine creates a traversal engine.
func NewEngine(
	router *Router,
	documents DocumentAnalyzer,
	validator Validator,
	investigator FraudInvestigator,
	approver ApprovalMaker,
	repo domain.Repository,
	cfg domain.ProcessingConfig,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		router:       router,
		documents:    documents,
		validator:    validator,
		investigator: investigator,
		approver:     approver,
		repo:         repo,
		cfg:          cfg,
		tracer:       otel.Tracer("heron/routing"),
		logger:       logger.With("component", "routing"),
	}
}

// Process runs a claim from its current step to complete and returns
// the traversal record. Worker and oracle failures degrade inside the
// workers; only persistence failures surface as errors, distinct from
// any claim verdict.
func (e *Engine) Process(ctx context.Context, claim *domain.ClaimRecord) (*domain.Traversal, error) {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "claim.traversal",
		trace.WithAttributes(
			attribute.String("claim.id", claim.ID),
			attribute.String("tenant.id", claim.TenantID),
		))
	defer span.End()

	passes := 0
	workers := 0

	for claim.CurrentStep != domain.StepComplete {
		passes++
		if passes > e.cfg.MaxTraversalSteps {
			claim.AddHistory(string(claim.CurrentStep), "traversal bound reached, forcing completion")
			e.finalize(claim)
			break
		}

		decision := e.router.Route(claim)
		claim.LastDecision = &decision

		e.logger.Debug("routing decision",
			"claim_id", claim.ID,
			"step", claim.CurrentStep,
			"next", decision.Next,
			"priority", decision.Priority,
			"reasoning", decision.Reasoning)

		if decision.Next == domain.ActionComplete {
			claim.AddHistory(string(claim.CurrentStep), "complete: "+decision.Reasoning)
			e.finalize(claim)
			break
		}

		// A worker runs at most once per traversal. A repeat selection
		// means the state table is misconfigured, so halt instead of
		// double-counting audit entries.
		if claim.WasInvoked(decision.Next) {
			claim.AddHistory(string(claim.CurrentStep),
				fmt.Sprintf("halt: %s already invoked this traversal", decision.Next))
			e.finalize(claim)
			break
		}

		claim.AddHistory(string(claim.CurrentStep), "dispatch "+string(decision.Next))

		e.invoke(ctx, decision.Next, claim)
		claim.MarkInvoked(decision.Next)
		workers++

		claim.AddHistory(string(claim.CurrentStep), string(decision.Next)+" finished")

		if err := e.snapshot(ctx, claim); err != nil {
			return nil, fmt.Errorf("persist claim snapshot: %w", err)
		}
	}

	if err := e.snapshot(ctx, claim); err != nil {
		return nil, fmt.Errorf("persist final claim: %w", err)
	}

	tr := e.buildTraversal(claim, span, passes, workers, time.Since(start))
	if e.repo != nil {
		if err := e.repo.SaveTraversal(ctx, claim.TenantID, tr); err != nil {
			return nil, fmt.Errorf("persist traversal: %w", err)
		}
	}

	e.logger.Info("traversal complete",
		"claim_id", claim.ID,
		"tenant_id", claim.TenantID,
		"traversal_id", tr.ID,
		"approval", claim.ApprovalStatus,
		"payout", claim.PayoutAmount,
		"workers", workers,
		"passes", passes,
		"duration_ms", tr.Metadata.TotalMs)

	return tr, nil
}

// invoke dispatches one worker and advances the claim's step.
func (e *Engine) invoke(ctx context.Context, action domain.Action, claim *domain.ClaimRecord) {
	ctx, span := e.tracer.Start(ctx, "claim.worker."+string(action))
	defer span.End()

	switch action {
	case domain.ActionDocumentAnalyzer:
		e.documents.Analyze(ctx, claim)
		claim.CurrentStep = domain.StepDocumentAnalysisComplete

	case domain.ActionValidation:
		e.validator.Validate(ctx, claim)
		claim.CurrentStep = domain.StepValidationComplete

	case domain.ActionFraudInvestigation:
		e.investigator.Investigate(ctx, claim)
		claim.CurrentStep = domain.StepFraudInvestigationComplete

	case domain.ActionApproval:
		e.approver.Decide(ctx, claim)
		claim.CurrentStep = domain.StepApprovalComplete

	case domain.ActionHumanReview:
		e.humanReview(claim)
		claim.CurrentStep = domain.StepHumanReviewComplete
	}
}

// humanReview flags the claim for manual handling. There is no actual
// pause; a reviewer resolves the claim through the API afterwards.
func (e *Engine) humanReview(claim *domain.ClaimRecord) {
	claim.HumanReviewRequired = true
	if claim.LastDecision != nil {
		claim.HumanReviewReason = claim.LastDecision.Reasoning
	} else {
		claim.HumanReviewReason = "escalated for manual review"
	}
	if claim.ApprovalStatus == "" {
		claim.ApprovalStatus = domain.ApprovalNeedsReview
		claim.ApprovalReason = "escalated for manual review before approval"
	}
}

// finalize closes the claim and enforces the terminal invariants: an
// ineligible claim is always DENIED with zero payout.
func (e *Engine) finalize(claim *domain.ClaimRecord) {
	if claim.Eligibility != nil && claim.Eligibility.Status == domain.EligibilityInvalid {
		claim.ApprovalStatus = domain.ApprovalDenied
		if claim.ApprovalReason == "" {
			claim.ApprovalReason = "claim ineligible: " + claim.Eligibility.Reason
		}
		claim.PayoutAmount = 0
	}
	claim.Complete()
}

func (e *Engine) snapshot(ctx context.Context, claim *domain.ClaimRecord) error {
	if e.repo == nil {
		return nil
	}
	return e.repo.UpdateClaim(ctx, claim.TenantID, claim)
}

func (e *Engine) buildTraversal(claim *domain.ClaimRecord, span trace.Span, passes, workers int, elapsed time.Duration) *domain.Traversal {
	tr := &domain.Traversal{
		ID:             uuid.New().String(),
		TenantID:       claim.TenantID,
		ClaimID:        claim.ID,
		ApprovalStatus: claim.ApprovalStatus,
		FraudScore:     claim.FraudScore,
		PayoutAmount:   claim.PayoutAmount,
		HumanReview:    claim.HumanReviewRequired,
		History:        claim.History,
		Summary:        domain.Summarize(claim),
		Metadata: domain.TraversalMetadata{
			WorkersInvoked: workers,
			RoutingPasses:  passes,
			TotalMs:        elapsed.Milliseconds(),
			EngineVersion:  engineVersion,
		},
		Timestamp: time.Now().UTC(),
	}
	if claim.Eligibility != nil {
		tr.EligibilityStatus = claim.Eligibility.Status
	}
	if claim.LastDecision != nil {
		tr.Priority = claim.LastDecision.Priority
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		tr.Metadata.TraceID = sc.TraceID().String()
	}
	return tr
}
