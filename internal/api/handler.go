package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-claims/heron/internal/domain"
	"github.com/opensource-claims/heron/internal/routing"
	"github.com/opensource-claims/heron/internal/rules"
	"github.com/opensource-claims/heron/internal/similarity"
)

// GlobalTenantID is used for pattern rules that apply to all tenants.
const GlobalTenantID = "*"

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	engine     *routing.Engine
	ruleEngine *rules.Engine
	similarity *similarity.Service
	cfg        domain.ProcessingConfig
	version    string

	// async defers claim processing to the worker via the event bus.
	// When false, claims are processed inline on submission.
	async bool
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *routing.Engine, ruleEngine *rules.Engine, sim *similarity.Service, cfg domain.ProcessingConfig, version string, async bool) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		engine:     engine,
		ruleEngine: ruleEngine,
		similarity: sim,
		cfg:        cfg,
		version:    version,
		async:      async,
	}
}

// SubmitResponse is the response for POST /claims.
type SubmitResponse struct {
	ClaimID           string   `json:"claimId"`
	TraversalID       string   `json:"traversalId,omitempty"`
	EligibilityStatus string   `json:"eligibilityStatus,omitempty"`
	ApprovalStatus    string   `json:"approvalStatus,omitempty"`
	FraudScore        float64  `json:"fraudScore"`
	PayoutAmount      float64  `json:"payoutAmount"`
	Priority          string   `json:"priority,omitempty"`
	HumanReview       bool     `json:"humanReview"`
	DuplicateImages   bool     `json:"duplicateImages"`
	Queued            bool     `json:"queued"`
	FraudFlags        []string `json:"fraudFlags,omitempty"`
	Metadata          struct {
		TraceID  string `json:"traceId"`
		IngestMs int64  `json:"ingestMs"`
		TotalMs  int64  `json:"totalMs"`
		Version  string `json:"version"`
	} `json:"metadata"`
}

// SubmitClaim handles POST /claims. It ingests the claim, runs the
// duplicate-image check, indexes the photos, and either processes the
// claim inline or queues it for the async worker.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.PolicyID == "" || req.CustomerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policyId and customerId are required",
		})
		return
	}
	if req.Category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "category is required",
		})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}
	if req.IncidentDate == "" || req.FilingDate == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "incidentDate and filingDate are required",
		})
		return
	}

	claim := req.ToClaim(uuid.New().String(), tenantID)

	// Ingestion-time duplicate check against previously indexed claims,
	// then index this claim's photos for future submissions.
	if h.similarity != nil && len(claim.Photos) > 0 {
		claim.ImageFraudCheck = h.similarity.CheckClaim(ctx, claim)
		if err := h.similarity.IndexClaim(ctx, claim); err != nil {
			slog.Error("failed to index claim photos", "claim_id", claim.ID, "error", err)
		}
	}

	ingestMs := time.Since(start).Milliseconds()

	if h.repo != nil {
		if err := h.repo.SaveClaim(ctx, tenantID, claim); err != nil {
			slog.Error("failed to save claim", "claim_id", claim.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save claim",
			})
			return
		}
	}

	// Async mode: hand off to the worker and return immediately.
	if h.async && h.bus != nil {
		payload, _ := json.Marshal(map[string]string{
			"claimId":  claim.ID,
			"tenantId": tenantID,
			"traceId":  traceID,
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicClaimSubmitted, payload); err != nil {
			slog.Error("failed to queue claim", "claim_id", claim.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to queue claim",
			})
			return
		}

		resp := SubmitResponse{
			ClaimID: claim.ID,
			Queued:  true,
		}
		if claim.ImageFraudCheck != nil {
			resp.DuplicateImages = claim.ImageFraudCheck.IsPotentialDuplicate
		}
		resp.Metadata.TraceID = traceID
		resp.Metadata.IngestMs = ingestMs
		resp.Metadata.TotalMs = time.Since(start).Milliseconds()
		resp.Metadata.Version = h.version

		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	// Inline processing.
	traversal, err := h.engine.Process(ctx, claim)
	if err != nil {
		slog.Error("claim processing failed", "claim_id", claim.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "claim processing failed",
		})
		return
	}

	resp := SubmitResponse{
		ClaimID:           claim.ID,
		TraversalID:       traversal.ID,
		EligibilityStatus: traversal.EligibilityStatus,
		ApprovalStatus:    traversal.ApprovalStatus,
		FraudScore:        traversal.FraudScore,
		PayoutAmount:      traversal.PayoutAmount,
		Priority:          string(traversal.Priority),
		HumanReview:       traversal.HumanReview,
		FraudFlags:        claim.FraudFlags,
	}
	if claim.ImageFraudCheck != nil {
		resp.DuplicateImages = claim.ImageFraudCheck.IsPotentialDuplicate
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.IngestMs = ingestMs
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// GetClaim retrieves a claim by ID.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	claimID := chi.URLParam(r, "id")

	if claimID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claim id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	claim, err := h.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		slog.Error("failed to get claim", "id", claimID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "claim not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// ListClaims returns all claims for the tenant.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	claims, err := h.repo.ListClaims(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list claims", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list claims",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"claims": claims,
		"count":  len(claims),
	})
}

// GetTraversal retrieves a traversal record by ID.
func (h *Handler) GetTraversal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traversalID := chi.URLParam(r, "id")

	if traversalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "traversal id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tr, err := h.repo.GetTraversal(ctx, tenantID, traversalID)
	if err != nil {
		slog.Error("failed to get traversal", "id", traversalID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "traversal not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tr)
}

// CreatePolicy saves a policy for the tenant.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var policy domain.Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if policy.ID == "" || policy.CoverageType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and coverageType are required",
		})
		return
	}
	if policy.CoverageLimit <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "coverageLimit must be positive",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SavePolicy(ctx, tenantID, &policy); err != nil {
		slog.Error("failed to save policy", "id", policy.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save policy",
		})
		return
	}

	slog.Info("policy saved", "id", policy.ID, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, &policy)
}

// GetPolicy retrieves a policy by ID.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	policy, err := h.repo.GetPolicy(ctx, tenantID, policyID)
	if err != nil {
		slog.Error("failed to get policy", "id", policyID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "policy not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, policy)
}

// ListPolicies returns all policies for the tenant.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	policies, err := h.repo.ListPolicies(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list policies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list policies",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policies": policies,
		"count":    len(policies),
	})
}

// ImageCheckRequest is the request body for POST /images/check.
type ImageCheckRequest struct {
	Photos         []string `json:"photos"`
	ExcludeClaimID string   `json:"excludeClaimId,omitempty"`
}

// CheckImages runs the duplicate-image check against indexed claims
// without submitting a claim.
func (h *Handler) CheckImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req ImageCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Photos) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "photos are required",
		})
		return
	}

	if h.similarity == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "similarity service not available",
		})
		return
	}

	probe := &domain.ClaimRecord{
		ID:       req.ExcludeClaimID,
		TenantID: tenantID,
		Photos:   req.Photos,
	}

	check := h.similarity.CheckClaim(ctx, probe)
	writeJSON(w, http.StatusOK, check)
}

// ListRules returns all pattern rules loaded in the engine.
// Rules come from the built-in set plus the database and can be
// reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.ruleEngine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a pattern rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.ruleEngine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a pattern rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Reason      string `json:"reason"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule creates a new pattern rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "reason is required",
		})
		return
	}

	rule := &domain.PatternRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0",
		Expression:  req.Expression,
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.ruleEngine.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SavePatternRule(ctx, GlobalTenantID, rule); err != nil {
			slog.Error("failed to save pattern rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("pattern rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads pattern rules from the database into the engine.
// The built-in rule set is always retained; database rules with the
// same ID override it. This enables hot-reloading without restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListPatternRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list pattern rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	allRules := append(rules.BuiltinRules(), dbRules...)
	if err := h.ruleEngine.ReloadRules(allRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("pattern rules reloaded", "database_count", len(dbRules), "total", h.ruleEngine.RulesCount())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   h.ruleEngine.RulesCount(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
