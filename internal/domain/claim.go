// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"time"
)

// Step marks a claim's position in the processing workflow.
// Steps only advance forward; the routing core never revisits one.
type Step string

const (
	StepStarted                    Step = "started"
	StepDocumentAnalysisComplete   Step = "document_analysis_complete"
	StepValidationComplete         Step = "validation_complete"
	StepFraudInvestigationComplete Step = "fraud_investigation_complete"
	StepApprovalComplete           Step = "approval_complete"
	StepHumanReviewComplete        Step = "human_review_complete"
	StepComplete                   Step = "complete"
)

// Action is a routing target selected by the supervisor.
type Action string

const (
	ActionDocumentAnalyzer   Action = "document_analyzer"
	ActionValidation         Action = "validation"
	ActionFraudInvestigation Action = "fraud_investigation"
	ActionApproval           Action = "approval"
	ActionHumanReview        Action = "human_review"
	ActionComplete           Action = "complete"
)

// Priority buckets assigned by complexity analysis.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Eligibility and approval verdicts.
const (
	EligibilityValid   = "VALID"
	EligibilityInvalid = "INVALID"

	ApprovalApproved    = "APPROVED"
	ApprovalDenied      = "DENIED"
	ApprovalNeedsReview = "NEEDS_REVIEW"
)

// Individual check outcomes within the eligibility report.
const (
	CheckPass = "PASS"
	CheckFail = "FAIL"
)

// Claim categories.
const (
	CategoryCollision     = "collision"
	CategoryComprehensive = "comprehensive"
	CategoryLiability     = "liability"
)

// HighRiskCategories always trigger extra scrutiny in routing.
var HighRiskCategories = map[string]bool{
	"total_loss": true,
	"theft":      true,
	"vandalism":  true,
	"fire":       true,
}

// ClaimRecord is the single mutable state object threaded through the
// pipeline. The routing core owns it during a traversal; each worker
// receives exclusive write access for the duration of its call.
type ClaimRecord struct {
	// Identity. ID is assigned once at creation and never reassigned.
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	PolicyID   string `json:"policyId"`
	CustomerID string `json:"customerId"`

	// Input facts. Dates are kept as submitted strings; malformed dates
	// become FAIL verdicts in checkers rather than parse errors.
	IncidentDate   string   `json:"incidentDate"`
	FilingDate     string   `json:"filingDate"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	RepairShop     string   `json:"repairShop"`
	Amount         float64  `json:"amount"`
	Photos         []string `json:"photos"`
	IncidentReport string   `json:"incidentReport"`
	RepairEstimate string   `json:"repairEstimate"`

	// Derived oracle outputs.
	DamageAssessment *DamageAssessment `json:"damageAssessment,omitempty"`
	FraudAssessment  *FraudAssessment  `json:"fraudAssessment,omitempty"`
	Policy           *Policy           `json:"policy,omitempty"`
	DocumentReport   *DocumentReport   `json:"documentReport,omitempty"`
	ImageFraudCheck  *DuplicateCheck   `json:"imageFraudCheck,omitempty"`
	Investigation    *Investigation    `json:"investigation,omitempty"`

	FraudScore float64  `json:"fraudScore"`
	FraudFlags []string `json:"fraudFlags,omitempty"`

	// Workflow control.
	CurrentStep  Step            `json:"currentStep"`
	LastDecision *RouteDecision  `json:"lastDecision,omitempty"`
	History      []AuditEntry    `json:"history,omitempty"`
	Invoked      map[Action]bool `json:"invoked,omitempty"`

	// Outcomes.
	Eligibility         *EligibilityReport `json:"eligibility,omitempty"`
	ApprovalStatus      string             `json:"approvalStatus,omitempty"`
	ApprovalReason      string             `json:"approvalReason,omitempty"`
	PayoutAmount        float64            `json:"payoutAmount"`
	Deductible          float64            `json:"deductible"`
	ProcessingDays      int                `json:"processingDays"`
	HumanReviewRequired bool               `json:"humanReviewRequired"`
	HumanReviewReason   string             `json:"humanReviewReason,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// MarkInvoked records that a worker has run during this traversal.
func (c *ClaimRecord) MarkInvoked(a Action) {
	if c.Invoked == nil {
		c.Invoked = make(map[Action]bool)
	}
	c.Invoked[a] = true
}

// WasInvoked reports whether a worker already ran during this traversal.
func (c *ClaimRecord) WasInvoked(a Action) bool {
	return c.Invoked[a]
}

// AddHistory appends one audit entry to the workflow history.
func (c *ClaimRecord) AddHistory(step, action string) {
	c.History = append(c.History, AuditEntry{
		Step:   step,
		Action: action,
		At:     time.Now().UTC(),
	})
}

// Complete marks the record immutable at the end of a traversal.
func (c *ClaimRecord) Complete() {
	now := time.Now().UTC()
	c.CurrentStep = StepComplete
	c.CompletedAt = &now
}

// AuditEntry is one line of the deterministic audit trail.
type AuditEntry struct {
	Step   string    `json:"step"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// RouteDecision is the supervisor's output for one routing evaluation.
type RouteDecision struct {
	Next      Action   `json:"next"`
	Reasoning string   `json:"reasoning"`
	Priority  Priority `json:"priority"`
}

// CheckResult is a single eligibility check outcome.
type CheckResult struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// EligibilityReport aggregates the five eligibility checks.
type EligibilityReport struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
	Reason string                 `json:"reason"`
}

// Policy holds coverage details resolved from the policy oracle.
type Policy struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenantId,omitempty"`
	CustomerID    string  `json:"customerId"`
	CoverageType  string  `json:"coverageType"`
	CoverageLimit float64 `json:"coverageLimit"`
	Deductible    float64 `json:"deductible"`
	Active        bool    `json:"active"`
	StartDate     string  `json:"startDate,omitempty"`
	EndDate       string  `json:"endDate,omitempty"`
}

// DamagedPart is one component identified by the damage oracle.
type DamagedPart struct {
	Part          string  `json:"part"`
	Severity      string  `json:"severity"`
	EstimatedCost float64 `json:"estimatedCost"`
}

// DamageAssessment is the damage oracle's structured result.
type DamageAssessment struct {
	Parts           []DamagedPart `json:"parts"`
	TotalRepairCost float64       `json:"totalRepairCost"`
	Confidence      float64       `json:"confidence"`
	Severity        string        `json:"severity"`
	Notes           string        `json:"notes,omitempty"`
}

// FraudAssessment is the fraud oracle's structured result.
type FraudAssessment struct {
	Score          float64  `json:"score"`
	Indicators     []string `json:"indicators"`
	RiskLevel      string   `json:"riskLevel"`
	Recommendation string   `json:"recommendation"`
	Confidence     float64  `json:"confidence"`
}

// DocumentReport is the document checker's quality assessment.
type DocumentReport struct {
	PhotosAnalyzed      int      `json:"photosAnalyzed"`
	QualityScore        int      `json:"qualityScore"`
	Issues              []string `json:"issues,omitempty"`
	DuplicateImages     bool     `json:"duplicateImages"`
	SimilarClaims       []string `json:"similarClaims,omitempty"`
	EstimatedRepairCost float64  `json:"estimatedRepairCost"`
}

// DuplicateCheck is the ingestion-time image similarity verdict.
type DuplicateCheck struct {
	IsPotentialDuplicate bool     `json:"isPotentialDuplicate"`
	SimilarClaims        []string `json:"similarClaims,omitempty"`
	HighestSimilarity    float64  `json:"highestSimilarity"`
}

// Investigation holds the fraud investigator's findings.
type Investigation struct {
	RiskFactors       []string `json:"riskFactors,omitempty"`
	MitigatingFactors []string `json:"mitigatingFactors,omitempty"`
	Recommendation    string   `json:"recommendation"`
	Confidence        float64  `json:"confidence"`
	ShopRisk          string   `json:"shopRisk,omitempty"`
	ShopReason        string   `json:"shopReason,omitempty"`
	PriorClaims       int      `json:"priorClaims"`
}

// ClaimRequest is the API request payload for claim submission.
type ClaimRequest struct {
	PolicyID       string   `json:"policyId"`
	CustomerID     string   `json:"customerId"`
	IncidentDate   string   `json:"incidentDate"`
	FilingDate     string   `json:"filingDate"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	RepairShop     string   `json:"repairShop"`
	Amount         float64  `json:"amount"`
	Photos         []string `json:"photos"`
	IncidentReport string   `json:"incidentReport"`
	RepairEstimate string   `json:"repairEstimate"`
}

// ToClaim converts a request to a ClaimRecord. The claim ID is assigned
// by the caller exactly once.
func (r *ClaimRequest) ToClaim(id, tenantID string) *ClaimRecord {
	return &ClaimRecord{
		ID:             id,
		TenantID:       tenantID,
		PolicyID:       r.PolicyID,
		CustomerID:     r.CustomerID,
		IncidentDate:   r.IncidentDate,
		FilingDate:     r.FilingDate,
		Category:       r.Category,
		Description:    r.Description,
		RepairShop:     r.RepairShop,
		Amount:         r.Amount,
		Photos:         r.Photos,
		IncidentReport: r.IncidentReport,
		RepairEstimate: r.RepairEstimate,
		CurrentStep:    StepStarted,
		CreatedAt:      time.Now().UTC(),
	}
}

// ParseDate parses a submitted date string. Accepts a bare date or a
// full RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
