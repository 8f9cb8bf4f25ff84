package domain

import (
	"fmt"
	"strings"
	"time"
)

// Traversal is the persisted record of one full pass of a claim through
// the routing core, from started to complete.
type Traversal struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	ClaimID  string `json:"claimId"`

	EligibilityStatus string   `json:"eligibilityStatus"`
	ApprovalStatus    string   `json:"approvalStatus"`
	FraudScore        float64  `json:"fraudScore"`
	PayoutAmount      float64  `json:"payoutAmount"`
	Priority          Priority `json:"priority"`

	HumanReview bool         `json:"humanReview"`
	History     []AuditEntry `json:"history"`
	Summary     string       `json:"summary,omitempty"`

	Metadata  TraversalMetadata `json:"metadata"`
	Timestamp time.Time         `json:"timestamp"`
}

// TraversalMetadata contains processing information.
type TraversalMetadata struct {
	TraceID        string `json:"traceId"`
	WorkersInvoked int    `json:"workersInvoked"`
	RoutingPasses  int    `json:"routingPasses"`
	TotalMs        int64  `json:"totalMs"`
	EngineVersion  string `json:"engineVersion"`
}

// Summarize renders a human-readable account of a processed claim.
func Summarize(c *ClaimRecord) string {
	parts := []string{
		fmt.Sprintf("Claim ID: %s", c.ID),
		fmt.Sprintf("Policy ID: %s", c.PolicyID),
		fmt.Sprintf("Category: %s", c.Category),
		fmt.Sprintf("Amount: $%.2f", c.Amount),
		"",
		"Processing Steps:",
	}

	if c.Eligibility != nil {
		parts = append(parts, fmt.Sprintf("  - Validation: %s", c.Eligibility.Status))
		if c.Eligibility.Reason != "" {
			parts = append(parts, fmt.Sprintf("    Reason: %s", c.Eligibility.Reason))
		}
	}

	parts = append(parts, fmt.Sprintf("  - Fraud Score: %.2f", c.FraudScore))
	if len(c.FraudFlags) > 0 {
		parts = append(parts, fmt.Sprintf("    Flags: %s", strings.Join(c.FraudFlags, ", ")))
	}

	if c.ApprovalStatus != "" {
		parts = append(parts, fmt.Sprintf("  - Approval: %s", c.ApprovalStatus))
		if c.ApprovalReason != "" {
			parts = append(parts, fmt.Sprintf("    Reason: %s", c.ApprovalReason))
		}
		if c.PayoutAmount > 0 {
			parts = append(parts, fmt.Sprintf("    Payout: $%.2f", c.PayoutAmount))
		}
	}

	if c.LastDecision != nil {
		parts = append(parts, fmt.Sprintf("  - Priority: %s", strings.ToUpper(string(c.LastDecision.Priority))))
	}

	return strings.Join(parts, "\n")
}
