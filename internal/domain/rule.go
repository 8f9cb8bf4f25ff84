package domain

// PatternRule defines a fraud pattern heuristic evaluated by the rules
// engine during fraud investigation. The expression is a CEL boolean over
// claim facts; when it evaluates true the reason is appended to the
// claim's risk factors.
type PatternRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// CEL expression to evaluate; must return bool.
	Expression string `json:"expression"`

	// Reason appended as a risk factor when the rule triggers.
	Reason string `json:"reason"`

	// Whether rule is active.
	Enabled bool `json:"enabled"`
}

// PatternResult is the output of a pattern rule evaluation.
type PatternResult struct {
	RuleID    string `json:"ruleId"`
	Triggered bool   `json:"triggered"`
	Reason    string `json:"reason,omitempty"`
	Err       string `json:"err,omitempty"`
	ProcessMs int64  `json:"processMs,omitempty"`
}
