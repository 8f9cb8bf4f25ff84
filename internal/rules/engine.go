// Package rules provides the CEL-Go based pattern rule engine used by
// the fraud investigator. Each rule is a boolean expression over claim
// facts; a triggered rule contributes one risk factor to the
// investigation.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/opensource-claims/heron/internal/domain"
)

// Engine is the CEL-based pattern rule engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.PatternRule
	Program cel.Program
}

// NewEngine creates a new pattern rule engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment with claim fact variables
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("amount_int", cel.IntType),
		cel.Variable("category", cel.StringType),
		cel.Variable("shop", cel.StringType),
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("photo_count", cel.IntType),
		cel.Variable("description_len", cel.IntType),
		// Temporal facts; guarded by has_valid_dates when parsing failed
		cel.Variable("filing_gap_days", cel.IntType),
		cel.Variable("incident_weekday", cel.IntType),
		cel.Variable("has_valid_dates", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.PatternRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.PatternRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.PatternRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClaimFacts holds the claim attributes exposed to rule expressions.
type ClaimFacts struct {
	Amount          float64
	Category        string
	Shop            string
	CustomerID      string
	PhotoCount      int
	DescriptionLen  int
	FilingGapDays   int
	IncidentWeekday int
	HasValidDates   bool
}

// FactsFromClaim extracts rule activation facts from a claim. Malformed
// dates clear has_valid_dates so temporal rules stay silent.
func FactsFromClaim(c *domain.ClaimRecord) ClaimFacts {
	facts := ClaimFacts{
		Amount:         c.Amount,
		Category:       c.Category,
		Shop:           c.RepairShop,
		CustomerID:     c.CustomerID,
		PhotoCount:     len(c.Photos),
		DescriptionLen: len(c.Description),
	}

	incident, ierr := domain.ParseDate(c.IncidentDate)
	filing, ferr := domain.ParseDate(c.FilingDate)
	if ierr == nil && ferr == nil {
		facts.HasValidDates = true
		facts.FilingGapDays = int(filing.Sub(incident).Hours() / 24)
		// Monday = 0 .. Sunday = 6, so >= 5 means weekend.
		facts.IncidentWeekday = (int(incident.Weekday()) + 6) % 7
	}

	return facts
}

// EvaluateAll evaluates all loaded rules in parallel.
func (e *Engine) EvaluateAll(ctx context.Context, facts ClaimFacts) []domain.PatternResult {
	e.mu.RLock()
	loaded := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		loaded = append(loaded, rule)
	}
	e.mu.RUnlock()

	if len(loaded) == 0 {
		return nil
	}

	activation := map[string]any{
		"amount":           facts.Amount,
		"amount_int":       int64(facts.Amount),
		"category":         facts.Category,
		"shop":             facts.Shop,
		"customer_id":      facts.CustomerID,
		"photo_count":      int64(facts.PhotoCount),
		"description_len":  int64(facts.DescriptionLen),
		"filing_gap_days":  int64(facts.FilingGapDays),
		"incident_weekday": int64(facts.IncidentWeekday),
		"has_valid_dates":  facts.HasValidDates,
	}

	results := make([]domain.PatternResult, len(loaded))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range loaded {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	return results
}

// evaluateRule evaluates a single rule and returns the result.
func evaluateRule(rule *CompiledRule, activation map[string]any) domain.PatternResult {
	start := time.Now()

	result := domain.PatternResult{
		RuleID: rule.Config.ID,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	triggered, ok := out.Value().(bool)
	if ok && triggered {
		result.Triggered = true
		result.Reason = rule.Config.Reason
	}
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.PatternRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.PatternRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]*domain.PatternRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		configs = append(configs, compiled.Config)
	}
	return configs
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.PatternRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
