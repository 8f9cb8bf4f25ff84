// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-claims/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveClaim stores a new claim with tenant isolation. The full claim
// record is kept as a JSON snapshot; the indexed columns exist for
// listing and lookups.
func (r *SQLRepository) SaveClaim(ctx context.Context, tenantID string, claim *domain.ClaimRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if claim.ID == "" {
		return fmt.Errorf("%w: claim ID is required", ErrInvalidInput)
	}

	snapshot, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to serialize claim: %w", err)
	}

	query := `
		INSERT INTO claims (
			id, tenant_id, policy_id, customer_id, category, amount,
			current_step, eligibility_status, approval_status,
			fraud_score, payout_amount, human_review, created_at, snapshot
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, tenantID, claim.PolicyID, claim.CustomerID,
		claim.Category, claim.Amount,
		string(claim.CurrentStep), eligibilityStatus(claim), claim.ApprovalStatus,
		claim.FraudScore, claim.PayoutAmount, boolToInt(claim.HumanReviewRequired),
		claim.CreatedAt, string(snapshot),
	)
	return err
}

// UpdateClaim replaces the stored snapshot of a claim. The routing core
// calls this after every worker mutation for durability.
func (r *SQLRepository) UpdateClaim(ctx context.Context, tenantID string, claim *domain.ClaimRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	snapshot, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to serialize claim: %w", err)
	}

	query := `
		UPDATE claims
		SET current_step = ?, eligibility_status = ?, approval_status = ?,
		    fraud_score = ?, payout_amount = ?, human_review = ?, snapshot = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(claim.CurrentStep), eligibilityStatus(claim), claim.ApprovalStatus,
		claim.FraudScore, claim.PayoutAmount, boolToInt(claim.HumanReviewRequired),
		string(snapshot),
		tenantID, claim.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// GetClaim retrieves a claim by ID with tenant isolation.
func (r *SQLRepository) GetClaim(ctx context.Context, tenantID string, claimID string) (*domain.ClaimRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT snapshot FROM claims WHERE tenant_id = ? AND id = ?`

	var snapshot string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, claimID).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return unmarshalClaim(snapshot)
}

// ListClaims retrieves all claims for a tenant, newest first.
func (r *SQLRepository) ListClaims(ctx context.Context, tenantID string) ([]*domain.ClaimRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT snapshot FROM claims
		WHERE tenant_id = ?
		ORDER BY created_at DESC
	`
	return r.queryClaims(ctx, r.rebind(query), tenantID)
}

// GetClaimsByCustomer retrieves a customer's claims with tenant isolation.
func (r *SQLRepository) GetClaimsByCustomer(ctx context.Context, tenantID string, customerID string) ([]*domain.ClaimRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT snapshot FROM claims
		WHERE tenant_id = ? AND customer_id = ?
		ORDER BY created_at DESC
	`
	return r.queryClaims(ctx, r.rebind(query), tenantID, customerID)
}

func (r *SQLRepository) queryClaims(ctx context.Context, query string, args ...any) ([]*domain.ClaimRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.ClaimRecord
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, err
		}
		claim, err := unmarshalClaim(snapshot)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// SavePolicy stores or updates a policy with tenant isolation.
func (r *SQLRepository) SavePolicy(ctx context.Context, tenantID string, policy *domain.Policy) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if policy.ID == "" {
		return fmt.Errorf("%w: policy ID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO policies (
			id, tenant_id, customer_id, coverage_type, coverage_limit,
			deductible, active, start_date, end_date, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			customer_id = excluded.customer_id,
			coverage_type = excluded.coverage_type,
			coverage_limit = excluded.coverage_limit,
			deductible = excluded.deductible,
			active = excluded.active,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		policy.ID, tenantID, policy.CustomerID,
		policy.CoverageType, policy.CoverageLimit, policy.Deductible,
		boolToInt(policy.Active), policy.StartDate, policy.EndDate,
		time.Now().UTC(),
	)
	return err
}

// GetPolicy retrieves a policy by ID with tenant isolation.
func (r *SQLRepository) GetPolicy(ctx context.Context, tenantID string, policyID string) (*domain.Policy, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, customer_id, coverage_type, coverage_limit,
		       deductible, active, start_date, end_date
		FROM policies
		WHERE tenant_id = ? AND id = ?
	`

	policy, err := scanPolicy(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, policyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	policy.TenantID = tenantID

	return policy, nil
}

// ListPolicies retrieves all policies for a tenant.
func (r *SQLRepository) ListPolicies(ctx context.Context, tenantID string) ([]*domain.Policy, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, customer_id, coverage_type, coverage_limit,
		       deductible, active, start_date, end_date
		FROM policies
		WHERE tenant_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policy.TenantID = tenantID
		policies = append(policies, policy)
	}

	return policies, rows.Err()
}

// SaveTraversal stores a traversal record with tenant isolation.
func (r *SQLRepository) SaveTraversal(ctx context.Context, tenantID string, tr *domain.Traversal) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	history, _ := json.Marshal(tr.History)
	metadata, _ := json.Marshal(tr.Metadata)

	query := `
		INSERT INTO traversals (
			id, tenant_id, claim_id, eligibility_status, approval_status,
			fraud_score, payout_amount, priority, human_review,
			history, summary, metadata, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tr.ID, tenantID, tr.ClaimID,
		tr.EligibilityStatus, tr.ApprovalStatus,
		tr.FraudScore, tr.PayoutAmount,
		string(tr.Priority), boolToInt(tr.HumanReview),
		string(history), tr.Summary, string(metadata), tr.Timestamp,
	)
	return err
}

// GetTraversal retrieves a traversal by ID with tenant isolation.
func (r *SQLRepository) GetTraversal(ctx context.Context, tenantID string, traversalID string) (*domain.Traversal, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, claim_id, eligibility_status, approval_status,
		       fraud_score, payout_amount, priority, human_review,
		       history, summary, metadata, timestamp
		FROM traversals
		WHERE tenant_id = ? AND id = ?
	`

	var tr domain.Traversal
	var priority string
	var humanReview int
	var history, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, traversalID).Scan(
		&tr.ID, &tr.TenantID, &tr.ClaimID,
		&tr.EligibilityStatus, &tr.ApprovalStatus,
		&tr.FraudScore, &tr.PayoutAmount,
		&priority, &humanReview,
		&history, &tr.Summary, &metadata, &tr.Timestamp,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tr.Priority = domain.Priority(priority)
	tr.HumanReview = humanReview == 1
	json.Unmarshal([]byte(history), &tr.History)
	json.Unmarshal([]byte(metadata), &tr.Metadata)

	return &tr, nil
}

// SavePatternRule stores a pattern rule with tenant isolation.
func (r *SQLRepository) SavePatternRule(ctx context.Context, tenantID string, rule *domain.PatternRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO pattern_rules (
			id, tenant_id, name, description, version, expression, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Reason, boolToInt(rule.Enabled),
		now, now,
	)
	return err
}

// ListPatternRules retrieves all active pattern rules for a tenant.
func (r *SQLRepository) ListPatternRules(ctx context.Context, tenantID string) ([]*domain.PatternRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, reason, enabled
		FROM pattern_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.PatternRule
	for rows.Next() {
		var cfg domain.PatternRule
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &cfg.Reason, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// SaveFingerprint stores a photo fingerprint with tenant isolation.
func (r *SQLRepository) SaveFingerprint(ctx context.Context, tenantID string, fp *domain.PhotoFingerprint) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO photo_fingerprints (
			tenant_id, claim_id, photo_ref, digest, created_at
		) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, claim_id, photo_ref) DO UPDATE SET
			digest = excluded.digest
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tenantID, fp.ClaimID, fp.PhotoRef, fp.Digest, fp.CreatedAt,
	)
	return err
}

// ListFingerprints retrieves all fingerprints for a tenant, excluding
// one claim's own photos so duplicate checks never match themselves.
func (r *SQLRepository) ListFingerprints(ctx context.Context, tenantID string, excludeClaimID string) ([]*domain.PhotoFingerprint, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT tenant_id, claim_id, photo_ref, digest, created_at
		FROM photo_fingerprints
		WHERE tenant_id = ? AND claim_id != ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, excludeClaimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fps []*domain.PhotoFingerprint
	for rows.Next() {
		var fp domain.PhotoFingerprint
		if err := rows.Scan(&fp.TenantID, &fp.ClaimID, &fp.PhotoRef, &fp.Digest, &fp.CreatedAt); err != nil {
			return nil, err
		}
		fps = append(fps, &fp)
	}

	return fps, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*domain.Policy, error) {
	var p domain.Policy
	var active int
	var startDate, endDate sql.NullString

	if err := row.Scan(
		&p.ID, &p.CustomerID, &p.CoverageType, &p.CoverageLimit,
		&p.Deductible, &active, &startDate, &endDate,
	); err != nil {
		return nil, err
	}

	p.Active = active == 1
	p.StartDate = startDate.String
	p.EndDate = endDate.String

	return &p, nil
}

func unmarshalClaim(snapshot string) (*domain.ClaimRecord, error) {
	var claim domain.ClaimRecord
	if err := json.Unmarshal([]byte(snapshot), &claim); err != nil {
		return nil, fmt.Errorf("failed to parse claim snapshot: %w", err)
	}
	return &claim, nil
}

func eligibilityStatus(claim *domain.ClaimRecord) string {
	if claim.Eligibility == nil {
		return ""
	}
	return claim.Eligibility.Status
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
