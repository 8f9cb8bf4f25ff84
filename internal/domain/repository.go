package domain

import (
	"context"
	"time"
)

// PhotoFingerprint is a stored image fingerprint used for cross-claim
// duplicate detection.
type PhotoFingerprint struct {
	ClaimID   string    `json:"claimId"`
	TenantID  string    `json:"tenantId"`
	PhotoRef  string    `json:"photoRef"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Claim operations. UpdateClaim stores a full snapshot after each
	// worker mutation for durability.
	SaveClaim(ctx context.Context, tenantID string, claim *ClaimRecord) error
	UpdateClaim(ctx context.Context, tenantID string, claim *ClaimRecord) error
	GetClaim(ctx context.Context, tenantID string, claimID string) (*ClaimRecord, error)
	ListClaims(ctx context.Context, tenantID string) ([]*ClaimRecord, error)
	GetClaimsByCustomer(ctx context.Context, tenantID string, customerID string) ([]*ClaimRecord, error)

	// Policy operations
	SavePolicy(ctx context.Context, tenantID string, policy *Policy) error
	GetPolicy(ctx context.Context, tenantID string, policyID string) (*Policy, error)
	ListPolicies(ctx context.Context, tenantID string) ([]*Policy, error)

	// Traversal results
	SaveTraversal(ctx context.Context, tenantID string, tr *Traversal) error
	GetTraversal(ctx context.Context, tenantID string, traversalID string) (*Traversal, error)

	// Pattern rule configuration
	SavePatternRule(ctx context.Context, tenantID string, rule *PatternRule) error
	ListPatternRules(ctx context.Context, tenantID string) ([]*PatternRule, error)

	// Photo fingerprints for duplicate-image detection
	SaveFingerprint(ctx context.Context, tenantID string, fp *PhotoFingerprint) error
	ListFingerprints(ctx context.Context, tenantID string, excludeClaimID string) ([]*PhotoFingerprint, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
