package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    policy_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    category TEXT NOT NULL,
    amount REAL NOT NULL,
    current_step TEXT NOT NULL,
    eligibility_status TEXT,
    approval_status TEXT,
    fraud_score REAL NOT NULL DEFAULT 0,
    payout_amount REAL NOT NULL DEFAULT 0,
    human_review INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    snapshot TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_tenant ON claims(tenant_id);
CREATE INDEX IF NOT EXISTS idx_claims_customer ON claims(tenant_id, customer_id);
CREATE INDEX IF NOT EXISTS idx_claims_step ON claims(tenant_id, current_step);
CREATE INDEX IF NOT EXISTS idx_claims_created ON claims(tenant_id, created_at);
`

const schemaPolicies = `
CREATE TABLE IF NOT EXISTS policies (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    coverage_type TEXT NOT NULL,
    coverage_limit REAL NOT NULL,
    deductible REAL NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1,
    start_date TEXT,
    end_date TEXT,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_policies_tenant ON policies(tenant_id);
CREATE INDEX IF NOT EXISTS idx_policies_customer ON policies(tenant_id, customer_id);
`

const schemaTraversals = `
CREATE TABLE IF NOT EXISTS traversals (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    eligibility_status TEXT,
    approval_status TEXT,
    fraud_score REAL NOT NULL DEFAULT 0,
    payout_amount REAL NOT NULL DEFAULT 0,
    priority TEXT,
    human_review INTEGER NOT NULL DEFAULT 0,
    history TEXT NOT NULL,
    summary TEXT,
    metadata TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traversals_tenant ON traversals(tenant_id);
CREATE INDEX IF NOT EXISTS idx_traversals_claim ON traversals(tenant_id, claim_id);
CREATE INDEX IF NOT EXISTS idx_traversals_timestamp ON traversals(tenant_id, timestamp);
`

const schemaPatternRules = `
CREATE TABLE IF NOT EXISTS pattern_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    reason TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_pattern_rules_tenant ON pattern_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_pattern_rules_enabled ON pattern_rules(tenant_id, enabled);
`

const schemaFingerprints = `
CREATE TABLE IF NOT EXISTS photo_fingerprints (
    tenant_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    photo_ref TEXT NOT NULL,
    digest TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, claim_id, photo_ref)
);

CREATE INDEX IF NOT EXISTS idx_fingerprints_tenant ON photo_fingerprints(tenant_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaPolicies,
		schemaTraversals,
		schemaPatternRules,
		schemaFingerprints,
	}
}
