// Package document assesses submitted claim artifacts for quality and
// flags near-duplicate images across claims.
package document

import (
	"context"
	"log/slog"
	"sort"

	"github.com/opensource-claims/heron/internal/domain"
)

// Checker analyzes claim documents and photos.
type Checker struct {
	damage     domain.DamageOracle
	similarity domain.SimilarityService
	cfg        domain.ProcessingConfig
	logger     *slog.Logger
}

// NewChecker creates a document checker.
func NewChecker(damage domain.DamageOracle, similarity domain.SimilarityService, cfg domain.ProcessingConfig, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		damage:     damage,
		similarity: similarity,
		cfg:        cfg,
		logger:     logger.With("component", "document"),
	}
}

// Analyze runs the damage oracle and the duplicate-image scan, then
// writes the document report onto the claim.
func (c *Checker) Analyze(ctx context.Context, claim *domain.ClaimRecord) {
	report := &domain.DocumentReport{
		PhotosAnalyzed: len(claim.Photos),
	}

	assessment, err := c.damage.Analyze(ctx, claim.Photos, claim.Amount)
	if err != nil {
		c.logger.Warn("damage oracle failed",
			"claim_id", claim.ID,
			"error", err)
		report.Issues = append(report.Issues, "damage assessment unavailable")
	} else {
		claim.DamageAssessment = assessment
		report.EstimatedRepairCost = assessment.TotalRepairCost
	}

	c.scanDuplicates(ctx, claim, report)

	report.QualityScore = qualityScore(claim, report)

	claim.DocumentReport = report

	c.logger.Info("documents analyzed",
		"claim_id", claim.ID,
		"tenant_id", claim.TenantID,
		"quality_score", report.QualityScore,
		"duplicate_images", report.DuplicateImages)
}

// scanDuplicates queries the similarity service per photo. Failures
// degrade to "no duplicates found" so document analysis never blocks
// on the similarity backend.
func (c *Checker) scanDuplicates(ctx context.Context, claim *domain.ClaimRecord, report *domain.DocumentReport) {
	if c.similarity == nil {
		return
	}

	seen := make(map[string]bool)
	for _, photo := range claim.Photos {
		matches, err := c.similarity.FindSimilar(ctx, claim.TenantID, photo, claim.ID, 10)
		if err != nil {
			c.logger.Debug("similarity lookup failed",
				"claim_id", claim.ID,
				"photo", photo,
				"error", err)
			continue
		}
		for _, m := range matches {
			if m.Similarity >= c.cfg.DuplicateThreshold && !seen[m.ClaimID] {
				seen[m.ClaimID] = true
				report.SimilarClaims = append(report.SimilarClaims, m.ClaimID)
			}
		}
	}

	if len(report.SimilarClaims) > 0 {
		sort.Strings(report.SimilarClaims)
		report.DuplicateImages = true
		report.Issues = append(report.Issues, "near-duplicate images found in other claims")
	}
}

// qualityScore starts at 100 and deducts for missing or thin artifacts,
// floored at 0.
func qualityScore(claim *domain.ClaimRecord, report *domain.DocumentReport) int {
	score := 100

	if len(claim.Photos) == 0 {
		score -= 30
		report.Issues = append(report.Issues, "no photos submitted")
	} else if len(claim.Photos) < 2 {
		score -= 10
		report.Issues = append(report.Issues, "fewer than 2 photos submitted")
	}

	if claim.IncidentReport == "" {
		score -= 25
		report.Issues = append(report.Issues, "incident report missing")
	}
	if claim.RepairEstimate == "" {
		score -= 20
		report.Issues = append(report.Issues, "repair estimate missing")
	}
	if len(claim.Description) < 20 {
		score -= 15
		report.Issues = append(report.Issues, "damage narrative too short")
	}

	if score < 0 {
		score = 0
	}
	return score
}
