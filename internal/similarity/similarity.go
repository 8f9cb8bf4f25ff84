// Package similarity provides cross-claim duplicate-image detection.
// Photos are reduced to shingle fingerprints stored in the repository;
// near-duplicates are ranked by Jaccard similarity in [0, 1]. Failures
// degrade to "no duplicates found" rather than blocking the pipeline.
package similarity

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-claims/heron/internal/domain"
)

const shingleSize = 4

// Service implements domain.SimilarityService.
type Service struct {
	repo      domain.Repository
	threshold float64
	k         int
}

// NewService creates a similarity service over the repository's
// fingerprint store.
func NewService(repo domain.Repository, threshold float64) *Service {
	if threshold <= 0 {
		threshold = 0.85
	}
	return &Service{
		repo:      repo,
		threshold: threshold,
		k:         10,
	}
}

// Fingerprint reduces photo content to a stable shingle digest.
func Fingerprint(photoRef string) string {
	shingles := shingleSet(photoRef)
	hashes := make([]string, 0, len(shingles))
	for s := range shingles {
		h := fnv.New32a()
		h.Write([]byte(s))
		hashes = append(hashes, strconv.FormatUint(uint64(h.Sum32()), 16))
	}
	sort.Strings(hashes)
	return strings.Join(hashes, ",")
}

// IndexClaim stores fingerprints for every photo on a claim.
func (s *Service) IndexClaim(ctx context.Context, claim *domain.ClaimRecord) error {
	for _, photo := range claim.Photos {
		fp := &domain.PhotoFingerprint{
			ClaimID:   claim.ID,
			TenantID:  claim.TenantID,
			PhotoRef:  photo,
			Digest:    Fingerprint(photo),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.repo.SaveFingerprint(ctx, claim.TenantID, fp); err != nil {
			return fmt.Errorf("failed to index photo fingerprint: %w", err)
		}
	}
	return nil
}

// FindSimilar returns up to k stored images ranked by similarity to the
// given photo, excluding the claim's own images.
func (s *Service) FindSimilar(ctx context.Context, tenantID, photoRef, excludeClaimID string, k int) ([]domain.SimilarImage, error) {
	if k <= 0 {
		k = s.k
	}

	stored, err := s.repo.ListFingerprints(ctx, tenantID, excludeClaimID)
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup failed: %w", err)
	}

	query := digestSet(Fingerprint(photoRef))

	// Keep the best match per claim.
	best := make(map[string]float64)
	for _, fp := range stored {
		sim := jaccard(query, digestSet(fp.Digest))
		if sim > best[fp.ClaimID] {
			best[fp.ClaimID] = sim
		}
	}

	matches := make([]domain.SimilarImage, 0, len(best))
	for claimID, sim := range best {
		matches = append(matches, domain.SimilarImage{ClaimID: claimID, Similarity: sim})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ClaimID < matches[j].ClaimID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// CheckClaim runs the ingestion-time duplicate check across all of a
// claim's photos. It never fails: a service error degrades to a clean
// "no duplicates" result.
func (s *Service) CheckClaim(ctx context.Context, claim *domain.ClaimRecord) *domain.DuplicateCheck {
	check := &domain.DuplicateCheck{}

	for _, photo := range claim.Photos {
		matches, err := s.FindSimilar(ctx, claim.TenantID, photo, claim.ID, s.k)
		if err != nil {
			slog.Debug("similarity lookup failed, skipping photo",
				"claim_id", claim.ID,
				"error", err,
			)
			continue
		}
		for _, m := range matches {
			if m.Similarity > check.HighestSimilarity {
				check.HighestSimilarity = m.Similarity
			}
			if m.Similarity >= s.threshold {
				check.IsPotentialDuplicate = true
				check.SimilarClaims = appendUnique(check.SimilarClaims, m.ClaimID)
			}
		}
	}

	return check
}

func shingleSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	if len(s) < shingleSize {
		if s != "" {
			set[s] = struct{}{}
		}
		return set
	}
	for i := 0; i+shingleSize <= len(s); i++ {
		set[s[i:i+shingleSize]] = struct{}{}
	}
	return set
}

func digestSet(digest string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, h := range strings.Split(digest, ",") {
		if h != "" {
			set[h] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
