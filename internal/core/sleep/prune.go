package sleep

import (
	"context"
	"fmt"
	"sort"

	"github.com/agentmem/somnia/internal/core/common"
	"github.com/agentmem/somnia/internal/core/model"
	"github.com/agentmem/somnia/internal/driver"
)

// nameRatioFloor rejects fallback-scored pairs whose name lengths differ too
// much, e.g. "Al" contained in "Albert Einstein Institute".
const nameRatioFloor = 0.6

type scoredPair struct {
	pair       driver.CandidatePair
	similarity float64
}

// prune is Phase 2: greedily merge near-duplicate entities, highest
// similarity first, then drop edges left without episode support.
func (e *Engine) prune(ctx context.Context, groupID string, opts model.SleepOptions, report *model.Phase2Report) error {
	pairs, err := e.Store.MergeCandidatePairs(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to list merge candidates: %w", err)
	}

	scored := make([]scoredPair, 0, len(pairs))
	for _, p := range pairs {
		sim, confirmed, ok := pairSimilarity(p)
		if !ok {
			continue
		}
		if !confirmed && sim < opts.SimilarityThreshold {
			continue
		}
		scored = append(scored, scoredPair{pair: p, similarity: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})

	merged := make(map[string]bool)
	for _, sp := range scored {
		p := sp.pair
		if merged[p.AUUID] || merged[p.BUUID] {
			continue
		}

		canonicalUUID, canonicalName := p.AUUID, p.AName
		duplicateUUID, duplicateName := p.BUUID, p.BName
		if !canonicalIsA(p) {
			canonicalUUID, canonicalName = p.BUUID, p.BName
			duplicateUUID, duplicateName = p.AUUID, p.AName
		}

		if !opts.DryRun {
			if err := e.Store.MergeEntityInto(ctx, canonicalUUID, duplicateUUID); err != nil {
				return fmt.Errorf("failed to merge %q into %q: %w", duplicateName, canonicalName, err)
			}
		}
		merged[duplicateUUID] = true
		report.EntitiesMerged++
		report.MergedPairs = append(report.MergedPairs, model.MergedPair{
			Canonical:  canonicalName,
			Duplicate:  duplicateName,
			Similarity: sp.similarity,
		})
	}

	if opts.DryRun {
		pruned, err := e.Store.CountOrphanEdges(ctx, groupID)
		if err != nil {
			return fmt.Errorf("failed to count orphan edges: %w", err)
		}
		report.EdgesPruned = pruned
		return nil
	}
	pruned, err := e.Store.DeleteOrphanEdges(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete orphan edges: %w", err)
	}
	report.EdgesPruned = pruned
	return nil
}

// pairSimilarity scores a candidate pair by embedding cosine when both sides
// carry embeddings, else falls back to the name-length ratio of the contained
// name over the containing one. Fallback pairs below nameRatioFloor are
// discarded rather than risk merging on a short substring hit; those at or
// above it merge regardless of the cosine threshold (confirmed), with the raw
// ratio reported as the similarity.
func pairSimilarity(p driver.CandidatePair) (sim float64, confirmed, ok bool) {
	if len(p.AEmbedding) > 0 && len(p.BEmbedding) > 0 {
		return common.Cosine(p.AEmbedding, p.BEmbedding), false, true
	}

	shorter, longer := len(p.AName), len(p.BName)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if longer == 0 {
		return 0, false, false
	}
	ratio := float64(shorter) / float64(longer)
	if ratio < nameRatioFloor {
		return 0, false, false
	}
	return ratio, true, true
}

// canonicalIsA picks the merge survivor: higher degree wins, then the longer
// (more specific) name, then the lower uuid for determinism.
func canonicalIsA(p driver.CandidatePair) bool {
	if p.ADegree != p.BDegree {
		return p.ADegree > p.BDegree
	}
	if len(p.AName) != len(p.BName) {
		return len(p.AName) > len(p.BName)
	}
	return p.AUUID < p.BUUID
}
