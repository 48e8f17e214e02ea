package sleep

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/agentmem/somnia/internal/core/common"
	"github.com/agentmem/somnia/internal/core/community"
	"github.com/agentmem/somnia/internal/core/model"
)

const (
	// Jaccard overlap with an existing community above which its uuid (and
	// created_at) is reused instead of minting a new community.
	communityReuseOverlap = 0.7

	// Member summaries fed to the community profile prompt, at most.
	communityPromptMembers = 20
)

// rebuildCommunities is Phase 3: full Louvain re-detection over the group's
// entity graph, gated by graph size and growth since the last rebuild.
// Detected clusters keep stable uuids via member overlap with the previous
// generation; stale communities are detach-deleted.
func (e *Engine) rebuildCommunities(ctx context.Context, groupID string, opts model.SleepOptions, report *model.Phase3Report) error {
	entities, err := e.Store.GroupEntities(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to list entities: %w", err)
	}
	report.EntityCount = len(entities)

	if len(entities) < opts.MinGraphSize {
		report.Skipped = true
		report.Reason = fmt.Sprintf("graph has %d entities, below minimum %d", len(entities), opts.MinGraphSize)
		return nil
	}

	existing, err := e.Store.GroupCommunities(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to list communities: %w", err)
	}
	lastCount := 0
	for _, c := range existing {
		if c.EntityCountAtLastRebuild > lastCount {
			lastCount = c.EntityCountAtLastRebuild
		}
	}
	if len(existing) > 0 && len(entities)-lastCount < opts.RebuildThreshold {
		report.Skipped = true
		report.Reason = fmt.Sprintf("only %d entities added since last rebuild, below threshold %d", len(entities)-lastCount, opts.RebuildThreshold)
		return nil
	}

	edges, err := e.Store.GroupEntityEdges(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to list entity edges: %w", err)
	}

	detected := community.NewLouvainDetector().Detect(entities, edges)
	var clusters [][]*model.EntityNode
	for _, members := range detected {
		if len(members) >= opts.MinCommunitySize {
			clusters = append(clusters, members)
		}
	}

	// Match clusters to previous-generation communities by member overlap.
	// Each existing uuid is claimable once.
	claimed := make(map[string]bool)
	reused := make(map[int]*model.CommunityNode) // cluster index -> predecessor
	for i, members := range clusters {
		ids := memberIDs(members)
		var best *model.CommunityNode
		bestOverlap := 0.0
		for _, prev := range existing {
			if claimed[prev.UUID] {
				continue
			}
			if o := jaccard(ids, prev.MemberEntityIDs); o > bestOverlap {
				bestOverlap = o
				best = prev
			}
		}
		if best != nil && bestOverlap >= communityReuseOverlap {
			claimed[best.UUID] = true
			reused[i] = best
		}
	}

	if opts.DryRun {
		report.CommunitiesBuilt = len(clusters)
		report.CommunitiesRemoved = len(existing) - len(claimed)
		return nil
	}

	// Profile every cluster first, then embed the summaries in one batch.
	// A failed profile call drops its cluster; a claimed predecessor then
	// simply survives untouched.
	type pendingCommunity struct {
		index   int
		members []*model.EntityNode
		profile model.CommunityProfile
	}
	var pending []pendingCommunity
	for i, members := range clusters {
		profile, tokens, err := e.profileCommunity(ctx, members)
		if err != nil {
			log.Printf("sleep: skipping community of %d entities: %v", len(members), err)
			continue
		}
		report.TokensUsed += tokens
		pending = append(pending, pendingCommunity{index: i, members: members, profile: profile})
	}

	summaries := make([]string, len(pending))
	for i, p := range pending {
		summaries[i] = p.profile.Summary
	}
	var embeddings [][]float32
	if len(summaries) > 0 {
		embeddings, err = e.Embedder.EmbedBatch(ctx, summaries)
		if err != nil {
			log.Printf("sleep: community rebuild aborted: embed batch: %v", err)
			return nil
		}
	}

	now := e.Now()
	for i, p := range pending {
		node := &model.CommunityNode{
			UUID:                     e.UUIDGenerator(),
			GroupID:                  groupID,
			Name:                     p.profile.Name,
			CommunityLevel:           0,
			Summary:                  p.profile.Summary,
			SummaryEmbedding:         embeddings[i],
			MemberEntityIDs:          memberIDs(p.members),
			MemberCount:              len(p.members),
			DomainHints:              normalizeHints(p.profile.DomainHints),
			ImportanceScore:          p.profile.ImportanceScore,
			EntityCountAtLastRebuild: len(entities),
			LastFullRebuild:          now,
			CreatedAt:                now,
		}
		if prev, ok := reused[p.index]; ok {
			node.UUID = prev.UUID
			node.CreatedAt = prev.CreatedAt
		}

		if err := e.Store.UpsertCommunity(ctx, node); err != nil {
			return fmt.Errorf("failed to save community %q: %w", node.Name, err)
		}
		if err := e.Store.DeleteCommunityMembership(ctx, node.UUID); err != nil {
			return fmt.Errorf("failed to reset membership of %q: %w", node.Name, err)
		}
		for _, member := range p.members {
			edge := &model.CommunityEdge{
				UUID:       e.UUIDGenerator(),
				GroupID:    groupID,
				SourceUUID: node.UUID,
				TargetUUID: member.UUID,
				Name:       "HAS_MEMBER",
				CreatedAt:  now,
			}
			if err := e.Store.UpsertCommunityEdge(ctx, edge); err != nil {
				return fmt.Errorf("failed to link member %q to %q: %w", member.Name, node.Name, err)
			}
		}
		report.CommunitiesBuilt++
	}

	for _, prev := range existing {
		if claimed[prev.UUID] {
			continue
		}
		if err := e.Store.DetachDelete(ctx, prev.UUID); err != nil {
			return fmt.Errorf("failed to remove stale community %q: %w", prev.Name, err)
		}
		report.CommunitiesRemoved++
	}
	return nil
}

// profileCommunity names and summarises one cluster from a capped sample of
// member summaries.
func (e *Engine) profileCommunity(ctx context.Context, members []*model.EntityNode) (model.CommunityProfile, int, error) {
	var sb strings.Builder
	for i, m := range members {
		if i >= communityPromptMembers {
			break
		}
		if m.Summary != "" {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", m.Name, m.EntityType, m.Summary)
		} else {
			fmt.Fprintf(&sb, "- %s (%s)\n", m.Name, m.EntityType)
		}
	}

	prompt := fmt.Sprintf(e.Prompts.Community, sb.String())
	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return model.CommunityProfile{}, 0, fmt.Errorf("community call: %w", err)
	}
	profile, err := common.ParseJSON[model.CommunityProfile](response)
	if err != nil {
		return model.CommunityProfile{}, 0, fmt.Errorf("community response: %w", err)
	}
	if profile.Name == "" {
		return model.CommunityProfile{}, 0, fmt.Errorf("community response: empty name")
	}
	return profile, estimateTokens(prompt, response), nil
}

// normalizeHints forces domain hints to lowercase kebab-case; the prompt asks
// for that shape but the model is not trusted to comply.
func normalizeHints(hints []string) []string {
	var out []string
	for _, h := range hints {
		if tag := common.KebabCase(h); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func memberIDs(members []*model.EntityNode) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UUID
	}
	sort.Strings(ids)
	return ids
}

// jaccard is |a ∩ b| / |a ∪ b| over uuid sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	inter := 0
	for _, x := range b {
		if set[x] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
