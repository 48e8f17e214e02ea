package core

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/agentmem/somnia/internal/core/common"
	"github.com/agentmem/somnia/internal/core/model"
)

const (
	defaultSearchLimit   = 10
	defaultExpandHops    = 2
	defaultTemporalAlpha = 0.3
	defaultHalfLifeDays  = 30.0
	contemporaneityScale = 30.0 // retroactive-days damping
)

// Search runs embedding retrieval over the Entity/Episodic/Community label
// union, expands through communities and optionally the graph, and re-ranks
// by temporal proximity when query_time is set. The result may exceed limit
// because of expansion; the caller decides further trimming.
func (e *Engine) Search(ctx context.Context, params model.SearchParams) ([]model.SearchResult, error) {
	if params.Query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	groupID := params.GroupID
	if groupID == "" {
		groupID = DefaultGroupID
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	queryEmbedding, err := e.Embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored, err := e.Store.SimilaritySearch(ctx, groupID, queryEmbedding, nil, limit, params.ValidFrom, params.ValidTo)
	if err != nil {
		return nil, err
	}

	results := make([]model.SearchResult, 0, len(scored))
	seen := make(map[string]bool)
	var communityUUIDs []string
	for _, sn := range scored {
		results = append(results, model.SearchResult{Node: sn.Node, Labels: sn.Labels, Score: sn.Similarity})
		seen[sn.Node.NodeUUID()] = true
		if _, ok := sn.Node.(*model.CommunityNode); ok {
			communityUUIDs = append(communityUUIDs, sn.Node.NodeUUID())
		}
	}

	// Communities route to their members.
	if len(communityUUIDs) > 0 {
		members, err := e.Store.CommunityMembers(ctx, communityUUIDs, groupID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if seen[m.UUID] {
				continue
			}
			seen[m.UUID] = true
			results = append(results, model.SearchResult{
				Node:   m,
				Labels: []string{model.LabelEntity},
				Score:  common.Cosine(m.SummaryEmbedding, queryEmbedding),
			})
		}
	}

	if params.GraphExpand {
		hops := params.ExpandHops
		if hops <= 0 {
			hops = defaultExpandHops
		}
		var seeds []string
		for _, r := range results {
			if _, ok := r.Node.(*model.EntityNode); ok {
				seeds = append(seeds, r.Node.NodeUUID())
			}
		}
		neighbors, err := e.Store.VariableLengthMatch(ctx, seeds, hops, model.DirectionBoth, groupID, 2*limit)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if seen[n.UUID] {
				continue
			}
			seen[n.UUID] = true
			results = append(results, model.SearchResult{
				Node:   n,
				Labels: []string{model.LabelEntity},
				Score:  common.Cosine(n.SummaryEmbedding, queryEmbedding),
			})
		}
	}

	if params.QueryTime != nil {
		alpha := defaultTemporalAlpha
		if params.TemporalAlpha != nil {
			alpha = *params.TemporalAlpha
		}
		halfLife := defaultHalfLifeDays
		if params.HalfLifeDays != nil && *params.HalfLifeDays > 0 {
			halfLife = *params.HalfLifeDays
		}
		for i := range results {
			ep, ok := results[i].Node.(*model.EpisodicNode)
			if !ok {
				continue
			}
			distDays := math.Abs(params.QueryTime.Sub(ep.ValidAt).Hours() / 24)
			proximity := math.Exp(-distDays / halfLife)
			contemporaneity := math.Exp(-float64(ep.RetroactiveDays) / contemporaneityScale)
			results[i].Score *= 1 + alpha*proximity*contemporaneity
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}
