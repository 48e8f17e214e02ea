package driver

import (
	"context"
	"time"

	"github.com/agentmem/somnia/internal/core/model"
)

// Store operations used only by the sleep engine.

// ConsolidationCluster is one entity with its unconsolidated evidence.
type ConsolidationCluster struct {
	Entity       *model.EntityNode
	EpisodeUUIDs []string
	EpisodeTexts []string
}

// ConsolidationClusters finds entities mentioned by at least minEpisodes
// unconsolidated episodes created on or before cutoff, busiest first.
func (s *Store) ConsolidationClusters(ctx context.Context, groupID string, cutoff time.Time, minEpisodes, maxEntities int) ([]ConsolidationCluster, error) {
	res, err := s.Driver.ExecuteQuery(ctx, ConsolidationClustersQuery, map[string]interface{}{
		"group_id":     groupID,
		"cutoff":       cutoff,
		"min_episodes": int64(minEpisodes),
		"max_entities": int64(maxEntities),
	})
	if err != nil {
		return nil, err
	}

	var out []ConsolidationCluster
	for _, rec := range res.Records {
		node, err := s.nodeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		entity, ok := node.(*model.EntityNode)
		if !ok {
			continue
		}
		uv, _ := rec.Get("episode_uuids")
		tv, _ := rec.Get("episode_texts")
		out = append(out, ConsolidationCluster{
			Entity:       entity,
			EpisodeUUIDs: anyToStrings(uv),
			EpisodeTexts: anyToStrings(tv),
		})
	}
	return out, nil
}

func (s *Store) MarkEpisodesConsolidated(ctx context.Context, uuids []string, now time.Time) error {
	if len(uuids) == 0 {
		return nil
	}
	_, err := s.Driver.ExecuteQuery(ctx, MarkEpisodesConsolidatedQuery, map[string]interface{}{
		"uuids": strListParam(uuids),
		"now":   now,
	})
	return err
}

// UpdateEntitySummary rewrites summary and embedding together and stamps
// consolidated_at, all in one statement.
func (s *Store) UpdateEntitySummary(ctx context.Context, uuid, summary string, embedding []float32, now time.Time) error {
	_, err := s.Driver.ExecuteQuery(ctx, UpdateEntitySummaryQuery, map[string]interface{}{
		"uuid":      uuid,
		"summary":   summary,
		"embedding": vecParam(embedding),
		"now":       now,
	})
	return err
}

// EdgeWithPeers carries an edge plus the canonical names of its endpoints,
// which tiered migration resolves in the LTM graph.
type EdgeWithPeers struct {
	Edge       *model.EntityEdge
	SourceName string
	TargetName string
}

// ActiveEdges lists active RELATES_TO edges touching the entity in the given
// direction (outgoing: entity is the source).
func (s *Store) ActiveEdges(ctx context.Context, entityUUID, direction string, limit int) ([]EdgeWithPeers, error) {
	query := ActiveOutgoingEdgesQuery
	if direction == model.DirectionIncoming {
		query = ActiveIncomingEdgesQuery
	}
	res, err := s.Driver.ExecuteQuery(ctx, query, map[string]interface{}{
		"uuid":  entityUUID,
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}

	var out []EdgeWithPeers
	for _, rec := range res.Records {
		edge, err := s.edgeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		sn, _ := rec.Get("source_name")
		tn, _ := rec.Get("target_name")
		srcName, _ := sn.(string)
		tgtName, _ := tn.(string)
		out = append(out, EdgeWithPeers{Edge: edge, SourceName: srcName, TargetName: tgtName})
	}
	return out, nil
}

// CandidatePair is one Phase 2 duplicate candidate with embeddings and
// incident-edge degrees.
type CandidatePair struct {
	AUUID      string
	AName      string
	AEmbedding []float32
	ADegree    int
	BUUID      string
	BName      string
	BEmbedding []float32
	BDegree    int
}

func (s *Store) MergeCandidatePairs(ctx context.Context, groupID string) ([]CandidatePair, error) {
	res, err := s.Driver.ExecuteQuery(ctx, MergeCandidatePairsQuery, map[string]interface{}{
		"group_id": groupID,
	})
	if err != nil {
		return nil, err
	}

	var out []CandidatePair
	for _, rec := range res.Records {
		var p CandidatePair
		if v, ok := rec.Get("a_uuid"); ok {
			p.AUUID, _ = v.(string)
		}
		if v, ok := rec.Get("a_name"); ok {
			p.AName, _ = v.(string)
		}
		if v, ok := rec.Get("a_embedding"); ok {
			p.AEmbedding = anyToFloats(v)
		}
		if v, ok := rec.Get("a_degree"); ok {
			p.ADegree = anyToInt(v)
		}
		if v, ok := rec.Get("b_uuid"); ok {
			p.BUUID, _ = v.(string)
		}
		if v, ok := rec.Get("b_name"); ok {
			p.BName, _ = v.(string)
		}
		if v, ok := rec.Get("b_embedding"); ok {
			p.BEmbedding = anyToFloats(v)
		}
		if v, ok := rec.Get("b_degree"); ok {
			p.BDegree = anyToInt(v)
		}
		out = append(out, p)
	}
	return out, nil
}

// MergeEntityInto redirects every edge from duplicate to canonical, then
// detach-deletes the duplicate. Four statements, fixed order: outgoing
// RELATES_TO, incoming RELATES_TO, MENTIONS, delete.
func (s *Store) MergeEntityInto(ctx context.Context, canonicalUUID, duplicateUUID string) error {
	params := map[string]interface{}{
		"canonical_uuid": canonicalUUID,
		"duplicate_uuid": duplicateUUID,
	}
	for _, q := range []string{RedirectOutgoingEdgesQuery, RedirectIncomingEdgesQuery, RedirectMentionsQuery} {
		if _, err := s.Driver.ExecuteQuery(ctx, q, params); err != nil {
			return err
		}
	}
	return s.DetachDelete(ctx, duplicateUUID)
}

func (s *Store) DeleteCommunityMembership(ctx context.Context, communityUUID string) error {
	_, err := s.Driver.ExecuteQuery(ctx, DeleteCommunityMembershipQuery, map[string]interface{}{
		"uuid": communityUUID,
	})
	return err
}

func anyToStrings(v interface{}) []string {
	switch xs := v.(type) {
	case []string:
		return xs
	case []interface{}:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func anyToFloats(v interface{}) []float32 {
	switch xs := v.(type) {
	case []float32:
		return xs
	case []float64:
		out := make([]float32, len(xs))
		for i, x := range xs {
			out[i] = float32(x)
		}
		return out
	case []interface{}:
		out := make([]float32, 0, len(xs))
		for _, x := range xs {
			if f, ok := x.(float64); ok {
				out = append(out, float32(f))
			}
		}
		return out
	}
	return nil
}

func anyToInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
