package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agentmem/somnia/internal/core/model"
)

var ErrNotFound = errors.New("not found")

// Store is the typed facade over the raw graph driver. Every write is a
// single statement so partial failures never leave a half-node.
type Store struct {
	Driver GraphDriver
}

func NewStore(d GraphDriver) *Store {
	return &Store{Driver: d}
}

func (s *Store) UpsertEntity(ctx context.Context, n *model.EntityNode) error {
	params := map[string]interface{}{
		"uuid":            n.UUID,
		"name":            n.Name,
		"group_id":        n.GroupID,
		"entity_type":     n.EntityType,
		"summary":         n.Summary,
		"embedding":       vecParam(n.SummaryEmbedding),
		"fact_ids":        strListParam(n.FactIDs),
		"created_at":      n.CreatedAt,
		"consolidated_at": timeParam(n.ConsolidatedAt),
	}
	_, err := s.Driver.ExecuteQuery(ctx, SaveEntityNodeQuery, params)
	return err
}

func (s *Store) UpsertEpisode(ctx context.Context, n *model.EpisodicNode) error {
	var metadata interface{}
	if len(n.Metadata) > 0 {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal episode metadata: %w", err)
		}
		metadata = string(b)
	}
	params := map[string]interface{}{
		"uuid":             n.UUID,
		"name":             n.Name,
		"group_id":         n.GroupID,
		"episode_type":     n.EpisodeType,
		"content":          n.Content,
		"embedding":        vecParam(n.Embedding),
		"valid_at":         n.ValidAt,
		"invalid_at":       timeParam(n.InvalidAt),
		"created_at":       n.CreatedAt,
		"reference_id":     n.ReferenceID,
		"retroactive_days": int64(n.RetroactiveDays),
		"disputed_by":      strListParam(n.DisputedBy),
		"consolidated_at":  timeParam(n.ConsolidatedAt),
		"metadata":         metadata,
	}
	_, err := s.Driver.ExecuteQuery(ctx, SaveEpisodicNodeQuery, params)
	return err
}

func (s *Store) UpsertCommunity(ctx context.Context, n *model.CommunityNode) error {
	params := map[string]interface{}{
		"uuid":                         n.UUID,
		"name":                         n.Name,
		"group_id":                     n.GroupID,
		"community_level":              int64(n.CommunityLevel),
		"summary":                      n.Summary,
		"embedding":                    vecParam(n.SummaryEmbedding),
		"member_entity_ids":            strListParam(n.MemberEntityIDs),
		"member_count":                 int64(n.MemberCount),
		"domain_hints":                 strListParam(n.DomainHints),
		"importance_score":             n.ImportanceScore,
		"entity_count_at_last_rebuild": int64(n.EntityCountAtLastRebuild),
		"last_full_rebuild":            n.LastFullRebuild,
		"created_at":                   n.CreatedAt,
	}
	_, err := s.Driver.ExecuteQuery(ctx, SaveCommunityNodeQuery, params)
	return err
}

func (s *Store) UpsertEntityEdge(ctx context.Context, e *model.EntityEdge) error {
	_, err := s.Driver.ExecuteQuery(ctx, SaveEntityEdgeQuery, entityEdgeParams(e))
	return err
}

// MergeEntityEdgeByTriple upserts an edge keyed by (source, target, name,
// group_id) instead of uuid. Used by tiered relation migration.
func (s *Store) MergeEntityEdgeByTriple(ctx context.Context, e *model.EntityEdge) error {
	_, err := s.Driver.ExecuteQuery(ctx, MergeEntityEdgeByTripleQuery, entityEdgeParams(e))
	return err
}

func entityEdgeParams(e *model.EntityEdge) map[string]interface{} {
	return map[string]interface{}{
		"uuid":        e.UUID,
		"source_uuid": e.SourceUUID,
		"target_uuid": e.TargetUUID,
		"name":        e.Name,
		"group_id":    e.GroupID,
		"fact_ids":    strListParam(e.FactIDs),
		"episodes":    strListParam(e.Episodes),
		"valid_at":    e.ValidAt,
		"invalid_at":  timeParam(e.InvalidAt),
		"expired_at":  timeParam(e.ExpiredAt),
		"disputed_by": strListParam(e.DisputedBy),
		"created_at":  e.CreatedAt,
	}
}

func (s *Store) UpsertEpisodicEdge(ctx context.Context, e *model.EpisodicEdge) error {
	params := map[string]interface{}{
		"uuid":        e.UUID,
		"source_uuid": e.SourceUUID,
		"target_uuid": e.TargetUUID,
		"group_id":    e.GroupID,
		"created_at":  e.CreatedAt,
	}
	_, err := s.Driver.ExecuteQuery(ctx, SaveEpisodicEdgeQuery, params)
	return err
}

func (s *Store) UpsertCommunityEdge(ctx context.Context, e *model.CommunityEdge) error {
	params := map[string]interface{}{
		"uuid":        e.UUID,
		"source_uuid": e.SourceUUID,
		"target_uuid": e.TargetUUID,
		"group_id":    e.GroupID,
		"name":        e.Name,
		"description": e.Description,
		"created_at":  e.CreatedAt,
	}
	_, err := s.Driver.ExecuteQuery(ctx, SaveCommunityEdgeQuery, params)
	return err
}

// FetchEntityByName is the exact case-sensitive lookup within a group.
// Returns (nil, nil) on miss.
func (s *Store) FetchEntityByName(ctx context.Context, name, groupID string) (*model.EntityNode, error) {
	res, err := s.Driver.ExecuteQuery(ctx, GetEntityByNameQuery, map[string]interface{}{
		"name":     name,
		"group_id": groupID,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, nil
	}
	node, err := s.nodeFromRecord(res.Records[0])
	if err != nil {
		return nil, err
	}
	entity, ok := node.(*model.EntityNode)
	if !ok {
		return nil, fmt.Errorf("expected Entity node for name %q", name)
	}
	return entity, nil
}

func (s *Store) GetNode(ctx context.Context, uuid string) (model.Node, error) {
	res, err := s.Driver.ExecuteQuery(ctx, GetNodeByUUIDQuery, map[string]interface{}{"uuid": uuid})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrNotFound
	}
	return s.nodeFromRecord(res.Records[0])
}

func (s *Store) GetEdge(ctx context.Context, uuid string) (*model.EntityEdge, error) {
	res, err := s.Driver.ExecuteQuery(ctx, GetEdgeByUUIDQuery, map[string]interface{}{"uuid": uuid})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrNotFound
	}
	return s.edgeFromRecord(res.Records[0])
}

// FetchEdgeBetween returns the RELATES_TO edge (src)-[name]->(tgt),
// or (nil, nil) when absent.
func (s *Store) FetchEdgeBetween(ctx context.Context, sourceUUID, targetUUID, name string) (*model.EntityEdge, error) {
	return s.fetchEdge(ctx, GetEdgeBetweenQuery, sourceUUID, targetUUID, name)
}

// FetchActivePositiveEdge is FetchEdgeBetween restricted to invalid_at IS NULL.
func (s *Store) FetchActivePositiveEdge(ctx context.Context, sourceUUID, targetUUID, name string) (*model.EntityEdge, error) {
	return s.fetchEdge(ctx, GetActivePositiveEdgeQuery, sourceUUID, targetUUID, name)
}

func (s *Store) fetchEdge(ctx context.Context, query, sourceUUID, targetUUID, name string) (*model.EntityEdge, error) {
	res, err := s.Driver.ExecuteQuery(ctx, query, map[string]interface{}{
		"source_uuid": sourceUUID,
		"target_uuid": targetUUID,
		"name":        name,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, nil
	}
	return s.edgeFromRecord(res.Records[0])
}

func (s *Store) SetEdgeDisputed(ctx context.Context, uuid string, disputedBy []string) error {
	_, err := s.Driver.ExecuteQuery(ctx, SetEdgeDisputedQuery, map[string]interface{}{
		"uuid":        uuid,
		"disputed_by": strListParam(disputedBy),
	})
	return err
}

func (s *Store) SetEpisodeDisputed(ctx context.Context, uuid string, disputedBy []string) error {
	_, err := s.Driver.ExecuteQuery(ctx, SetEpisodeDisputedQuery, map[string]interface{}{
		"uuid":        uuid,
		"disputed_by": strListParam(disputedBy),
	})
	return err
}

func (s *Store) DetachDelete(ctx context.Context, uuid string) error {
	_, err := s.Driver.ExecuteQuery(ctx, DetachDeleteNodeQuery, map[string]interface{}{"uuid": uuid})
	return err
}

func (s *Store) DeleteEdge(ctx context.Context, uuid string) error {
	_, err := s.Driver.ExecuteQuery(ctx, DeleteEdgeByUUIDQuery, map[string]interface{}{"uuid": uuid})
	return err
}

// DeleteOrphanEdges removes RELATES_TO edges with no supporting episodes and
// returns how many were deleted.
func (s *Store) DeleteOrphanEdges(ctx context.Context, groupID string) (int, error) {
	res, err := s.Driver.ExecuteQuery(ctx, DeleteOrphanEdgesQuery, map[string]interface{}{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	v, _ := res.Records[0].Get("pruned")
	if n, ok := v.(int64); ok {
		return int(n), nil
	}
	return 0, nil
}

// CountOrphanEdges reports how many RELATES_TO edges DeleteOrphanEdges would
// remove, without removing them.
func (s *Store) CountOrphanEdges(ctx context.Context, groupID string) (int, error) {
	res, err := s.Driver.ExecuteQuery(ctx, CountOrphanEdgesQuery, map[string]interface{}{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	v, _ := res.Records[0].Get("pruned")
	if n, ok := v.(int64); ok {
		return int(n), nil
	}
	return 0, nil
}

// ScoredNode is one similarity-search row.
type ScoredNode struct {
	Node       model.Node
	Labels     []string
	Similarity float64
}

// SimilaritySearch runs cosine search against n.embedding over the given
// label union. The temporal window, when set, constrains Episodic nodes only.
func (s *Store) SimilaritySearch(ctx context.Context, groupID string, queryEmbedding []float32, labels []string, limit int, validFrom, validTo *time.Time) ([]ScoredNode, error) {
	if len(labels) == 0 {
		labels = []string{model.LabelEntity, model.LabelEpisodic, model.LabelCommunity}
	}
	labelTerms := make([]string, len(labels))
	for i, l := range labels {
		labelTerms[i] = "n:" + l
	}

	query := fmt.Sprintf(`
		MATCH (n {group_id: $group_id})
		WHERE (%s)
			AND n.embedding IS NOT NULL
			AND (NOT n:Episodic OR (
				($valid_from IS NULL OR n.valid_at >= $valid_from)
				AND ($valid_to IS NULL OR n.valid_at <= $valid_to)))
		%s
		RETURN n, labels(n) AS labels, similarity
		ORDER BY similarity DESC
		LIMIT $limit
	`, strings.Join(labelTerms, " OR "), SimilarityFragment)

	params := map[string]interface{}{
		"group_id":        groupID,
		"query_embedding": vecParam(queryEmbedding),
		"query_norm":      vecNorm(queryEmbedding),
		"valid_from":      timeParam(validFrom),
		"valid_to":        timeParam(validTo),
		"limit":           int64(limit),
	}

	res, err := s.Driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var out []ScoredNode
	for _, rec := range res.Records {
		nv, _ := rec.Get("n")
		lv, _ := rec.Get("labels")
		sv, _ := rec.Get("similarity")
		labels := labelsFromValue(lv)
		node, err := NodeFromValue(nv, labels)
		if err != nil {
			return nil, err
		}
		sim, _ := sv.(float64)
		out = append(out, ScoredNode{Node: node, Labels: labels, Similarity: sim})
	}
	return out, nil
}

// EntityCandidates returns entities whose embedding clears minSimilarity
// against the query embedding, most similar first.
func (s *Store) EntityCandidates(ctx context.Context, groupID string, queryEmbedding []float32, minSimilarity float64, limit int) ([]ScoredNode, error) {
	query := fmt.Sprintf(`
		MATCH (n:Entity {group_id: $group_id})
		WHERE n.embedding IS NOT NULL
		%s
		WHERE similarity > $min_similarity
		RETURN n, labels(n) AS labels, similarity
		ORDER BY similarity DESC
		LIMIT $limit
	`, SimilarityFragment)

	params := map[string]interface{}{
		"group_id":        groupID,
		"query_embedding": vecParam(queryEmbedding),
		"query_norm":      vecNorm(queryEmbedding),
		"min_similarity":  minSimilarity,
		"limit":           int64(limit),
	}

	res, err := s.Driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var out []ScoredNode
	for _, rec := range res.Records {
		nv, _ := rec.Get("n")
		lv, _ := rec.Get("labels")
		sv, _ := rec.Get("similarity")
		labels := labelsFromValue(lv)
		node, err := NodeFromValue(nv, labels)
		if err != nil {
			return nil, err
		}
		sim, _ := sv.(float64)
		out = append(out, ScoredNode{Node: node, Labels: labels, Similarity: sim})
	}
	return out, nil
}

// VariableLengthMatch returns distinct entities reachable from the seeds
// within hops RELATES_TO edges. The hop count is validated and formatted
// inline because Cypher cannot parameterise variable-length bounds.
func (s *Store) VariableLengthMatch(ctx context.Context, srcUUIDs []string, hops int, direction, groupID string, limit int) ([]*model.EntityNode, error) {
	if len(srcUUIDs) == 0 {
		return nil, nil
	}
	if hops < 1 || hops > 10 {
		return nil, fmt.Errorf("hop count out of range: %d", hops)
	}

	var left, right string
	switch direction {
	case model.DirectionOutgoing:
		left, right = "-", "->"
	case model.DirectionIncoming:
		left, right = "<-", "-"
	case model.DirectionBoth, "":
		left, right = "-", "-"
	default:
		return nil, fmt.Errorf("unknown direction: %s", direction)
	}

	query := fmt.Sprintf(`
		MATCH (src:Entity)
		WHERE src.uuid IN $src_uuids
		MATCH (src)%s[:RELATES_TO*1..%d]%s(neighbor:Entity {group_id: $group_id})
		WHERE NOT neighbor.uuid IN $src_uuids
		RETURN DISTINCT neighbor AS n, labels(neighbor) AS labels
		LIMIT $limit
	`, left, hops, right)

	params := map[string]interface{}{
		"src_uuids": strListParam(srcUUIDs),
		"group_id":  groupID,
		"limit":     int64(limit),
	}

	res, err := s.Driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return s.entitiesFromRecords(res)
}

// CommunityMembers returns the entity members of the given communities.
func (s *Store) CommunityMembers(ctx context.Context, communityUUIDs []string, groupID string) ([]*model.EntityNode, error) {
	if len(communityUUIDs) == 0 {
		return nil, nil
	}
	res, err := s.Driver.ExecuteQuery(ctx, CommunityMembersQuery, map[string]interface{}{
		"community_uuids": strListParam(communityUUIDs),
		"group_id":        groupID,
	})
	if err != nil {
		return nil, err
	}
	return s.entitiesFromRecords(res, "m")
}

func (s *Store) GetRecentEpisodes(ctx context.Context, groupID string, limit int) ([]*model.EpisodicNode, error) {
	res, err := s.Driver.ExecuteQuery(ctx, GetRecentEpisodesQuery, map[string]interface{}{
		"group_id": groupID,
		"limit":    int64(limit),
	})
	if err != nil {
		return nil, err
	}
	var out []*model.EpisodicNode
	for _, rec := range res.Records {
		node, err := s.nodeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		if ep, ok := node.(*model.EpisodicNode); ok {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (s *Store) GroupEntities(ctx context.Context, groupID string) ([]*model.EntityNode, error) {
	res, err := s.Driver.ExecuteQuery(ctx, GroupEntitiesQuery, map[string]interface{}{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	return s.entitiesFromRecords(res)
}

func (s *Store) GroupEntityEdges(ctx context.Context, groupID string) ([]*model.EntityEdge, error) {
	res, err := s.Driver.ExecuteQuery(ctx, GroupEntityEdgesQuery, map[string]interface{}{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	var out []*model.EntityEdge
	for _, rec := range res.Records {
		edge, err := s.edgeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, edge)
	}
	return out, nil
}

// EdgesAmong returns every RELATES_TO edge whose endpoints are both in uuids.
func (s *Store) EdgesAmong(ctx context.Context, uuids []string) ([]*model.EntityEdge, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	res, err := s.Driver.ExecuteQuery(ctx, EdgesAmongQuery, map[string]interface{}{
		"uuids": strListParam(uuids),
	})
	if err != nil {
		return nil, err
	}
	var out []*model.EntityEdge
	for _, rec := range res.Records {
		edge, err := s.edgeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, edge)
	}
	return out, nil
}

func (s *Store) GroupCommunities(ctx context.Context, groupID string) ([]*model.CommunityNode, error) {
	res, err := s.Driver.ExecuteQuery(ctx, GroupCommunitiesQuery, map[string]interface{}{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	var out []*model.CommunityNode
	for _, rec := range res.Records {
		node, err := s.nodeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		if c, ok := node.(*model.CommunityNode); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// record helpers

type record interface {
	Get(key string) (interface{}, bool)
}

func (s *Store) nodeFromRecord(rec record) (model.Node, error) {
	nv, _ := rec.Get("n")
	lv, _ := rec.Get("labels")
	return NodeFromValue(nv, labelsFromValue(lv))
}

func (s *Store) edgeFromRecord(rec record) (*model.EntityEdge, error) {
	ev, _ := rec.Get("e")
	sv, _ := rec.Get("source_uuid")
	tv, _ := rec.Get("target_uuid")
	src, _ := sv.(string)
	tgt, _ := tv.(string)
	return EdgeFromValue(ev, src, tgt)
}

func (s *Store) entitiesFromRecords(res neo4j.EagerResult, keys ...string) ([]*model.EntityNode, error) {
	key := "n"
	if len(keys) > 0 {
		key = keys[0]
	}
	var out []*model.EntityNode
	for _, rec := range res.Records {
		nv, _ := rec.Get(key)
		lv, _ := rec.Get("labels")
		node, err := NodeFromValue(nv, labelsFromValue(lv))
		if err != nil {
			return nil, err
		}
		if e, ok := node.(*model.EntityNode); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// param marshalling

func vecParam(v []float32) interface{} {
	if len(v) == 0 {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func vecNorm(v []float32) float64 {
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	return math.Sqrt(n)
}

func strListParam(xs []string) []interface{} {
	out := make([]interface{}, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func timeParam(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
