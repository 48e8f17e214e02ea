package driver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agentmem/somnia/internal/core/model"
)

// Row hydration: dispatch on node labels to materialise the right model
// variant from driver values.

func NodeFromValue(v interface{}, labels []string) (model.Node, error) {
	node, ok := v.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("expected node value, got %T", v)
	}
	if len(labels) == 0 {
		labels = node.Labels
	}
	return nodeFromProps(labels, node.Props)
}

func nodeFromProps(labels []string, p map[string]interface{}) (model.Node, error) {
	switch {
	case hasLabel(labels, model.LabelEntity):
		return entityFromProps(p), nil
	case hasLabel(labels, model.LabelEpisodic):
		return episodeFromProps(p), nil
	case hasLabel(labels, model.LabelCommunity):
		return communityFromProps(p), nil
	default:
		return nil, fmt.Errorf("unknown node labels: %v", labels)
	}
}

func entityFromProps(p map[string]interface{}) *model.EntityNode {
	return &model.EntityNode{
		UUID:             propString(p, "uuid"),
		GroupID:          propString(p, "group_id"),
		Name:             propString(p, "name"),
		EntityType:       propString(p, "entity_type"),
		Summary:          propString(p, "summary"),
		SummaryEmbedding: propFloats(p, "embedding"),
		FactIDs:          propStrings(p, "fact_ids"),
		CreatedAt:        propTime(p, "created_at"),
		ConsolidatedAt:   propTimePtr(p, "consolidated_at"),
	}
}

func episodeFromProps(p map[string]interface{}) *model.EpisodicNode {
	return &model.EpisodicNode{
		UUID:            propString(p, "uuid"),
		GroupID:         propString(p, "group_id"),
		Name:            propString(p, "name"),
		EpisodeType:     propString(p, "episode_type"),
		Content:         propString(p, "content"),
		Embedding:       propFloats(p, "embedding"),
		ValidAt:         propTime(p, "valid_at"),
		InvalidAt:       propTimePtr(p, "invalid_at"),
		CreatedAt:       propTime(p, "created_at"),
		ReferenceID:     propString(p, "reference_id"),
		RetroactiveDays: propInt(p, "retroactive_days"),
		DisputedBy:      propStrings(p, "disputed_by"),
		ConsolidatedAt:  propTimePtr(p, "consolidated_at"),
		Metadata:        propJSONMap(p, "metadata"),
	}
}

func communityFromProps(p map[string]interface{}) *model.CommunityNode {
	return &model.CommunityNode{
		UUID:                     propString(p, "uuid"),
		GroupID:                  propString(p, "group_id"),
		Name:                     propString(p, "name"),
		CommunityLevel:           propInt(p, "community_level"),
		Summary:                  propString(p, "summary"),
		SummaryEmbedding:         propFloats(p, "embedding"),
		MemberEntityIDs:          propStrings(p, "member_entity_ids"),
		MemberCount:              propInt(p, "member_count"),
		DomainHints:              propStrings(p, "domain_hints"),
		ImportanceScore:          propFloat(p, "importance_score"),
		EntityCountAtLastRebuild: propInt(p, "entity_count_at_last_rebuild"),
		LastFullRebuild:          propTime(p, "last_full_rebuild"),
		CreatedAt:                propTime(p, "created_at"),
	}
}

func EdgeFromValue(v interface{}, sourceUUID, targetUUID string) (*model.EntityEdge, error) {
	rel, ok := v.(neo4j.Relationship)
	if !ok {
		return nil, fmt.Errorf("expected relationship value, got %T", v)
	}
	p := rel.Props
	return &model.EntityEdge{
		UUID:       propString(p, "uuid"),
		GroupID:    propString(p, "group_id"),
		SourceUUID: sourceUUID,
		TargetUUID: targetUUID,
		Name:       propString(p, "name"),
		FactIDs:    propStrings(p, "fact_ids"),
		Episodes:   propStrings(p, "episodes"),
		ValidAt:    propTime(p, "valid_at"),
		InvalidAt:  propTimePtr(p, "invalid_at"),
		ExpiredAt:  propTimePtr(p, "expired_at"),
		DisputedBy: propStrings(p, "disputed_by"),
		CreatedAt:  propTime(p, "created_at"),
	}, nil
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

func labelsFromValue(v interface{}) []string {
	switch ls := v.(type) {
	case []string:
		return ls
	case []interface{}:
		out := make([]string, 0, len(ls))
		for _, l := range ls {
			if s, ok := l.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func propString(p map[string]interface{}, k string) string {
	if s, ok := p[k].(string); ok {
		return s
	}
	return ""
}

func propInt(p map[string]interface{}, k string) int {
	switch v := p[k].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func propFloat(p map[string]interface{}, k string) float64 {
	switch v := p[k].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func propTime(p map[string]interface{}, k string) time.Time {
	switch v := p[k].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func propTimePtr(p map[string]interface{}, k string) *time.Time {
	if p[k] == nil {
		return nil
	}
	t := propTime(p, k)
	if t.IsZero() {
		return nil
	}
	return &t
}

func propStrings(p map[string]interface{}, k string) []string {
	switch v := p[k].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func propFloats(p map[string]interface{}, k string) []float32 {
	switch v := p[k].(type) {
	case []float32:
		return v
	case []float64:
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return out
	case []interface{}:
		out := make([]float32, 0, len(v))
		for _, x := range v {
			switch f := x.(type) {
			case float64:
				out = append(out, float32(f))
			case float32:
				out = append(out, f)
			case int64:
				out = append(out, float32(f))
			}
		}
		return out
	}
	return nil
}

func propJSONMap(p map[string]interface{}, k string) map[string]interface{} {
	s, ok := p[k].(string)
	if !ok || s == "" {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
