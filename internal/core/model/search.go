package model

import "time"

// Traversal directions.
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
	DirectionBoth     = "both"
)

type SearchParams struct {
	Query         string     `json:"query"`
	GroupID       string     `json:"group_id,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	GraphExpand   bool       `json:"graph_expand,omitempty"`
	ExpandHops    int        `json:"expand_hops,omitempty"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidTo       *time.Time `json:"valid_to,omitempty"`
	QueryTime     *time.Time `json:"query_time,omitempty"`
	TemporalAlpha *float64   `json:"temporal_alpha,omitempty"`
	HalfLifeDays  *float64   `json:"half_life_days,omitempty"`
}

// SearchResult pairs a materialised node with its similarity score.
// Score carries the temporal adjustment when query_time was supplied.
type SearchResult struct {
	Node   Node     `json:"node"`
	Labels []string `json:"labels"`
	Score  float64  `json:"score"`
}

type TraverseParams struct {
	StartEntityUUID string `json:"start_entity_uuid,omitempty"`
	StartEntityName string `json:"start_entity_name,omitempty"`
	MaxHops         int    `json:"max_hops,omitempty"`
	Direction       string `json:"direction,omitempty"`
	GroupID         string `json:"group_id,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

// TraverseResult is the induced subgraph around the start entity.
type TraverseResult struct {
	Start *EntityNode   `json:"start"`
	Nodes []*EntityNode `json:"nodes"`
	Edges []*EntityEdge `json:"edges"`
}
