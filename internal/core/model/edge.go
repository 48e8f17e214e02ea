package model

import "time"

// EntityEdge is a RELATES_TO relationship between two entities.
// (source_uuid, target_uuid, name) is unique within a group_id.
// invalid_at set means the edge is historical (past-true).
type EntityEdge struct {
	UUID       string     `json:"uuid"`
	GroupID    string     `json:"group_id"`
	SourceUUID string     `json:"source_node_uuid"`
	TargetUUID string     `json:"target_node_uuid"`
	Name       string     `json:"name"` // UPPER_SNAKE_CASE relation label, e.g. WORKS_AT
	FactIDs    []string   `json:"fact_ids,omitempty"`
	Episodes   []string   `json:"episodes"` // episode UUIDs that introduced/confirmed the edge
	ValidAt    time.Time  `json:"valid_at"`
	InvalidAt  *time.Time `json:"invalid_at,omitempty"`
	ExpiredAt  *time.Time `json:"expired_at,omitempty"`
	DisputedBy []string   `json:"disputed_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Active reports whether the edge is currently-true and undisputed.
func (e *EntityEdge) Active() bool {
	return e.InvalidAt == nil && len(e.DisputedBy) == 0
}

// AddEpisode appends an episode uuid, deduplicating.
func (e *EntityEdge) AddEpisode(uuid string) {
	for _, ep := range e.Episodes {
		if ep == uuid {
			return
		}
	}
	e.Episodes = append(e.Episodes, uuid)
}

// EpisodicEdge is a MENTIONS link from an episode to an entity.
type EpisodicEdge struct {
	UUID       string    `json:"uuid"`
	GroupID    string    `json:"group_id"`
	SourceUUID string    `json:"source_node_uuid"` // Episodic
	TargetUUID string    `json:"target_node_uuid"` // Entity
	CreatedAt  time.Time `json:"created_at"`
}

// CommunityEdge is a HAS_MEMBER link from a community to an entity.
type CommunityEdge struct {
	UUID        string    `json:"uuid"`
	GroupID     string    `json:"group_id"`
	SourceUUID  string    `json:"source_node_uuid"` // Community
	TargetUUID  string    `json:"target_node_uuid"` // Entity
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
