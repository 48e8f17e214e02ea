package model

import "time"

// Node labels as stored in the graph.
const (
	LabelEntity    = "Entity"
	LabelEpisodic  = "Episodic"
	LabelCommunity = "Community"
)

// Episode source types.
const (
	EpisodeTypeMessage = "message"
	EpisodeTypeJSON    = "json"
	EpisodeTypeText    = "text"
)

// EntityTypes is the closed set of entity types the extraction prompt allows.
var EntityTypes = []string{
	"Person", "Organization", "Location", "Product",
	"Event", "Concept", "Technology", "Other",
}

// Node is the tagged union over the three node variants. Dispatch on Label
// to materialise the right variant from driver rows.
type Node interface {
	NodeUUID() string
	NodeGroupID() string
	NodeName() string
	Label() string
}

type EpisodicNode struct {
	UUID            string                 `json:"uuid"`
	GroupID         string                 `json:"group_id"`
	Name            string                 `json:"name"` // first 50 chars of content, display only
	EpisodeType     string                 `json:"episode_type"`
	Content         string                 `json:"content"`
	Embedding       []float32              `json:"embedding,omitempty"`
	ValidAt         time.Time              `json:"valid_at"`
	InvalidAt       *time.Time             `json:"invalid_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	ReferenceID     string                 `json:"reference_id,omitempty"`
	RetroactiveDays int                    `json:"retroactive_days"`
	DisputedBy      []string               `json:"disputed_by,omitempty"`
	ConsolidatedAt  *time.Time             `json:"consolidated_at,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

func (n *EpisodicNode) NodeUUID() string    { return n.UUID }
func (n *EpisodicNode) NodeGroupID() string { return n.GroupID }
func (n *EpisodicNode) NodeName() string    { return n.Name }
func (n *EpisodicNode) Label() string       { return LabelEpisodic }

type EntityNode struct {
	UUID             string     `json:"uuid"`
	GroupID          string     `json:"group_id"`
	Name             string     `json:"name"` // canonical; (name, group_id) unique
	EntityType       string     `json:"entity_type"`
	Summary          string     `json:"summary,omitempty"`
	SummaryEmbedding []float32  `json:"summary_embedding,omitempty"`
	FactIDs          []string   `json:"fact_ids,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ConsolidatedAt   *time.Time `json:"consolidated_at,omitempty"`
}

func (n *EntityNode) NodeUUID() string    { return n.UUID }
func (n *EntityNode) NodeGroupID() string { return n.GroupID }
func (n *EntityNode) NodeName() string    { return n.Name }
func (n *EntityNode) Label() string       { return LabelEntity }

type CommunityNode struct {
	UUID                     string    `json:"uuid"`
	GroupID                  string    `json:"group_id"`
	Name                     string    `json:"name"`
	CommunityLevel           int       `json:"community_level"`
	Summary                  string    `json:"summary"`
	SummaryEmbedding         []float32 `json:"summary_embedding,omitempty"`
	MemberEntityIDs          []string  `json:"member_entity_ids"`
	MemberCount              int       `json:"member_count"`
	DomainHints              []string  `json:"domain_hints,omitempty"`
	ImportanceScore          float64   `json:"importance_score"`
	EntityCountAtLastRebuild int       `json:"entity_count_at_last_rebuild"`
	LastFullRebuild          time.Time `json:"last_full_rebuild"`
	CreatedAt                time.Time `json:"created_at"`
}

func (n *CommunityNode) NodeUUID() string    { return n.UUID }
func (n *CommunityNode) NodeGroupID() string { return n.GroupID }
func (n *CommunityNode) NodeName() string    { return n.Name }
func (n *CommunityNode) Label() string       { return LabelCommunity }

// RetroactiveDays is how many whole days after the event occurred it was
// recorded. Never negative.
func RetroactiveDays(createdAt, validAt time.Time) int {
	d := int(createdAt.Sub(validAt) / (24 * time.Hour))
	if d < 0 {
		return 0
	}
	return d
}

// EpisodeName derives the display name from content (first 50 chars).
func EpisodeName(content string) string {
	runes := []rune(content)
	if len(runes) > 50 {
		return string(runes[:50])
	}
	return content
}

// ValidEntityType reports whether t is in the allowed enum.
func ValidEntityType(t string) bool {
	for _, e := range EntityTypes {
		if e == t {
			return true
		}
	}
	return false
}
