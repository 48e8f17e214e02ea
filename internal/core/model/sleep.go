package model

import "time"

// SleepTarget selects single-graph mode (GroupID) or tiered STM→LTM mode
// (STMGroupID + LTMGroupID). Exactly one mode must be set.
type SleepTarget struct {
	GroupID    string `json:"group_id,omitempty"`
	STMGroupID string `json:"stm_group_id,omitempty"`
	LTMGroupID string `json:"ltm_group_id,omitempty"`
}

func (t SleepTarget) Tiered() bool {
	return t.STMGroupID != "" && t.LTMGroupID != ""
}

type SleepOptions struct {
	Consolidate bool `json:"consolidate"`
	Prune       bool `json:"prune"`
	Communities bool `json:"communities"`
	DryRun      bool `json:"dry_run"`

	CooldownMinutes int `json:"cooldown_minutes"`
	MinEpisodes     int `json:"min_episodes"`      // Phase 1, default 2
	MaxEntities     int `json:"max_entities"`      // Phase 1, default 50
	MaxNeighborhood int `json:"max_neighborhood"`  // tiered T2 outgoing cap, default 6
	MaxIncoming     int `json:"max_incoming"`      // tiered T2 incoming cap, default 4

	SimilarityThreshold float64 `json:"similarity_threshold"` // Phase 2, default 0.88

	MinGraphSize     int `json:"min_graph_size"`     // Phase 3, default 15
	RebuildThreshold int `json:"rebuild_threshold"`  // Phase 3, default 10
	MinCommunitySize int `json:"min_community_size"` // Phase 3, default 3
}

// DefaultSleepOptions enables all three phases with the documented defaults.
func DefaultSleepOptions() SleepOptions {
	return SleepOptions{
		Consolidate:         true,
		Prune:               true,
		Communities:         true,
		CooldownMinutes:     60,
		MinEpisodes:         2,
		MaxEntities:         50,
		MaxNeighborhood:     6,
		MaxIncoming:         4,
		SimilarityThreshold: 0.88,
		MinGraphSize:        15,
		RebuildThreshold:    10,
		MinCommunitySize:    3,
	}
}

type Phase1Report struct {
	EntitiesRefreshed    int      `json:"entities_refreshed"`
	EpisodesConsolidated int      `json:"episodes_consolidated"`
	TokensUsed           int      `json:"tokens_used"`
	EntitiesProcessed    []string `json:"entities_processed"`
}

type MergedPair struct {
	Canonical  string  `json:"canonical"`
	Duplicate  string  `json:"duplicate"`
	Similarity float64 `json:"similarity"`
}

type Phase2Report struct {
	EntitiesMerged int          `json:"entities_merged"`
	MergedPairs    []MergedPair `json:"merged_pairs"`
	EdgesPruned    int          `json:"edges_pruned"`
}

type Phase3Report struct {
	Skipped            bool   `json:"skipped"`
	Reason             string `json:"reason,omitempty"`
	CommunitiesBuilt   int    `json:"communities_built"`
	CommunitiesRemoved int    `json:"communities_removed"`
	EntityCount        int    `json:"entity_count"`
	TokensUsed         int    `json:"tokens_used"`
}

type SleepReport struct {
	GroupID     string       `json:"group_id"`
	LTMGroupID  string       `json:"ltm_group_id,omitempty"`
	DryRun      bool         `json:"dry_run"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	DurationMS  int64        `json:"duration_ms"`
	Phase1      Phase1Report `json:"phase1"`
	Phase2      Phase2Report `json:"phase2"`
	Phase3      Phase3Report `json:"phase3"`
}
