package model

// ExtractedEntity is one entity mention proposed by the extraction call.
type ExtractedEntity struct {
	Name       string  `json:"name"`
	EntityType string  `json:"entity_type"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// ExtractedRelation is one typed relation proposed by the extraction call.
type ExtractedRelation struct {
	SourceName       string  `json:"source_name"`
	TargetName       string  `json:"target_name"`
	RelationName     string  `json:"relation_name"`
	Confidence       float64 `json:"confidence"`
	IsNegated        bool    `json:"is_negated"`
	TemporalValidity string  `json:"temporal_validity"` // "current" or "historical"
}

// ExtractionResult is the single structured payload of the ingestion LLM call.
type ExtractionResult struct {
	Entities  []ExtractedEntity   `json:"entities"`
	Relations []ExtractedRelation `json:"relations"`
}

// MergedSummary is the payload of the entity summary-merge call.
type MergedSummary struct {
	MergedSummary string `json:"merged_summary"`
}

// ConsolidatedSummary is the payload of a sleep Phase 1 cluster call.
type ConsolidatedSummary struct {
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// CommunityProfile is the payload of a sleep Phase 3 community summary call.
type CommunityProfile struct {
	Name            string   `json:"name"`
	Summary         string   `json:"summary"`
	DomainHints     []string `json:"domain_hints"`
	ImportanceScore float64  `json:"importance_score"`
}

const (
	TemporalCurrent    = "current"
	TemporalHistorical = "historical"
)
