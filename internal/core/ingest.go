package core

import (
	"context"
	"fmt"
	"time"

	"github.com/agentmem/somnia/internal/core/common"
	"github.com/agentmem/somnia/internal/core/model"
)

// Entities and relations below this confidence are dropped.
const minConfidence = 0.5

type EpisodeParams struct {
	Content     string                 `json:"content"`
	EpisodeType string                 `json:"episode_type,omitempty"`
	GroupID     string                 `json:"group_id,omitempty"`
	ReferenceID string                 `json:"reference_id,omitempty"`
	ValidAt     *time.Time             `json:"valid_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// AddEpisode runs the ingestion pipeline: embed, persist the episode,
// extract entities and relations with known-entity context, resolve and link.
// The episode node is persisted before extraction, so an aborted call leaves
// a retryable episode behind.
func (e *Engine) AddEpisode(ctx context.Context, params EpisodeParams) (*model.EpisodicNode, error) {
	if params.Content == "" {
		return nil, fmt.Errorf("episode content is required")
	}
	groupID := params.GroupID
	if groupID == "" {
		groupID = DefaultGroupID
	}
	episodeType := params.EpisodeType
	if episodeType == "" {
		episodeType = model.EpisodeTypeMessage
	}
	switch episodeType {
	case model.EpisodeTypeMessage, model.EpisodeTypeJSON, model.EpisodeTypeText:
	default:
		return nil, fmt.Errorf("unknown episode type: %s", episodeType)
	}

	embedding, err := e.Embedder.Embed(ctx, params.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed episode: %w", err)
	}

	now := e.Now()
	validAt := now
	if params.ValidAt != nil {
		validAt = *params.ValidAt
	}

	episode := &model.EpisodicNode{
		UUID:            e.UUIDGenerator(),
		GroupID:         groupID,
		Name:            model.EpisodeName(params.Content),
		EpisodeType:     episodeType,
		Content:         params.Content,
		Embedding:       embedding,
		ValidAt:         validAt,
		CreatedAt:       now,
		ReferenceID:     params.ReferenceID,
		RetroactiveDays: model.RetroactiveDays(now, validAt),
		Metadata:        params.Metadata,
	}
	if err := e.Store.UpsertEpisode(ctx, episode); err != nil {
		return nil, fmt.Errorf("failed to save episode: %w", err)
	}

	candidates, err := e.Resolver.Candidates(ctx, groupID, embedding, now)
	if err != nil {
		return episode, fmt.Errorf("failed to fetch entity candidates: %w", err)
	}

	extracted, err := e.Extractor.Extract(ctx, params.Content, candidates)
	if err != nil {
		return episode, err
	}

	resolved := make(map[string]*model.EntityNode)
	for _, ent := range extracted.Entities {
		if ent.Confidence < minConfidence || ent.Name == "" {
			continue
		}
		node, err := e.Resolver.Resolve(ctx, groupID, ent, now)
		if err != nil {
			return episode, err
		}
		resolved[node.Name] = node

		mention := &model.EpisodicEdge{
			UUID:       e.UUIDGenerator(),
			GroupID:    groupID,
			SourceUUID: episode.UUID,
			TargetUUID: node.UUID,
			CreatedAt:  now,
		}
		if err := e.Store.UpsertEpisodicEdge(ctx, mention); err != nil {
			return episode, fmt.Errorf("failed to link episode to %q: %w", node.Name, err)
		}
	}

	for _, rel := range extracted.Relations {
		if rel.Confidence < minConfidence {
			continue
		}
		source, ok := resolved[rel.SourceName]
		if !ok {
			continue
		}
		target, ok := resolved[rel.TargetName]
		if !ok {
			continue
		}
		if err := e.processRelation(ctx, episode, source, target, rel, now); err != nil {
			return episode, err
		}
	}

	return episode, nil
}

func (e *Engine) processRelation(ctx context.Context, episode *model.EpisodicNode, source, target *model.EntityNode, rel model.ExtractedRelation, now time.Time) error {
	if rel.IsNegated {
		return e.disputeRelation(ctx, episode, source, target, rel.RelationName)
	}

	existing, err := e.Store.FetchEdgeBetween(ctx, source.UUID, target.UUID, rel.RelationName)
	if err != nil {
		return err
	}

	if existing != nil {
		if rel.TemporalValidity == model.TemporalHistorical {
			if existing.InvalidAt == nil {
				existing.InvalidAt = &now
			}
		} else {
			existing.AddEpisode(episode.UUID)
			existing.ValidAt = now
		}
		return e.Store.UpsertEntityEdge(ctx, existing)
	}

	edge := &model.EntityEdge{
		UUID:       e.UUIDGenerator(),
		GroupID:    episode.GroupID,
		SourceUUID: source.UUID,
		TargetUUID: target.UUID,
		Name:       rel.RelationName,
		Episodes:   []string{episode.UUID},
		ValidAt:    now,
		CreatedAt:  now,
	}
	// Historical-on-arrival edges are stored but immediately marked invalid.
	if rel.TemporalValidity == model.TemporalHistorical {
		edge.InvalidAt = &now
	}
	return e.Store.UpsertEntityEdge(ctx, edge)
}

// disputeRelation cross-marks a negated relation against its active positive
// counterpart. The positive edge is never deleted; with no counterpart the
// negation is a no-op.
func (e *Engine) disputeRelation(ctx context.Context, episode *model.EpisodicNode, source, target *model.EntityNode, relationName string) error {
	positive, err := e.Store.FetchActivePositiveEdge(ctx, source.UUID, target.UUID, relationName)
	if err != nil {
		return err
	}
	if positive == nil {
		return nil
	}

	positive.DisputedBy = common.Dedup(append(positive.DisputedBy, episode.UUID))
	if err := e.Store.SetEdgeDisputed(ctx, positive.UUID, positive.DisputedBy); err != nil {
		return err
	}

	episode.DisputedBy = common.Dedup(append(episode.DisputedBy, positive.Episodes...))
	return e.Store.SetEpisodeDisputed(ctx, episode.UUID, episode.DisputedBy)
}
