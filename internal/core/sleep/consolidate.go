package sleep

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/agentmem/somnia/internal/core/common"
	"github.com/agentmem/somnia/internal/core/model"
	"github.com/agentmem/somnia/internal/driver"
)

// migratedEdgeLimit caps how many STM edges one entity can carry into LTM per
// cycle. Deferred edges stay in STM and migrate on a later cycle.
const migratedEdgeLimit = 200

// consolidate is Phase 1 in single-graph mode: rewrite each busy entity's
// summary from its unconsolidated episodes, then mark those episodes done.
// A failed LLM or embedding call skips the cluster; the phase continues.
func (e *Engine) consolidate(ctx context.Context, groupID string, opts model.SleepOptions, report *model.Phase1Report) error {
	cutoff := e.Now().Add(-time.Duration(opts.CooldownMinutes) * time.Minute)
	clusters, err := e.Store.ConsolidationClusters(ctx, groupID, cutoff, opts.MinEpisodes, opts.MaxEntities)
	if err != nil {
		return fmt.Errorf("failed to list consolidation clusters: %w", err)
	}

	for _, cluster := range clusters {
		if opts.DryRun {
			report.EntitiesRefreshed++
			report.EpisodesConsolidated += len(cluster.EpisodeUUIDs)
			report.EntitiesProcessed = append(report.EntitiesProcessed, cluster.Entity.Name)
			continue
		}

		summary, tokens, err := e.synthesizeCluster(ctx, cluster)
		if err != nil {
			log.Printf("sleep: skipping consolidation of %q: %v", cluster.Entity.Name, err)
			continue
		}
		report.TokensUsed += tokens

		embedding, err := e.Embedder.Embed(ctx, summary)
		if err != nil {
			log.Printf("sleep: skipping consolidation of %q: embed: %v", cluster.Entity.Name, err)
			continue
		}

		now := e.Now()
		if err := e.Store.UpdateEntitySummary(ctx, cluster.Entity.UUID, summary, embedding, now); err != nil {
			return fmt.Errorf("failed to update summary of %q: %w", cluster.Entity.Name, err)
		}
		if err := e.Store.MarkEpisodesConsolidated(ctx, cluster.EpisodeUUIDs, now); err != nil {
			return fmt.Errorf("failed to mark episodes for %q: %w", cluster.Entity.Name, err)
		}

		report.EntitiesRefreshed++
		report.EpisodesConsolidated += len(cluster.EpisodeUUIDs)
		report.EntitiesProcessed = append(report.EntitiesProcessed, cluster.Entity.Name)
	}
	return nil
}

// consolidateTiered is Phase 1 across two graphs. Per STM cluster:
// T1 synthesize the short-term view and find (or create) the LTM counterpart
// by exact name, T2 merge it into the counterpart's summary using its LTM
// neighbourhood as grounding, T3 migrate the STM entity's active relations to
// LTM where both endpoints resolve. Unresolvable relations stay in STM.
func (e *Engine) consolidateTiered(ctx context.Context, stmGroupID, ltmGroupID string, opts model.SleepOptions, report *model.Phase1Report) error {
	cutoff := e.Now().Add(-time.Duration(opts.CooldownMinutes) * time.Minute)
	clusters, err := e.Store.ConsolidationClusters(ctx, stmGroupID, cutoff, opts.MinEpisodes, opts.MaxEntities)
	if err != nil {
		return fmt.Errorf("failed to list consolidation clusters: %w", err)
	}

	for _, cluster := range clusters {
		if opts.DryRun {
			report.EntitiesRefreshed++
			report.EpisodesConsolidated += len(cluster.EpisodeUUIDs)
			report.EntitiesProcessed = append(report.EntitiesProcessed, cluster.Entity.Name)
			continue
		}

		stmSummary, tokens, err := e.synthesizeCluster(ctx, cluster)
		if err != nil {
			log.Printf("sleep: skipping tiered consolidation of %q: %v", cluster.Entity.Name, err)
			continue
		}
		report.TokensUsed += tokens

		counterpart, err := e.Store.FetchEntityByName(ctx, cluster.Entity.Name, ltmGroupID)
		if err != nil {
			return fmt.Errorf("failed to look up LTM counterpart of %q: %w", cluster.Entity.Name, err)
		}

		if counterpart != nil {
			tokens, err = e.mergeIntoCounterpart(ctx, counterpart, stmSummary, opts)
			if err != nil {
				log.Printf("sleep: skipping tiered merge of %q: %v", cluster.Entity.Name, err)
				continue
			}
			report.TokensUsed += tokens
		} else {
			counterpart, err = e.createCounterpart(ctx, cluster.Entity, stmSummary, ltmGroupID)
			if err != nil {
				log.Printf("sleep: skipping tiered consolidation of %q: %v", cluster.Entity.Name, err)
				continue
			}
		}

		if err := e.migrateRelations(ctx, cluster.Entity, counterpart, ltmGroupID); err != nil {
			return fmt.Errorf("failed to migrate relations of %q: %w", cluster.Entity.Name, err)
		}

		if err := e.Store.MarkEpisodesConsolidated(ctx, cluster.EpisodeUUIDs, e.Now()); err != nil {
			return fmt.Errorf("failed to mark episodes for %q: %w", cluster.Entity.Name, err)
		}

		report.EntitiesRefreshed++
		report.EpisodesConsolidated += len(cluster.EpisodeUUIDs)
		report.EntitiesProcessed = append(report.EntitiesProcessed, cluster.Entity.Name)
	}
	return nil
}

// synthesizeCluster runs the consolidation prompt over one entity's episode
// texts and returns the rewritten summary.
func (e *Engine) synthesizeCluster(ctx context.Context, cluster driver.ConsolidationCluster) (string, int, error) {
	var observations strings.Builder
	for _, text := range cluster.EpisodeTexts {
		observations.WriteString("- ")
		observations.WriteString(text)
		observations.WriteString("\n")
	}

	prompt := fmt.Sprintf(e.Prompts.Consolidation,
		cluster.Entity.Name, cluster.Entity.EntityType,
		cluster.Entity.Summary, observations.String())
	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", 0, fmt.Errorf("consolidation call: %w", err)
	}
	parsed, err := common.ParseJSON[model.ConsolidatedSummary](response)
	if err != nil {
		return "", 0, fmt.Errorf("consolidation response: %w", err)
	}
	if parsed.Summary == "" {
		return "", 0, fmt.Errorf("consolidation response: empty summary")
	}
	return parsed.Summary, estimateTokens(prompt, response), nil
}

// mergeIntoCounterpart folds the short-term synthesis into the LTM entity's
// summary, grounded on a capped sample of its active LTM relations.
func (e *Engine) mergeIntoCounterpart(ctx context.Context, counterpart *model.EntityNode, stmSummary string, opts model.SleepOptions) (int, error) {
	outgoing, err := e.Store.ActiveEdges(ctx, counterpart.UUID, model.DirectionOutgoing, opts.MaxNeighborhood)
	if err != nil {
		return 0, err
	}
	incoming, err := e.Store.ActiveEdges(ctx, counterpart.UUID, model.DirectionIncoming, opts.MaxIncoming)
	if err != nil {
		return 0, err
	}

	var facts strings.Builder
	for _, ep := range append(outgoing, incoming...) {
		fmt.Fprintf(&facts, "- %s %s %s\n", ep.SourceName, ep.Edge.Name, ep.TargetName)
	}
	if facts.Len() == 0 {
		facts.WriteString("(none)\n")
	}

	prompt := fmt.Sprintf(e.Prompts.TieredMerge,
		counterpart.Name, counterpart.Summary, stmSummary, facts.String())
	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("tiered merge call: %w", err)
	}
	parsed, err := common.ParseJSON[model.ConsolidatedSummary](response)
	if err != nil {
		return 0, fmt.Errorf("tiered merge response: %w", err)
	}
	if parsed.Summary == "" {
		return 0, fmt.Errorf("tiered merge response: empty summary")
	}

	embedding, err := e.Embedder.Embed(ctx, parsed.Summary)
	if err != nil {
		return 0, fmt.Errorf("embed merged summary: %w", err)
	}
	if err := e.Store.UpdateEntitySummary(ctx, counterpart.UUID, parsed.Summary, embedding, e.Now()); err != nil {
		return 0, err
	}
	counterpart.Summary = parsed.Summary
	return estimateTokens(prompt, response), nil
}

// createCounterpart promotes an STM entity into LTM with the synthesized
// summary. The LTM node gets its own uuid.
func (e *Engine) createCounterpart(ctx context.Context, stm *model.EntityNode, summary, ltmGroupID string) (*model.EntityNode, error) {
	embedding, err := e.Embedder.Embed(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("embed promoted summary: %w", err)
	}
	now := e.Now()
	counterpart := &model.EntityNode{
		UUID:             e.UUIDGenerator(),
		GroupID:          ltmGroupID,
		Name:             stm.Name,
		EntityType:       stm.EntityType,
		Summary:          summary,
		SummaryEmbedding: embedding,
		CreatedAt:        now,
		ConsolidatedAt:   &now,
	}
	if err := e.Store.UpsertEntity(ctx, counterpart); err != nil {
		return nil, err
	}
	return counterpart, nil
}

// migrateRelations copies the STM entity's active relations into LTM. The
// derived uuid (stm uuid + ":ltm") plus the endpoint+name merge keep repeated
// cycles idempotent: re-migration confirms instead of duplicating. A relation
// whose peer has no LTM counterpart yet is deferred, not dropped.
func (e *Engine) migrateRelations(ctx context.Context, stm, counterpart *model.EntityNode, ltmGroupID string) error {
	for _, direction := range []string{model.DirectionOutgoing, model.DirectionIncoming} {
		edges, err := e.Store.ActiveEdges(ctx, stm.UUID, direction, migratedEdgeLimit)
		if err != nil {
			return err
		}
		for _, ep := range edges {
			peerName := ep.TargetName
			if direction == model.DirectionIncoming {
				peerName = ep.SourceName
			}
			peer, err := e.Store.FetchEntityByName(ctx, peerName, ltmGroupID)
			if err != nil {
				return err
			}
			if peer == nil {
				continue
			}

			migrated := &model.EntityEdge{
				UUID:       ep.Edge.UUID + ":ltm",
				GroupID:    ltmGroupID,
				SourceUUID: counterpart.UUID,
				TargetUUID: peer.UUID,
				Name:       ep.Edge.Name,
				FactIDs:    ep.Edge.FactIDs,
				Episodes:   ep.Edge.Episodes,
				ValidAt:    ep.Edge.ValidAt,
				InvalidAt:  ep.Edge.InvalidAt,
				ExpiredAt:  ep.Edge.ExpiredAt,
				DisputedBy: ep.Edge.DisputedBy,
				CreatedAt:  e.Now(),
			}
			if direction == model.DirectionIncoming {
				migrated.SourceUUID = peer.UUID
				migrated.TargetUUID = counterpart.UUID
			}
			if err := e.Store.MergeEntityEdgeByTriple(ctx, migrated); err != nil {
				return err
			}
		}
	}
	return nil
}
