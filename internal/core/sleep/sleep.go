package sleep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentmem/somnia/internal/config"
	"github.com/agentmem/somnia/internal/core/model"
	"github.com/agentmem/somnia/internal/driver"
	"github.com/agentmem/somnia/internal/llm"
)

// Engine runs the background maintenance cycle: Phase 1 consolidation,
// Phase 2 pruning, Phase 3 community detection. One run at a time per
// instance.
type Engine struct {
	Store    *driver.Store
	LLM      llm.LLMClient
	Embedder llm.EmbedderClient
	Prompts  config.Prompts

	UUIDGenerator func() string
	Now           func() time.Time

	mu sync.Mutex
}

func NewEngine(store *driver.Store, llmClient llm.LLMClient, embedder llm.EmbedderClient, prompts config.Prompts) *Engine {
	return &Engine{
		Store:         store,
		LLM:           llmClient,
		Embedder:      embedder,
		Prompts:       prompts,
		UUIDGenerator: uuid.NewString,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Sleep runs the enabled phases sequentially against the target. In tiered
// mode Phase 1 consolidates STM into LTM and Phases 2–3 run on LTM only.
func (e *Engine) Sleep(ctx context.Context, target model.SleepTarget, opts model.SleepOptions) (*model.SleepReport, error) {
	if target.Tiered() == (target.GroupID != "") {
		return nil, fmt.Errorf("sleep target requires either group_id or both stm_group_id and ltm_group_id")
	}
	opts = normalizeOptions(opts)

	e.mu.Lock()
	defer e.mu.Unlock()

	started := e.Now()
	report := &model.SleepReport{
		DryRun:    opts.DryRun,
		StartedAt: started,
	}

	maintained := target.GroupID // group for Phases 2 and 3
	if target.Tiered() {
		report.GroupID = target.STMGroupID
		report.LTMGroupID = target.LTMGroupID
		maintained = target.LTMGroupID
	} else {
		report.GroupID = target.GroupID
	}

	if opts.Consolidate {
		var err error
		if target.Tiered() {
			err = e.consolidateTiered(ctx, target.STMGroupID, target.LTMGroupID, opts, &report.Phase1)
		} else {
			err = e.consolidate(ctx, target.GroupID, opts, &report.Phase1)
		}
		if err != nil {
			return report, err
		}
	}

	if opts.Prune {
		if err := e.prune(ctx, maintained, opts, &report.Phase2); err != nil {
			return report, err
		}
	}

	if opts.Communities {
		if err := e.rebuildCommunities(ctx, maintained, opts, &report.Phase3); err != nil {
			return report, err
		}
	}

	report.CompletedAt = e.Now()
	report.DurationMS = report.CompletedAt.Sub(started).Milliseconds()
	return report, nil
}

func normalizeOptions(o model.SleepOptions) model.SleepOptions {
	d := model.DefaultSleepOptions()
	if o.CooldownMinutes < 0 {
		o.CooldownMinutes = 0
	}
	if o.MinEpisodes <= 0 {
		o.MinEpisodes = d.MinEpisodes
	}
	if o.MaxEntities <= 0 {
		o.MaxEntities = d.MaxEntities
	}
	if o.MaxNeighborhood <= 0 {
		o.MaxNeighborhood = d.MaxNeighborhood
	}
	if o.MaxIncoming <= 0 {
		o.MaxIncoming = d.MaxIncoming
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = d.SimilarityThreshold
	}
	if o.MinGraphSize <= 0 {
		o.MinGraphSize = d.MinGraphSize
	}
	if o.RebuildThreshold <= 0 {
		o.RebuildThreshold = d.RebuildThreshold
	}
	if o.MinCommunitySize <= 0 {
		o.MinCommunitySize = d.MinCommunitySize
	}
	return o
}

// estimateTokens is a rough chars/4 approximation for report accounting.
func estimateTokens(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += len(t)
	}
	return total / 4
}
