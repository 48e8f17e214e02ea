package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentmem/somnia/internal/config"
	"github.com/agentmem/somnia/internal/core/extraction"
	"github.com/agentmem/somnia/internal/core/model"
	"github.com/agentmem/somnia/internal/core/resolve"
	"github.com/agentmem/somnia/internal/core/sleep"
	"github.com/agentmem/somnia/internal/driver"
	"github.com/agentmem/somnia/internal/llm"
)

const DefaultGroupID = "default"

// Engine is the facade the host application consumes: ingestion, retrieval,
// node/edge access and the sleep cycle.
type Engine struct {
	Store     *driver.Store
	LLM       llm.LLMClient
	Embedder  llm.EmbedderClient
	Extractor *extraction.Extractor
	Resolver  *resolve.Resolver
	Sleeper   *sleep.Engine
	Scheduler *sleep.Scheduler
	Config    *config.Config

	// Injectable for deterministic tests.
	UUIDGenerator func() string
	Now           func() time.Time
}

func NewEngine(d driver.GraphDriver, llmClient llm.LLMClient, embedder llm.EmbedderClient, cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	store := driver.NewStore(d)

	e := &Engine{
		Store:         store,
		LLM:           llmClient,
		Embedder:      embedder,
		Config:        cfg,
		UUIDGenerator: uuid.NewString,
		Now:           func() time.Time { return time.Now().UTC() },
	}
	e.Extractor = extraction.NewExtractor(llmClient, cfg.Prompts.Extraction)
	e.Resolver = resolve.NewResolver(store, llmClient, embedder, cfg.Prompts.SummaryMerge, func() string { return e.UUIDGenerator() })
	e.Sleeper = sleep.NewEngine(store, llmClient, embedder, cfg.Prompts)
	e.Sleeper.UUIDGenerator = func() string { return e.UUIDGenerator() }
	e.Sleeper.Now = func() time.Time { return e.Now() }
	e.Scheduler = sleep.NewScheduler(e.Sleeper)
	return e
}

func (e *Engine) BuildIndices(ctx context.Context) error {
	return e.Store.Driver.BuildIndices(ctx)
}

func (e *Engine) GetNode(ctx context.Context, nodeUUID string) (model.Node, error) {
	return e.Store.GetNode(ctx, nodeUUID)
}

func (e *Engine) GetEdge(ctx context.Context, edgeUUID string) (*model.EntityEdge, error) {
	return e.Store.GetEdge(ctx, edgeUUID)
}

func (e *Engine) DeleteNode(ctx context.Context, nodeUUID string) error {
	return e.Store.DetachDelete(ctx, nodeUUID)
}

func (e *Engine) DeleteEdge(ctx context.Context, edgeUUID string) error {
	return e.Store.DeleteEdge(ctx, edgeUUID)
}

func (e *Engine) GetRecentEpisodes(ctx context.Context, groupID string, limit int) ([]*model.EpisodicNode, error) {
	if groupID == "" {
		groupID = DefaultGroupID
	}
	if limit <= 0 {
		limit = 20
	}
	return e.Store.GetRecentEpisodes(ctx, groupID, limit)
}

func (e *Engine) Sleep(ctx context.Context, target model.SleepTarget, opts model.SleepOptions) (*model.SleepReport, error) {
	return e.Sleeper.Sleep(ctx, target, opts)
}

func (e *Engine) StartAutoSleep(cfg sleep.AutoSleepConfig) error {
	return e.Scheduler.Start(cfg)
}

func (e *Engine) StopAutoSleep() {
	e.Scheduler.Stop()
}
