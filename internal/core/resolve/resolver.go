package resolve

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/agentmem/somnia/internal/core/common"
	"github.com/agentmem/somnia/internal/core/model"
	"github.com/agentmem/somnia/internal/driver"
	"github.com/agentmem/somnia/internal/llm"
)

const (
	candidatePoolSize      = 50
	candidateLimit         = 20
	minCandidateSimilarity = 0.65
	semanticWeight         = 0.7
	recencyWeight          = 0.3
	recencyDecay           = 0.1 // per day
)

// Resolver maps extracted entity mentions to canonical Entity nodes.
type Resolver struct {
	Store         *driver.Store
	LLM           llm.LLMClient
	Embedder      llm.EmbedderClient
	MergePrompt   string
	UUIDGenerator func() string
}

func NewResolver(store *driver.Store, llmClient llm.LLMClient, embedder llm.EmbedderClient, mergePrompt string, uuidGen func() string) *Resolver {
	return &Resolver{
		Store:         store,
		LLM:           llmClient,
		Embedder:      embedder,
		MergePrompt:   mergePrompt,
		UUIDGenerator: uuidGen,
	}
}

// Candidates builds the known-entity context for extraction: the semantic
// pool re-ranked by 0.7·similarity + 0.3·recency, top 20. This is candidate
// generation only, never automatic merging.
func (r *Resolver) Candidates(ctx context.Context, groupID string, episodeEmbedding []float32, now time.Time) ([]*model.EntityNode, error) {
	scored, err := r.Store.EntityCandidates(ctx, groupID, episodeEmbedding, minCandidateSimilarity, candidatePoolSize)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		entity *model.EntityNode
		score  float64
	}
	var pool []ranked
	for _, sn := range scored {
		entity, ok := sn.Node.(*model.EntityNode)
		if !ok {
			continue
		}
		ageDays := now.Sub(entity.CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		recency := math.Exp(-recencyDecay * ageDays)
		pool = append(pool, ranked{
			entity: entity,
			score:  semanticWeight*sn.Similarity + recencyWeight*recency,
		})
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].score > pool[j].score })

	if len(pool) > candidateLimit {
		pool = pool[:candidateLimit]
	}
	out := make([]*model.EntityNode, len(pool))
	for i, p := range pool {
		out[i] = p.entity
	}
	return out, nil
}

// Resolve maps one extracted mention to a canonical entity: exact-name match
// wins and triggers an LLM summary merge; otherwise a new node is created.
// LLM or embedder failures propagate so the episode upsert aborts.
func (r *Resolver) Resolve(ctx context.Context, groupID string, extracted model.ExtractedEntity, now time.Time) (*model.EntityNode, error) {
	existing, err := r.Store.FetchEntityByName(ctx, extracted.Name, groupID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return r.merge(ctx, existing, extracted)
	}
	return r.create(ctx, groupID, extracted, now)
}

func (r *Resolver) merge(ctx context.Context, existing *model.EntityNode, extracted model.ExtractedEntity) (*model.EntityNode, error) {
	prompt := fmt.Sprintf(r.MergePrompt, existing.Name, existing.Summary, extracted.Summary)
	response, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("summary merge failed for %q: %w", existing.Name, err)
	}
	merged, err := common.ParseJSON[model.MergedSummary](response)
	if err != nil {
		return nil, fmt.Errorf("summary merge failed for %q: %w", existing.Name, err)
	}

	embedding, err := r.Embedder.Embed(ctx, merged.MergedSummary)
	if err != nil {
		return nil, fmt.Errorf("failed to embed merged summary for %q: %w", existing.Name, err)
	}

	existing.Summary = merged.MergedSummary
	existing.SummaryEmbedding = embedding
	if existing.EntityType == "" || existing.EntityType == "Unknown" {
		existing.EntityType = extracted.EntityType
	}

	if err := r.Store.UpsertEntity(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *Resolver) create(ctx context.Context, groupID string, extracted model.ExtractedEntity, now time.Time) (*model.EntityNode, error) {
	summary := extracted.Summary
	embedText := summary
	if embedText == "" {
		embedText = extracted.Name
	}
	embedding, err := r.Embedder.Embed(ctx, embedText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed summary for %q: %w", extracted.Name, err)
	}

	entityType := extracted.EntityType
	if !model.ValidEntityType(entityType) {
		entityType = "Other"
	}

	node := &model.EntityNode{
		UUID:             r.UUIDGenerator(),
		GroupID:          groupID,
		Name:             extracted.Name,
		EntityType:       entityType,
		Summary:          summary,
		SummaryEmbedding: embedding,
		CreatedAt:        now,
	}
	if err := r.Store.UpsertEntity(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}
