package resolve

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/somnia/internal/config"
	"github.com/agentmem/somnia/internal/core/model"
	"github.com/agentmem/somnia/internal/driver"
)

type mockDriver struct {
	queries []string
	params  []map[string]interface{}

	stubs []struct {
		fragment string
		result   neo4j.EagerResult
	}
}

func (m *mockDriver) stub(fragment string, records ...*neo4j.Record) {
	m.stubs = append(m.stubs, struct {
		fragment string
		result   neo4j.EagerResult
	}{fragment, neo4j.EagerResult{Records: records}})
}

func (m *mockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.queries = append(m.queries, query)
	m.params = append(m.params, params)
	for _, s := range m.stubs {
		if strings.Contains(query, s.fragment) {
			return s.result, nil
		}
	}
	return neo4j.EagerResult{}, nil
}

func (m *mockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *mockDriver) Close(ctx context.Context) error { return nil }

func (m *mockDriver) paramsFor(fragment string) map[string]interface{} {
	for i, q := range m.queries {
		if strings.Contains(q, fragment) {
			return m.params[i]
		}
	}
	return nil
}

type stubLLM struct {
	prompt   string
	response string
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.response, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func scoredRecord(uuid, name string, createdAt time.Time, similarity float64) *neo4j.Record {
	return &neo4j.Record{
		Keys: []string{"n", "labels", "similarity"},
		Values: []interface{}{
			neo4j.Node{Labels: []string{"Entity"}, Props: map[string]interface{}{
				"uuid":        uuid,
				"name":        name,
				"group_id":    "default",
				"entity_type": "Person",
				"created_at":  createdAt,
			}},
			[]interface{}{"Entity"},
			similarity,
		},
	}
}

func newTestResolver(d *mockDriver, llm *stubLLM) *Resolver {
	return NewResolver(driver.NewStore(d), llm, stubEmbedder{}, config.DefaultSummaryMergePrompt,
		func() string { return "fixed-uuid" })
}

func TestCandidatesRerankByRecency(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	d := &mockDriver{}
	d.stub("similarity > $min_similarity",
		scoredRecord("ent-old", "Old Alice", now.AddDate(0, 0, -60), 0.9),
		scoredRecord("ent-new", "New Alice", now, 0.8))

	r := newTestResolver(d, &stubLLM{})
	candidates, err := r.Candidates(context.Background(), "default", []float32{1, 0, 0}, now)
	require.NoError(t, err)

	// 0.7*0.8 + 0.3*1.0 = 0.86 beats 0.7*0.9 + 0.3*e^-6 ≈ 0.63.
	require.Len(t, candidates, 2)
	assert.Equal(t, "ent-new", candidates[0].UUID)
	assert.Equal(t, "ent-old", candidates[1].UUID)
}

func TestResolveCreatesNewEntity(t *testing.T) {
	d := &mockDriver{}
	r := newTestResolver(d, &stubLLM{})
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	node, err := r.Resolve(context.Background(), "default", model.ExtractedEntity{
		Name:       "Alice",
		EntityType: "Person",
		Summary:    "An engineer.",
		Confidence: 0.9,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "fixed-uuid", node.UUID)
	assert.Equal(t, "Person", node.EntityType)
	assert.Equal(t, now, node.CreatedAt)

	saved := d.paramsFor("MERGE (n:Entity {uuid: $uuid})")
	require.NotNil(t, saved)
	assert.Equal(t, "Alice", saved["name"])
	assert.Equal(t, "An engineer.", saved["summary"])
}

func TestResolveNormalizesEntityType(t *testing.T) {
	d := &mockDriver{}
	r := newTestResolver(d, &stubLLM{})

	node, err := r.Resolve(context.Background(), "default", model.ExtractedEntity{
		Name:       "Zorg",
		EntityType: "Alien",
		Confidence: 0.9,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Other", node.EntityType)
}

func TestResolveMergesExistingEntity(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	d := &mockDriver{}
	d.stub("MATCH (n:Entity {name: $name, group_id: $group_id})",
		scoredRecord("ent-1", "Alice", now.AddDate(0, 0, -10), 0))

	llm := &stubLLM{response: `{"merged_summary": "Alice is a promoted engineer."}`}
	r := newTestResolver(d, llm)

	node, err := r.Resolve(context.Background(), "default", model.ExtractedEntity{
		Name:       "Alice",
		EntityType: "Person",
		Summary:    "Recently promoted.",
		Confidence: 0.9,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "ent-1", node.UUID, "must reuse the canonical node")
	assert.Equal(t, "Alice is a promoted engineer.", node.Summary)
	assert.Contains(t, llm.prompt, "Recently promoted.")

	saved := d.paramsFor("MERGE (n:Entity {uuid: $uuid})")
	require.NotNil(t, saved)
	assert.Equal(t, "ent-1", saved["uuid"])
	assert.Equal(t, "Alice is a promoted engineer.", saved["summary"])
}

func TestResolveMergeReplacesUnknownType(t *testing.T) {
	d := &mockDriver{}
	d.stub("MATCH (n:Entity {name: $name, group_id: $group_id})", &neo4j.Record{
		Keys: []string{"n", "labels"},
		Values: []interface{}{
			neo4j.Node{Labels: []string{"Entity"}, Props: map[string]interface{}{
				"uuid":        "ent-1",
				"name":        "Alice",
				"group_id":    "default",
				"entity_type": "Unknown",
			}},
			[]interface{}{"Entity"},
		},
	})

	llm := &stubLLM{response: `{"merged_summary": "Alice."}`}
	r := newTestResolver(d, llm)

	node, err := r.Resolve(context.Background(), "default", model.ExtractedEntity{
		Name:       "Alice",
		EntityType: "Person",
		Confidence: 0.9,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Person", node.EntityType)
}
