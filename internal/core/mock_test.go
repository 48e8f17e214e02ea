package core

import (
	"context"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// MockDriver scripts query results by substring match on the Cypher text.
// Stubs are checked in registration order; unmatched queries return an empty
// result.
type MockDriver struct {
	Queries []string
	Params  []map[string]interface{}

	stubs []driverStub
}

type driverStub struct {
	fragment string
	result   neo4j.EagerResult
	err      error
}

func (m *MockDriver) Stub(fragment string, records ...*neo4j.Record) {
	m.stubs = append(m.stubs, driverStub{
		fragment: fragment,
		result:   neo4j.EagerResult{Records: records},
	})
}

func (m *MockDriver) StubErr(fragment string, err error) {
	m.stubs = append(m.stubs, driverStub{fragment: fragment, err: err})
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Queries = append(m.Queries, query)
	m.Params = append(m.Params, params)
	for _, s := range m.stubs {
		if strings.Contains(query, s.fragment) {
			return s.result, s.err
		}
	}
	return neo4j.EagerResult{}, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *MockDriver) Close(ctx context.Context) error { return nil }

// ParamsFor returns the params of the first executed query containing the
// fragment.
func (m *MockDriver) ParamsFor(fragment string) map[string]interface{} {
	for i, q := range m.Queries {
		if strings.Contains(q, fragment) {
			return m.Params[i]
		}
	}
	return nil
}

// CountQueries reports how many executed queries contain the fragment.
func (m *MockDriver) CountQueries(fragment string) int {
	n := 0
	for _, q := range m.Queries {
		if strings.Contains(q, fragment) {
			n++
		}
	}
	return n
}

type MockLLM struct {
	Prompts       []string
	ResponseQueue []string
	Err           error
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.ResponseQueue) == 0 {
		return "{}", nil
	}
	resp := m.ResponseQueue[0]
	m.ResponseQueue = m.ResponseQueue[1:]
	return resp, nil
}

type MockEmbedder struct {
	Vector []float32
	Err    error
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Vector == nil {
		return []float32{1, 0, 0}, nil
	}
	return m.Vector, nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// record builders

func entityRecord(uuid, name, groupID string, embedding []float64) *neo4j.Record {
	props := map[string]interface{}{
		"uuid":        uuid,
		"name":        name,
		"group_id":    groupID,
		"entity_type": "Person",
		"summary":     name + " summary",
		"created_at":  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if embedding != nil {
		props["embedding"] = embedding
	}
	return &neo4j.Record{
		Keys: []string{"n", "labels"},
		Values: []interface{}{
			neo4j.Node{Labels: []string{"Entity"}, Props: props},
			[]interface{}{"Entity"},
		},
	}
}

func scoredEntityRecord(uuid, name, groupID string, similarity float64) *neo4j.Record {
	props := map[string]interface{}{
		"uuid":        uuid,
		"name":        name,
		"group_id":    groupID,
		"entity_type": "Person",
		"summary":     name + " summary",
		"embedding":   []float64{1, 0, 0},
		"created_at":  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	return &neo4j.Record{
		Keys: []string{"n", "labels", "similarity"},
		Values: []interface{}{
			neo4j.Node{Labels: []string{"Entity"}, Props: props},
			[]interface{}{"Entity"},
			similarity,
		},
	}
}

func scoredEpisodeRecord(uuid, content string, validAt time.Time, retroactiveDays int, similarity float64) *neo4j.Record {
	props := map[string]interface{}{
		"uuid":             uuid,
		"name":             content,
		"group_id":         "default",
		"episode_type":     "message",
		"content":          content,
		"embedding":        []float64{1, 0, 0},
		"valid_at":         validAt,
		"created_at":       validAt,
		"retroactive_days": int64(retroactiveDays),
	}
	return &neo4j.Record{
		Keys: []string{"n", "labels", "similarity"},
		Values: []interface{}{
			neo4j.Node{Labels: []string{"Episodic"}, Props: props},
			[]interface{}{"Episodic"},
			similarity,
		},
	}
}

func edgeRecord(uuid, name, sourceUUID, targetUUID string, episodes []interface{}) *neo4j.Record {
	props := map[string]interface{}{
		"uuid":       uuid,
		"name":       name,
		"group_id":   "default",
		"episodes":   episodes,
		"valid_at":   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"created_at": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	return &neo4j.Record{
		Keys: []string{"e", "source_uuid", "target_uuid"},
		Values: []interface{}{
			neo4j.Relationship{Type: "RELATES_TO", Props: props},
			sourceUUID,
			targetUUID,
		},
	}
}
