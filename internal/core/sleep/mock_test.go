package sleep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agentmem/somnia/internal/config"
	"github.com/agentmem/somnia/internal/driver"
)

// MockDriver scripts query results by substring match on the Cypher text,
// first registered match wins.
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

func (m *MockDriver) ParamsFor(fragment string) map[string]interface{} {
	for i, q := range m.Queries {
		if strings.Contains(q, fragment) {
			return m.Params[i]
		}
	}
	return nil
}

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
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if len(m.ResponseQueue) == 0 {
		return "{}", nil
	}
	resp := m.ResponseQueue[0]
	m.ResponseQueue = m.ResponseQueue[1:]
	return resp, nil
}

type MockEmbedder struct {
	Vector []float32
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Vector == nil {
		return []float32{1, 0, 0}, nil
	}
	return m.Vector, nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = m.Embed(ctx, texts[i])
	}
	return out, nil
}

func newTestSleepEngine(d *MockDriver, llm *MockLLM) *Engine {
	e := NewEngine(driver.NewStore(d), llm, &MockEmbedder{}, config.Default().Prompts)
	counter := 0
	e.UUIDGenerator = func() string {
		counter++
		return fmt.Sprintf("sleep-uuid-%d", counter)
	}
	e.Now = func() time.Time {
		return time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	}
	return e
}

// record builders

func entityNodeValue(uuid, name string, embedding []float64) neo4j.Node {
	props := map[string]interface{}{
		"uuid":        uuid,
		"name":        name,
		"group_id":    "default",
		"entity_type": "Person",
		"summary":     name + " summary",
		"created_at":  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if embedding != nil {
		props["embedding"] = embedding
	}
	return neo4j.Node{Labels: []string{"Entity"}, Props: props}
}

func entityRecord(uuid, name string) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"n", "labels"},
		Values: []interface{}{entityNodeValue(uuid, name, nil), []interface{}{"Entity"}},
	}
}

func clusterRecord(uuid, name string, episodeUUIDs, episodeTexts []interface{}) *neo4j.Record {
	return &neo4j.Record{
		Keys: []string{"n", "labels", "episode_uuids", "episode_texts", "episode_count"},
		Values: []interface{}{
			entityNodeValue(uuid, name, nil),
			[]interface{}{"Entity"},
			episodeUUIDs,
			episodeTexts,
			int64(len(episodeUUIDs)),
		},
	}
}

func candidatePairRecord(aUUID, aName string, aEmb []interface{}, aDegree int64, bUUID, bName string, bEmb []interface{}, bDegree int64) *neo4j.Record {
	return &neo4j.Record{
		Keys: []string{"a_uuid", "a_name", "a_embedding", "a_degree", "b_uuid", "b_name", "b_embedding", "b_degree"},
		Values: []interface{}{
			aUUID, aName, aEmb, aDegree,
			bUUID, bName, bEmb, bDegree,
		},
	}
}

func edgeRecordWithPeers(uuid, name, sourceUUID, targetUUID, sourceName, targetName string) *neo4j.Record {
	props := map[string]interface{}{
		"uuid":       uuid,
		"name":       name,
		"group_id":   "default",
		"episodes":   []interface{}{"ep-1"},
		"valid_at":   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"created_at": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	return &neo4j.Record{
		Keys: []string{"e", "source_uuid", "target_uuid", "source_name", "target_name"},
		Values: []interface{}{
			neo4j.Relationship{Type: "RELATES_TO", Props: props},
			sourceUUID, targetUUID, sourceName, targetName,
		},
	}
}

func groupEdgeRecord(uuid, sourceUUID, targetUUID string) *neo4j.Record {
	props := map[string]interface{}{
		"uuid":       uuid,
		"name":       "RELATES_TO",
		"group_id":   "default",
		"episodes":   []interface{}{"ep-1"},
		"valid_at":   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"created_at": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	return &neo4j.Record{
		Keys: []string{"e", "source_uuid", "target_uuid"},
		Values: []interface{}{
			neo4j.Relationship{Type: "RELATES_TO", Props: props},
			sourceUUID, targetUUID,
		},
	}
}

func communityRecord(uuid, name string, memberIDs []interface{}, lastRebuildCount int64) *neo4j.Record {
	props := map[string]interface{}{
		"uuid":                         uuid,
		"name":                         name,
		"group_id":                     "default",
		"summary":                      name + " summary",
		"member_entity_ids":            memberIDs,
		"member_count":                 int64(len(memberIDs)),
		"entity_count_at_last_rebuild": lastRebuildCount,
		"last_full_rebuild":            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"created_at":                   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	return &neo4j.Record{
		Keys:   []string{"n", "labels"},
		Values: []interface{}{neo4j.Node{Labels: []string{"Community"}, Props: props}, []interface{}{"Community"}},
	}
}

func prunedCountRecord(n int64) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"pruned"}, Values: []interface{}{n}}
}
