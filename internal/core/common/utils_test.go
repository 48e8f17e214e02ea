package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Summary string `json:"summary"`
}

func TestParseJSON(t *testing.T) {
	res, err := ParseJSON[sample](`Here you go:
` + "```json\n" + `{"summary": "Alice works at ACME."}` + "\n```")
	assert.NoError(t, err)
	assert.Equal(t, "Alice works at ACME.", res.Summary)
}

func TestParseJSON_NoObject(t *testing.T) {
	_, err := ParseJSON[sample]("sorry, I cannot help with that")
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0, 2}, []float32{1, 0, 2}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestKebabCase(t *testing.T) {
	assert.Equal(t, "machine-learning", KebabCase("Machine Learning"))
	assert.Equal(t, "knowledge-graphs", KebabCase("knowledge_graphs"))
}

func TestDedup(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Dedup([]string{"a", "b", "a"}))
}
