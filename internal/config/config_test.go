package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[llm]
provider = "openai"
model = "gpt-4o-mini"
embedding_model = "text-embedding-3-small"

[memgraph]
uri = "bolt://graph:7687"

[sleep]
hour = 4
minute = 30

[prompts]
extraction = "custom %s %s %s"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "bolt://graph:7687", cfg.Memgraph.URI)
	assert.Equal(t, 4, cfg.Sleep.Hour)
	assert.Equal(t, 30, cfg.Sleep.Minute)

	// Overridden prompt sticks, the rest fall back to defaults.
	assert.Equal(t, "custom %s %s %s", cfg.Prompts.Extraction)
	assert.Equal(t, DefaultSummaryMergePrompt, cfg.Prompts.SummaryMerge)
	assert.Equal(t, DefaultCommunityPrompt, cfg.Prompts.Community)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "bolt://localhost:7687", cfg.Memgraph.URI)
	assert.Equal(t, 60, cfg.Sleep.CooldownMinutes)
	assert.NotEmpty(t, cfg.Prompts.Extraction)
	assert.NotEmpty(t, cfg.Prompts.Consolidation)
	assert.NotEmpty(t, cfg.Prompts.TieredMerge)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("MEMGRAPH_URI", "bolt://env:7687")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "bolt://env:7687", cfg.Memgraph.URI)
}
