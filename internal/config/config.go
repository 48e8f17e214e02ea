package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// SleepConfig schedules the nightly maintenance cycle. AutoGroupID (or the
// STM/LTM pair) selects the partition; when neither is set no schedule is
// started and sleep runs only on demand.
type SleepConfig struct {
	Hour            int    `toml:"hour"`
	Minute          int    `toml:"minute"`
	CooldownMinutes int    `toml:"cooldown_minutes"`
	AutoGroupID     string `toml:"auto_group_id"`
	AutoSTMGroupID  string `toml:"auto_stm_group_id"`
	AutoLTMGroupID  string `toml:"auto_ltm_group_id"`
}

// Prompts are fmt templates; empty values fall back to the defaults in
// prompts.go.
type Prompts struct {
	Extraction    string `toml:"extraction"`     // enum list, known entities, content
	SummaryMerge  string `toml:"summary_merge"`  // entity name, existing summary, new context
	Consolidation string `toml:"consolidation"`  // name, type, current summary, episode texts
	TieredMerge   string `toml:"tiered_merge"`   // name, ltm summary, stm summary, neighbourhood
	Community     string `toml:"community"`      // member summaries
}

type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Sleep    SleepConfig    `toml:"sleep"`
	Prompts  Prompts        `toml:"prompts"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.FillDefaults()
	return &cfg, nil
}

// Default returns a config usable without any file on disk.
func Default() *Config {
	cfg := &Config{}
	cfg.FillDefaults()
	return cfg
}

func (c *Config) FillDefaults() {
	if c.Memgraph.URI == "" {
		c.Memgraph.URI = "bolt://localhost:7687"
	}
	if c.Sleep.CooldownMinutes == 0 {
		c.Sleep.CooldownMinutes = 60
	}
	if c.Prompts.Extraction == "" {
		c.Prompts.Extraction = DefaultExtractionPrompt
	}
	if c.Prompts.SummaryMerge == "" {
		c.Prompts.SummaryMerge = DefaultSummaryMergePrompt
	}
	if c.Prompts.Consolidation == "" {
		c.Prompts.Consolidation = DefaultConsolidationPrompt
	}
	if c.Prompts.TieredMerge == "" {
		c.Prompts.TieredMerge = DefaultTieredMergePrompt
	}
	if c.Prompts.Community == "" {
		c.Prompts.Community = DefaultCommunityPrompt
	}
}

// ApplyEnv overrides file values with environment variables when present.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		c.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		c.Memgraph.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		c.Memgraph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		c.Memgraph.Password = v
	}
}
