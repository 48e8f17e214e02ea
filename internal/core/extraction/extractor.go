package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentmem/somnia/internal/core/common"
	"github.com/agentmem/somnia/internal/core/model"
	"github.com/agentmem/somnia/internal/llm"
)

type Extractor struct {
	LLM    llm.LLMClient
	Prompt string
}

func NewExtractor(llmClient llm.LLMClient, prompt string) *Extractor {
	return &Extractor{
		LLM:    llmClient,
		Prompt: prompt,
	}
}

// Extract issues the single structured extraction call for an episode.
// knownEntities is the semantic candidate pool; the prompt instructs the
// model to reuse their exact canonical names.
func (e *Extractor) Extract(ctx context.Context, content string, knownEntities []*model.EntityNode) (*model.ExtractionResult, error) {
	var known strings.Builder
	for _, n := range knownEntities {
		if n.Summary != "" {
			fmt.Fprintf(&known, "- %s (%s): %s\n", n.Name, n.EntityType, n.Summary)
		} else {
			fmt.Fprintf(&known, "- %s (%s)\n", n.Name, n.EntityType)
		}
	}
	if known.Len() == 0 {
		known.WriteString("(none)\n")
	}

	prompt := fmt.Sprintf(e.Prompt, strings.Join(model.EntityTypes, ", "), known.String(), content)

	response, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	result, err := common.ParseJSON[model.ExtractionResult](response)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	return &result, nil
}
