package config

// Default prompt templates. All are fmt templates with positional %s verbs;
// the argument order is documented per template and mirrored by the callers.

// DefaultExtractionPrompt args: allowed entity types, known-entity context,
// episode content.
const DefaultExtractionPrompt = `You extract entities and typed relations from text for a knowledge graph.

Allowed entity types: %s

Known entities already in the graph (reuse these EXACT names when the text refers to them):
%s

TEXT:
%s

Instructions:
- Extract every distinct real-world entity mentioned in the text.
- For each entity give a one-sentence summary grounded in the text only.
- Extract typed relations between extracted entities. Relation names are
  UPPER_SNAKE_CASE verbs, e.g. WORKS_AT, KNOWS, LOCATED_IN.
- Always extract attribution and dedication relations when present:
  NAMED_AFTER, FOUNDED_BY, DESCRIBED_BY, DISCOVERED_BY, DEDICATED_TO.
  These may never be dropped.
- Set "is_negated" true when the text denies the relation ("does not work at").
- Set "temporal_validity" to "historical" when the relation held in the past
  but no longer does ("used to work at"), otherwise "current".
- Confidence is your certainty in [0,1].

Return ONLY a JSON object:
{
  "entities": [
    {"name": "...", "entity_type": "...", "summary": "...", "confidence": 0.9}
  ],
  "relations": [
    {"source_name": "...", "target_name": "...", "relation_name": "WORKS_AT",
     "confidence": 0.9, "is_negated": false, "temporal_validity": "current"}
  ]
}`

// DefaultSummaryMergePrompt args: entity name, existing summary, new context.
const DefaultSummaryMergePrompt = `Merge what is newly learned about the entity "%s" into its existing summary.

Existing summary:
%s

New information:
%s

Keep it to 2-4 sentences. Preserve concrete facts from both; do not speculate.

Return ONLY a JSON object: {"merged_summary": "..."}`

// DefaultConsolidationPrompt args: entity name, entity type, current summary,
// episode texts.
const DefaultConsolidationPrompt = `Rewrite the summary of the entity below using the accumulated observations.

Entity: %s (%s)
Current summary:
%s

Observations:
%s

Rules: 2-4 sentences; preserve attribution facts (who founded, named,
discovered or described what); no speculation.

Return ONLY a JSON object: {"summary": "...", "confidence": 0.9}`

// DefaultTieredMergePrompt args: entity name, long-term summary, short-term
// summary, neighbourhood facts.
const DefaultTieredMergePrompt = `Merge short-term knowledge about "%s" into its long-term summary.

Long-term summary:
%s

Short-term synthesis:
%s

Related facts from the long-term graph:
%s

Rules: 2-4 sentences; keep facts consistent with the related facts above;
preserve attribution facts; no speculation.

Return ONLY a JSON object: {"summary": "...", "confidence": 0.9}`

// DefaultCommunityPrompt args: member summaries.
const DefaultCommunityPrompt = `The entities below form one cluster of a knowledge graph.

Members:
%s

Name the cluster, summarise what binds it in 2-4 sentences, tag it with
lowercase kebab-case domain hints, and score its importance in [0,1].

Return ONLY a JSON object:
{"name": "...", "summary": "...", "domain_hints": ["..."], "importance_score": 0.5}`
