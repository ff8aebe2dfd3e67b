package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shimayu0701/copilot-navi/internal/models"
	"github.com/shimayu0701/copilot-navi/internal/scraper"
)

const (
	// maxDetailChars bounds the combined phase-2 excerpts in the prompt.
	maxDetailChars = 60000
	// maxCurrentCatalogChars bounds the current-catalog reference excerpt.
	maxCurrentCatalogChars = 10000
)

const analysisPromptHeader = `You are an expert on the AI models available in GitHub Copilot.

## Task
Analyze all of the information below and output the data for every model
currently available in GitHub Copilot as JSON.

## Important rules
1. Include ONLY models confirmed on the official GitHub page. Never include
   a model that does not appear there.
2. Do not include retired models.
3. Derive each model's details from the provider documentation and other
   sources, weighed together.
4. When information is uncertain, assign a conservative middle score (3.0).
`

const analysisPromptRubric = `
## Output format
Output JSON following this schema. Each array element is one model.

{
  "version": "ISO8601 timestamp",
  "last_updated": "ISO8601 timestamp",
  "models": [
    {
      "id": "model id in lowercase kebab-case (e.g. gpt-5.1, claude-sonnet-4)",
      "name": "display name (e.g. GPT-5.1, Claude Sonnet 4)",
      "provider": "OpenAI / Anthropic / Google / xAI / GitHub",
      "description": "concise description, at most 60 characters",
      "context_window": context window size in tokens (integer),
      "cost_tier": "one of free / low / medium / high / premium",
      "premium_multiplier": {
        "chat": "chat multiplier (numeric string or 'Not applicable')",
        "completions": "completions multiplier (numeric string or 'Not applicable')"
      },
      "release_status": "GA / Public preview",
      "performance": {
        "speed": 1.0-5.0,
        "reasoning": 1.0-5.0,
        "coding": 1.0-5.0,
        "context_length": 1.0-5.0,
        "cost_efficiency": 1.0-5.0,
        "instruction_following": 1.0-5.0,
        "creativity": 1.0-5.0,
        "long_output": 1.0-5.0
      },
      "strengths": ["strength 1", "strength 2", "strength 3"],
      "cautions": ["caution 1", "caution 2"],
      "best_for": ["best use case 1", "best use case 2", "best use case 3"],
      "available": true
    }
  ]
}

### Meaning of each performance axis:
- speed: response speed (faster models score higher)
- reasoning: reasoning and multi-step thinking ability
- coding: accuracy of code generation, understanding and debugging
- context_length: context window size (128K=2.0, 200K=3.0, 1M=4.0, 2M+=5.0)
- cost_efficiency: cost efficiency (multiplier 0=5.0, 0.25-0.33=4.0, 1=3.0, 3=2.0, 30=1.0)
- instruction_following: how well the model follows instructions
- creativity: creativity and ability to propose new ideas
- long_output: quality of long-form output

### cost_tier criteria:
- free: multiplier 0
- low: multiplier 0.25-0.33
- medium: multiplier 1
- high: multiplier 3
- premium: multiplier 30

### id naming rule:
- Convert the model name to lowercase kebab-case as-is
- e.g. "GPT-5.1" -> "gpt-5.1", "Claude Sonnet 4" -> "claude-sonnet-4"
- e.g. "Gemini 2.5 Pro" -> "gemini-2.5-pro"
- e.g. "Claude Opus 4.6 (fast mode)" -> "claude-opus-4.6-fast"
`

// buildAnalysisPrompt assembles the refresh-analysis prompt: the phase-1
// ground truth, the bounded phase-2 excerpts, and the current catalog for
// reference.
func buildAnalysisPrompt(scraped *scraper.Result, currentCatalog []byte) string {
	modelsJSON, _ := json.MarshalIndent(scraped.Primary.Models, "", "  ")
	multipliersJSON, _ := json.MarshalIndent(scraped.Primary.Multipliers, "", "  ")
	retiredJSON, _ := json.MarshalIndent(scraped.Primary.Retired, "", "  ")

	var detail strings.Builder
	if raw := scraped.Primary.RawText; raw != "" {
		detail.WriteString("### GitHub Copilot Supported Models (raw)\n")
		detail.WriteString(raw)
		detail.WriteString("\n")
	}
	for _, src := range scraped.Details {
		if src.Status != scraper.StatusSuccess || src.Content == "" {
			continue
		}
		fmt.Fprintf(&detail, "\n\n### %s (%s)\n", src.Name, src.URL)
		detail.WriteString(src.Content)
	}

	current := truncate(string(currentCatalog), maxCurrentCatalogChars)

	var b strings.Builder
	b.WriteString(analysisPromptHeader)
	b.WriteString("\n## Phase 1: models confirmed on the official GitHub page\n")
	b.Write(modelsJSON)
	b.WriteString("\n\n## Phase 1: premium request multipliers\n")
	b.Write(multipliersJSON)
	b.WriteString("\n\n## Phase 1: retired models (never include these)\n")
	b.Write(retiredJSON)
	b.WriteString("\n\n## Phase 2: details scraped from provider documentation\n")
	b.WriteString(truncate(detail.String(), maxDetailChars))
	b.WriteString("\n\n## Current system data (for reference)\n")
	b.WriteString(current)
	b.WriteString("\n")
	b.WriteString(analysisPromptRubric)
	return b.String()
}

// buildSummaryPrompt asks for a structured change summary between two
// catalog versions. The add/remove sets are computed locally so the model
// only has to describe them.
func buildSummaryPrompt(oldCatalog, newCatalog *models.ModelCatalog) string {
	oldIDs := catalogIDs(oldCatalog)
	newIDs := catalogIDs(newCatalog)
	added, removed := diffCatalogs(oldCatalog, newCatalog)

	return fmt.Sprintf(`Summarize the following catalog changes concisely. Reply as JSON.

Added models: %v
Removed models: %v
Model count before: %d
Model count after: %d

Before (id list):
%v

After (id list):
%v

Output format:
{
  "models_added": ["display names of added models"],
  "models_removed": ["display names of removed models"],
  "models_updated": ["models whose scores or details changed"],
  "key_changes": ["descriptions of the main changes (at most 5)"],
  "overall_summary": "description of the overall change"
}
`, added, removed, len(oldIDs), len(newIDs), oldIDs, newIDs)
}

func catalogIDs(catalog *models.ModelCatalog) []string {
	if catalog == nil {
		return nil
	}
	ids := make([]string, 0, len(catalog.Models))
	for _, m := range catalog.Models {
		ids = append(ids, m.ID)
	}
	return ids
}

func diffCatalogs(oldCatalog, newCatalog *models.ModelCatalog) (added, removed []string) {
	if newCatalog != nil {
		for _, m := range newCatalog.Models {
			if oldCatalog == nil || oldCatalog.FindModel(m.ID) == nil {
				added = append(added, m.ID)
			}
		}
	}
	if oldCatalog != nil {
		for _, m := range oldCatalog.Models {
			if newCatalog == nil || newCatalog.FindModel(m.ID) == nil {
				removed = append(removed, m.ID)
			}
		}
	}
	return added, removed
}

// truncate cuts s to at most limit bytes, backing up so the cut never
// splits a multi-byte rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
