package analysis

import (
	"fmt"
	"strings"
	"text/template"
)

// Package-level prompt templates for the diagnosis loop. The round prompt
// enforces the five-step structured output the extractor parses.

const systemPrompt = `You are a performance diagnosis expert for distributed batch data processing jobs.
You analyze job scripts, execution statistics, plans and logs to find why a job ran slowly or failed.

The two most common problems are:
- DATA_SKEW: one partition or vertex processes far more data than its peers
- EXCESSIVE_SHUFFLE: too much data moves between stages due to repeated repartitioning

Everything else is classified as OTHER.

Ground every claim in the evidence provided. Quote vertex names, stage names, row counts
and operators from the artifacts. If the evidence is insufficient, say so and name the
specific files that would help.`

const roundPromptText = `## Diagnosis round {{.Round}} of {{.MaxRounds}}

**Question:** {{.Question}}
{{if .ProblemType}}
**Working classification so far:** {{.ProblemType}}
{{end}}{{if .KeyFindings}}
**Key findings from earlier rounds:**
{{range .KeyFindings}}- {{.}}
{{end}}{{end}}
**Reference experience:**
{{.Experience}}

**Evidence gathered so far:**
{{.Accumulated}}

**Your task:** work through the following steps, marking each section with its exact tag:

[STEP 1] CLASSIFICATION — classify the problem as DATA_SKEW, EXCESSIVE_SHUFFLE or OTHER, with the deciding evidence.
[STEP 2] CODE_ANALYSIS — point at the specific script constructs (joins, keys, aggregations) responsible.
[STEP 3] EXPERIENCE_ANALYSIS — match the evidence against the known patterns above and explain which pattern applies.
[STEP 4] INFO_COMPLETENESS — state on its own line whether you need additional evidence: MORE FILES NEEDED: yes (then name the files) or MORE FILES NEEDED: no.
[STEP 5] FINAL_SOLUTION — give the concrete fix, or state what is still unknown.`

// roundTemplate is parsed once at init; the template text is a constant so a
// parse failure is a programming error.
var roundTemplate = template.Must(template.New("round").Parse(roundPromptText))

// roundPromptData feeds the round template.
type roundPromptData struct {
	Round       int
	MaxRounds   int
	Question    string
	ProblemType string
	KeyFindings []string
	Experience  string
	Accumulated string
}

// SystemPrompt returns the system prompt for diagnosis conversations.
func SystemPrompt() string {
	return systemPrompt
}

// RenderRoundPrompt builds the prompt for one reasoning round from the
// accumulated context. The evidence section is the run's accumulated text:
// artifact contents, unavailability markers and prior rounds' responses in
// the order they arrived.
func RenderRoundPrompt(state *ContextState, round, maxRounds int) (string, error) {
	data := roundPromptData{
		Round:       round,
		MaxRounds:   maxRounds,
		Question:    state.Question,
		KeyFindings: state.KeyFindings,
		Experience:  ExperienceNotes(state.ProblemType),
		Accumulated: state.AccumulatedText,
	}
	// Only show a working classification once one exists.
	if state.ProblemType != ProblemOther || len(state.Steps) > 0 {
		data.ProblemType = string(state.ProblemType)
	}

	var b strings.Builder
	if err := roundTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render round prompt: %w", err)
	}
	return b.String(), nil
}
