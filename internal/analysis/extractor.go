package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// StepExtractor parses structured reasoning steps out of free-form model
// responses. The model is instructed to mark each step with "[STEP n]"; the
// extractor segments the response at those markers.
//
// Responses are messy in practice: markers can be missing, repeated, or out
// of order. The extractor takes what it can find — a step's content runs from
// its marker to the nearest following marker of any step, and when the same
// marker appears twice the last occurrence wins.
type StepExtractor struct{}

// NewStepExtractor creates a step extractor.
func NewStepExtractor() *StepExtractor {
	return &StepExtractor{}
}

// allSteps in marker order.
var allSteps = []AnalysisStep{
	StepClassification,
	StepCodeAnalysis,
	StepExperienceAnalysis,
	StepInfoCompleteness,
	StepFinalSolution,
}

// Extract parses the response into step results, one per marker found.
// Results are ordered by step number. A response with no markers yields an
// empty slice.
func (e *StepExtractor) Extract(response string) []StepResult {
	// Locate the last occurrence of each step marker, then collect every
	// occurrence of every marker as a segment boundary.
	lastStart := make(map[AnalysisStep]int)
	var boundaries []int
	for _, step := range allSteps {
		marker := fmt.Sprintf("[STEP %d]", step)
		from := 0
		for {
			idx := strings.Index(response[from:], marker)
			if idx < 0 {
				break
			}
			abs := from + idx
			boundaries = append(boundaries, abs)
			lastStart[step] = abs + len(marker)
			from = abs + len(marker)
		}
	}
	if len(lastStart) == 0 {
		return nil
	}
	sort.Ints(boundaries)

	var results []StepResult
	for _, step := range allSteps {
		start, ok := lastStart[step]
		if !ok {
			continue
		}

		// Content runs to the nearest following marker, or end of response.
		end := len(response)
		for _, b := range boundaries {
			if b >= start {
				end = b
				break
			}
		}

		content := strings.TrimSpace(response[start:end])
		result := StepResult{
			Step:       step,
			Name:       step.String(),
			Content:    content,
			Confidence: stepConfidence(content),
		}
		// Only the completeness step decides whether the run needs more
		// evidence; the phrase appearing elsewhere must not prolong the run.
		if step == StepInfoCompleteness {
			result.NeedsMoreInfo = detectNeedsMoreInfo(content)
		}
		results = append(results, result)
	}
	return results
}

// stepConfidence estimates confidence from content length. Short answers mean
// the model had little to say about the step.
func stepConfidence(content string) float64 {
	switch {
	case len(content) < 50:
		return 0.3
	case len(content) < 200:
		return 0.6
	default:
		return 0.8
	}
}

// detectNeedsMoreInfo reports whether the completeness step content asks for
// additional evidence. Matches the phrasing the round prompt instructs the
// model to use, plus the looser variant models produce anyway.
func detectNeedsMoreInfo(content string) bool {
	lower := strings.ToLower(content)
	if strings.Contains(lower, "files needed: yes") {
		return true
	}
	return strings.Contains(lower, "more files needed") && strings.Contains(lower, "yes")
}
