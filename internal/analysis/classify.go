package analysis

import "strings"

const fallbackSolution = "Unable to produce a concrete solution from the available evidence. " +
	"Review the job script and execution statistics manually, starting with the longest-running stage."

// ClassifyProblem determines the problem type from the reasoning steps.
// Only the LAST classification step counts, so later rounds with more
// evidence override earlier guesses. Skew takes precedence over shuffle when
// both are mentioned: skew usually causes the shuffle symptoms.
func ClassifyProblem(steps []StepResult) ProblemType {
	var classification string
	for _, s := range steps {
		if s.Step == StepClassification {
			classification = s.Content
		}
	}
	if classification == "" {
		return ProblemOther
	}

	lower := strings.ToLower(classification)
	if strings.Contains(lower, "skew") || strings.Contains(lower, "data_skew") {
		return ProblemDataSkew
	}
	if strings.Contains(lower, "shuffle") || strings.Contains(lower, "excessive_shuffle") {
		return ProblemExcessiveShuffle
	}
	return ProblemOther
}

// SynthesizeSolution builds the final solution text from the reasoning
// steps. The last final-solution step wins; without one, the experience and
// code analysis steps are stitched together as a partial answer; with
// neither, a fixed fallback is returned.
func SynthesizeSolution(steps []StepResult) string {
	var solution, experience, code string
	for _, s := range steps {
		switch s.Step {
		case StepFinalSolution:
			solution = s.Content
		case StepExperienceAnalysis:
			experience = s.Content
		case StepCodeAnalysis:
			code = s.Content
		}
	}

	if solution != "" {
		return solution
	}

	var parts []string
	if experience != "" {
		parts = append(parts, truncate(experience, 200))
	}
	if code != "" {
		parts = append(parts, truncate(code, 200))
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	return fallbackSolution
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ExtractKeyFindings pulls short facts out of the analysis steps:
// classification, code and experience. A finding is a non-empty line that is
// not boilerplate, capped at 10 per run.
func ExtractKeyFindings(steps []StepResult) []string {
	const maxFindings = 10

	var findings []string
	seen := make(map[string]bool)
	for _, s := range steps {
		switch s.Step {
		case StepClassification, StepCodeAnalysis, StepExperienceAnalysis:
		default:
			continue
		}
		for _, line := range strings.Split(s.Content, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
			if len(line) < 10 || seen[line] {
				continue
			}
			seen[line] = true
			findings = append(findings, line)
			if len(findings) >= maxFindings {
				return findings
			}
		}
	}
	return findings
}
