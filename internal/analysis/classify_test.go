package analysis

import (
	"strings"
	"testing"
)

func classStep(content string) StepResult {
	return StepResult{Step: StepClassification, Name: StepClassification.String(), Content: content}
}

func TestClassifyProblem(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepResult
		want  ProblemType
	}{
		{"no steps", nil, ProblemOther},
		{"no classification step", []StepResult{{Step: StepCodeAnalysis, Content: "join analysis"}}, ProblemOther},
		{"skew", []StepResult{classStep("this is data skew on the join key")}, ProblemDataSkew},
		{"shuffle", []StepResult{classStep("excessive shuffle between stages")}, ProblemExcessiveShuffle},
		{"skew takes precedence over shuffle", []StepResult{classStep("data skew causing shuffle pressure")}, ProblemDataSkew},
		{"enum name accepted", []StepResult{classStep("classification: EXCESSIVE_SHUFFLE")}, ProblemExcessiveShuffle},
		{"unrelated", []StepResult{classStep("out of memory in user code")}, ProblemOther},
		{
			"last classification wins",
			[]StepResult{classStep("looks like shuffle"), classStep("with statistics it is clearly skew")},
			ProblemDataSkew,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyProblem(tt.steps); got != tt.want {
				t.Errorf("ClassifyProblem = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSynthesizeSolutionPrefersFinalStep(t *testing.T) {
	result := SynthesizeSolution([]StepResult{
		{Step: StepExperienceAnalysis, Content: "matches hot key pattern"},
		{Step: StepCodeAnalysis, Content: "join on low-cardinality key"},
		{Step: StepFinalSolution, Content: "pre-aggregate before the join"},
	})
	if result != "pre-aggregate before the join" {
		t.Errorf("unexpected solution: %q", result)
	}
}

func TestSynthesizeSolutionPartialTruncatesEachPart(t *testing.T) {
	experience := strings.Repeat("pattern analysis ", 20) // 340 chars
	code := strings.Repeat("code detail ", 20)            // 240 chars

	result := SynthesizeSolution([]StepResult{
		{Step: StepExperienceAnalysis, Content: experience},
		{Step: StepCodeAnalysis, Content: code},
	})
	// Each part truncated to 200 chars, joined with a space.
	if len(result) != 401 {
		t.Errorf("expected both parts truncated to 200 chars each, got %d", len(result))
	}
	if !strings.HasPrefix(result, "pattern analysis") {
		t.Errorf("expected experience content first, got %q", result[:30])
	}
	if !strings.Contains(result, "code detail") {
		t.Errorf("expected code content included, got %q", result)
	}
}

func TestSynthesizeSolutionFallback(t *testing.T) {
	result := SynthesizeSolution([]StepResult{
		{Step: StepClassification, Content: "classification only"},
	})
	if !strings.Contains(result, "Review the job script") {
		t.Errorf("expected fallback message, got %q", result)
	}
}

func TestExtractKeyFindings(t *testing.T) {
	steps := []StepResult{
		{Step: StepClassification, Content: "- vertex v1 processed 9000 rows\n- stage SV2 took 80s\nshort\n- vertex v1 processed 9000 rows"},
		{Step: StepInfoCompleteness, Content: "MORE FILES NEEDED: no, everything is here"},
		{Step: StepExperienceAnalysis, Content: "* warnings flag a cross join"},
	}

	findings := ExtractKeyFindings(steps)
	want := []string{
		"vertex v1 processed 9000 rows",
		"stage SV2 took 80s",
		"warnings flag a cross join",
	}
	if len(findings) != len(want) {
		t.Fatalf("expected %v, got %v", want, findings)
	}
	for i := range want {
		if findings[i] != want[i] {
			t.Errorf("finding %d: expected %q, got %q", i, want[i], findings[i])
		}
	}
}

func TestExtractKeyFindingsCap(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, strings.Repeat("finding ", 3)+string(rune('a'+i)))
	}
	steps := []StepResult{{Step: StepClassification, Content: strings.Join(lines, "\n")}}

	if got := len(ExtractKeyFindings(steps)); got != 10 {
		t.Errorf("expected findings capped at 10, got %d", got)
	}
}
