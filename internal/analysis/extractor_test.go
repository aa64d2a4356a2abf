package analysis

import (
	"strings"
	"testing"
)

func TestExtractSparseMarkers(t *testing.T) {
	e := NewStepExtractor()

	steps := e.Extract("[STEP 1] abc [STEP 3] def")
	if len(steps) != 2 {
		t.Fatalf("expected exactly 2 steps, got %d: %+v", len(steps), steps)
	}
	if steps[0].Step != StepClassification || steps[1].Step != StepExperienceAnalysis {
		t.Errorf("expected steps {1,3}, got {%d,%d}", steps[0].Step, steps[1].Step)
	}
	// Step 1's content ends exactly where the [STEP 3] marker begins.
	if steps[0].Content != "abc" {
		t.Errorf("expected step 1 content %q, got %q", "abc", steps[0].Content)
	}
	if steps[1].Content != "def" {
		t.Errorf("expected step 3 content %q, got %q", "def", steps[1].Content)
	}
}

func TestExtractAllFiveSteps(t *testing.T) {
	e := NewStepExtractor()
	response := `[STEP 1] this is DATA_SKEW on the join key
[STEP 2] the join in request.script uses a low-cardinality key
[STEP 3] matches the hot key pattern
[STEP 4] MORE FILES NEEDED: no
[STEP 5] pre-aggregate before the join`

	steps := e.Extract(response)
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(steps))
	}
	for i, s := range steps {
		if int(s.Step) != i+1 {
			t.Errorf("step %d out of order: got %d", i+1, s.Step)
		}
	}
	if steps[4].Content != "pre-aggregate before the join" {
		t.Errorf("unexpected final step content: %q", steps[4].Content)
	}
}

func TestExtractOutOfOrderMarkers(t *testing.T) {
	e := NewStepExtractor()

	steps := e.Extract("[STEP 3] experience first [STEP 1] classification later")
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	// Results come back in step order regardless of marker order.
	if steps[0].Step != StepClassification || steps[0].Content != "classification later" {
		t.Errorf("unexpected step 1: %+v", steps[0])
	}
	if steps[1].Step != StepExperienceAnalysis || steps[1].Content != "experience first" {
		t.Errorf("unexpected step 3: %+v", steps[1])
	}
}

func TestExtractDuplicateMarkerLastWins(t *testing.T) {
	e := NewStepExtractor()

	steps := e.Extract("[STEP 1] first guess [STEP 1] revised classification")
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].Content != "revised classification" {
		t.Errorf("expected last occurrence to win, got %q", steps[0].Content)
	}
}

func TestExtractNoMarkers(t *testing.T) {
	e := NewStepExtractor()
	if steps := e.Extract("the model ignored the format entirely"); len(steps) != 0 {
		t.Errorf("expected no steps, got %+v", steps)
	}
}

func TestExtractNeedsMoreInfoOnlyOnCompletenessStep(t *testing.T) {
	e := NewStepExtractor()

	// The trigger phrase outside the completeness step must not set the flag.
	steps := e.Extract("[STEP 2] the script suggests more files needed: yes maybe [STEP 4] MORE FILES NEEDED: no")
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	for _, s := range steps {
		if s.NeedsMoreInfo {
			t.Errorf("step %s should not request more info: %+v", s.Name, s)
		}
	}

	steps = e.Extract("[STEP 4] MORE FILES NEEDED: yes — provide the statistics")
	if len(steps) != 1 || !steps[0].NeedsMoreInfo {
		t.Errorf("expected completeness step to request more info, got %+v", steps)
	}
}

func TestStepConfidenceLadder(t *testing.T) {
	tests := []struct {
		content string
		want    float64
	}{
		{"short", 0.3},
		{strings.Repeat("x", 49), 0.3},
		{strings.Repeat("x", 50), 0.6},
		{strings.Repeat("x", 199), 0.6},
		{strings.Repeat("x", 200), 0.8},
		{strings.Repeat("x", 5000), 0.8},
	}
	for _, tt := range tests {
		if got := stepConfidence(tt.content); got != tt.want {
			t.Errorf("stepConfidence(len=%d) = %v, want %v", len(tt.content), got, tt.want)
		}
	}
}

func TestDetectNeedsMoreInfo(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"MORE FILES NEEDED: yes, please provide JobStatistics.xml", true},
		{"more files needed: YES", true},
		{"Files needed: yes", true},
		{"MORE FILES NEEDED: no", false},
		{"the evidence is sufficient", false},
		// "yes" somewhere else in the content still counts with the phrase.
		{"Yes, I am certain. More files needed to confirm.", true},
	}
	for _, tt := range tests {
		if got := detectNeedsMoreInfo(tt.content); got != tt.want {
			t.Errorf("detectNeedsMoreInfo(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}
