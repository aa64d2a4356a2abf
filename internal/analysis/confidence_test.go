package analysis

import (
	"math"
	"testing"
)

func steps(confidences ...float64) []StepResult {
	out := make([]StepResult, len(confidences))
	for i, c := range confidences {
		out[i] = StepResult{Step: AnalysisStep(i%5 + 1), Confidence: c}
	}
	return out
}

func TestAggregateConfidence(t *testing.T) {
	tests := []struct {
		name   string
		steps  []StepResult
		rounds int
		want   float64
	}{
		{"no steps", nil, 1, 0},
		{"single round mean", steps(0.6, 0.8), 1, 0.7},
		{"single round no penalty", steps(0.3, 0.3, 0.3), 1, 0.3},
		{"two rounds penalized", steps(0.8, 0.8), 2, 0.7},
		{"five rounds penalized", steps(0.8, 0.8), 5, 0.4},
		{"clamped at zero", steps(0.3), 5, 0},
		{"zero rounds treated as one", steps(0.6), 0, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateConfidence(tt.steps, tt.rounds)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AggregateConfidence = %v, want %v", got, tt.want)
			}
		})
	}
}
