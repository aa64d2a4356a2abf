package analysis

// AggregateConfidence combines per-step confidences into a run-level score.
// The base is the mean step confidence; each round past the first costs 0.1,
// since needing more rounds means the early evidence was not conclusive. The
// result is clamped to [0, 1]. No steps means no confidence.
func AggregateConfidence(steps []StepResult, rounds int) float64 {
	if len(steps) == 0 {
		return 0
	}

	var sum float64
	for _, s := range steps {
		sum += s.Confidence
	}
	confidence := sum / float64(len(steps))

	if rounds > 1 {
		confidence -= float64(rounds-1) * 0.1
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
