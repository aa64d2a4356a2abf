package analysis

import "context"

// Package analysis provides the diagnosis orchestrator — the core of
// batchlens-ai.
//
// The engine coordinates the full evidence-gathering loop for one question
// about a slow or failed batch job:
//
//	Seed evidence fetch → Reasoning round → Step extraction →
//	Classification → Evidence recommendation → Fetch → next round → Result
//
// Responsibilities:
//   - Fetch the seed artifacts that anchor every diagnosis
//   - Drive reasoning rounds against the LLM, up to the round budget
//   - Parse structured reasoning steps out of model responses
//   - Classify the problem (DATA_SKEW, EXCESSIVE_SHUFFLE, OTHER)
//   - Recommend and fetch additional evidence between rounds
//   - Aggregate per-step confidence into a run-level score
//   - Degrade gracefully when the LLM is unavailable: a run always produces
//     a result, never an error, once it has started
//   - Persist completed runs and stream progress to subscribers
//
// Evidence handling:
//   - Missing artifacts are expected and recoverable; the run continues with
//     whatever evidence exists
//   - When no candidate artifacts remain, evidence is forced sufficient and
//     the run concludes on what it has
//
// Concurrency:
//   - Multiple runs can execute in parallel, each with independent state
//   - Run state lives only for the duration of the run; the database holds
//     immutable result snapshots

// AnalysisEngine defines the interface for diagnosis orchestration.
type AnalysisEngine interface {
	// Analyze runs a full diagnosis synchronously and returns the result.
	// Once a run starts it always returns a result: LLM failures produce a
	// degraded result, not an error.
	Analyze(ctx context.Context, question string) (*AnalysisResult, error)

	// Start launches a diagnosis in the background and returns its run ID.
	Start(ctx context.Context, question string) (string, error)

	// GetAnalysis retrieves a run by ID, running or finished.
	GetAnalysis(ctx context.Context, id string) (*AnalysisResult, error)

	// ListAnalyses returns runs newest first.
	ListAnalyses(ctx context.Context, limit, offset int) ([]*AnalysisResult, error)

	// Subscribe registers for real-time events of a run. The channel closes
	// when the run finishes.
	Subscribe(runID string) *Subscriber
}
