package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/batchlens/batchlens-ai/internal/artifact"
	"github.com/batchlens/batchlens-ai/internal/audit"
	"github.com/batchlens/batchlens-ai/internal/db"
	"github.com/batchlens/batchlens-ai/internal/llm/adapter"
	"github.com/batchlens/batchlens-ai/internal/llm/types"
	"github.com/batchlens/batchlens-ai/internal/metrics"
)

// TextCompletion enables test injection for the LLM adapter.
// adapter.LLMAdapter satisfies this interface.
type TextCompletion interface {
	Complete(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error)
}

// Compile-time check: adapter.LLMAdapter satisfies TextCompletion.
var _ TextCompletion = (adapter.LLMAdapter)(nil)

// Options tunes a diagnosis engine. Zero values select the defaults.
type Options struct {
	MaxIterations      int      // reasoning round budget, default 5
	PerRoundFetchLimit int      // artifacts fetched between rounds, default 3
	RelevanceThreshold float64  // recommendation cutoff, default 0.3
	SeedArtifacts      []string // fetched before round 1
}

// DefaultSeedArtifacts anchor every diagnosis: the error output, the job
// script, the warnings and the execution statistics.
var DefaultSeedArtifacts = []string{"Error", "request.script", "__Warnings__.xml", "JobStatistics.xml"}

func (o *Options) applyDefaults() {
	if o.MaxIterations < 1 {
		o.MaxIterations = 5
	}
	if o.PerRoundFetchLimit < 1 {
		o.PerRoundFetchLimit = 3
	}
	if o.RelevanceThreshold <= 0 {
		o.RelevanceThreshold = 0.3
	}
	if len(o.SeedArtifacts) == 0 {
		o.SeedArtifacts = DefaultSeedArtifacts
	}
}

// engineImpl is the concrete AnalysisEngine.
type engineImpl struct {
	llm       TextCompletion
	artifacts artifact.Store
	store     db.Store
	auditLog  audit.Logger
	logger    *zap.Logger
	opts      Options

	extractor   *StepExtractor
	recommender *EvidenceRecommender

	// Subscribers (run ID → list of subscribers)
	subsMu      sync.Mutex
	subscribers map[string][]*Subscriber
}

// NewAnalysisEngine creates a fully-wired diagnosis engine. The store and
// audit logger may be nil; runs then skip persistence and audit.
func NewAnalysisEngine(
	llm TextCompletion,
	artifacts artifact.Store,
	store db.Store,
	auditLog audit.Logger,
	logger *zap.Logger,
	opts Options,
) AnalysisEngine {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &engineImpl{
		llm:         llm,
		artifacts:   artifacts,
		store:       store,
		auditLog:    auditLog,
		logger:      logger,
		opts:        opts,
		extractor:   NewStepExtractor(),
		recommender: NewEvidenceRecommender(opts.RelevanceThreshold),
		subscribers: make(map[string][]*Subscriber),
	}
}

// Subscribe registers a channel to receive real-time run events.
// Returns a Subscriber whose Ch will be closed when the run finishes.
func (e *engineImpl) Subscribe(runID string) *Subscriber {
	sub := &Subscriber{Ch: make(chan AnalysisEvent, 64)}
	e.subsMu.Lock()
	e.subscribers[runID] = append(e.subscribers[runID], sub)
	e.subsMu.Unlock()
	return sub
}

// publish sends an event to all subscribers of the given run.
func (e *engineImpl) publish(id string, ev AnalysisEvent) {
	ev.RunID = id
	ev.Timestamp = time.Now()
	e.subsMu.Lock()
	subs := e.subscribers[id]
	e.subsMu.Unlock()
	for _, s := range subs {
		select {
		case s.Ch <- ev:
		default:
		}
	}
}

// closeSubs closes all subscriber channels for a run.
func (e *engineImpl) closeSubs(id string) {
	e.subsMu.Lock()
	subs := e.subscribers[id]
	delete(e.subscribers, id)
	e.subsMu.Unlock()
	for _, s := range subs {
		close(s.Ch)
	}
}

// ─── Public interface ─────────────────────────────────────────────────────────

// Analyze runs a full diagnosis synchronously.
func (e *engineImpl) Analyze(ctx context.Context, question string) (*AnalysisResult, error) {
	if question == "" {
		return nil, fmt.Errorf("analysis question is required")
	}
	runID := uuid.NewString()
	result := e.run(ctx, runID, question)
	return result, nil
}

// Start launches a diagnosis in the background and returns its run ID.
func (e *engineImpl) Start(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", fmt.Errorf("analysis question is required")
	}
	runID := uuid.NewString()

	// Record the run immediately so GET answers while it executes.
	if e.store != nil {
		rec := &db.AnalysisRecord{
			ID:          runID,
			Status:      StatusRunning,
			Question:    question,
			ProblemType: string(ProblemOther),
			KeyFindings: "[]",
			StartedAt:   time.Now(),
		}
		if err := e.store.SaveAnalysis(ctx, rec); err != nil {
			return "", fmt.Errorf("create analysis record: %w", err)
		}
	}

	// Detach from the request context so the run survives HTTP close.
	go e.run(context.Background(), runID, question)

	return runID, nil
}

// GetAnalysis retrieves a run by ID.
func (e *engineImpl) GetAnalysis(ctx context.Context, id string) (*AnalysisResult, error) {
	if e.store == nil {
		return nil, fmt.Errorf("persistence not configured")
	}
	rec, err := e.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromDBAnalysis(rec), nil
}

// ListAnalyses returns runs newest first.
func (e *engineImpl) ListAnalyses(ctx context.Context, limit, offset int) ([]*AnalysisResult, error) {
	if e.store == nil {
		return nil, fmt.Errorf("persistence not configured")
	}
	recs, err := e.store.ListAnalyses(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	results := make([]*AnalysisResult, len(recs))
	for i, rec := range recs {
		results[i] = fromDBAnalysis(rec)
	}
	return results, nil
}

// ─── Core diagnosis loop ──────────────────────────────────────────────────────

func (e *engineImpl) run(ctx context.Context, runID, question string) *AnalysisResult {
	defer e.closeSubs(runID)
	startedAt := time.Now()

	if e.auditLog != nil {
		_ = e.auditLog.LogAnalysisStarted(ctx, runID)
	}

	state := NewContextState(question)
	controller := NewIterationController(e.opts.MaxIterations)

	e.fetchSeeds(ctx, runID, state)

	if err := controller.Begin(); err != nil {
		// Unreachable with a fresh controller; kept for the state machine's sake.
		e.logger.Error("begin run", zap.String("run_id", runID), zap.Error(err))
	}

	for controller.ShouldContinue() {
		round := controller.Round()
		roundStart := time.Now()
		e.publish(runID, AnalysisEvent{Type: "round", Round: round})

		prompt, err := RenderRoundPrompt(state, round, controller.MaxIterations())
		if err != nil {
			return e.concludeDegraded(ctx, runID, state, controller, startedAt,
				fmt.Sprintf("prompt rendering failed: %v", err))
		}

		resp, err := e.llm.Complete(ctx, &types.CompletionRequest{
			Messages: []types.Message{
				{Role: "system", Content: SystemPrompt()},
				{Role: "user", Content: prompt},
			},
		})
		if err != nil {
			return e.concludeDegraded(ctx, runID, state, controller, startedAt,
				fmt.Sprintf("model call failed in round %d: %v", round, err))
		}

		steps := e.extractor.Extract(resp.Content)
		state.Steps = append(state.Steps, steps...)
		for i := range steps {
			e.publish(runID, AnalysisEvent{Type: "step", Round: round, Step: &steps[i]})
		}
		state.AppendRoundText(round, resp.Content)

		state.ProblemType = ClassifyProblem(state.Steps)
		state.KeyFindings = ExtractKeyFindings(state.Steps)

		record := RoundRecord{
			StepCount:     len(steps),
			NeedsMoreInfo: controller.EvaluateCompleteness(steps),
			StartedAt:     roundStart,
		}

		if record.NeedsMoreInfo && round < controller.MaxIterations() {
			record.FetchedArtifacts = e.fetchMoreEvidence(ctx, runID, state, controller)
		}

		if err := controller.Advance(record); err != nil {
			e.logger.Error("advance round", zap.String("run_id", runID), zap.Error(err))
			break
		}
		if err := ctx.Err(); err != nil {
			return e.concludeDegraded(ctx, runID, state, controller, startedAt,
				fmt.Sprintf("run cancelled: %v", err))
		}
	}

	if err := controller.Finish(); err != nil {
		e.logger.Error("finish run", zap.String("run_id", runID), zap.Error(err))
	}

	result := e.buildResult(runID, state, controller, startedAt, false, "")
	e.conclude(ctx, runID, result)
	return result
}

// fetchSeeds loads the configured seed artifacts in priority order. Missing
// seeds are recoverable: jobs that failed early emit only a subset.
func (e *engineImpl) fetchSeeds(ctx context.Context, runID string, state *ContextState) {
	seeds := make([]string, len(e.opts.SeedArtifacts))
	copy(seeds, e.opts.SeedArtifacts)
	sort.SliceStable(seeds, func(i, j int) bool {
		return SeedPriority(seeds[i], state.ProblemType) > SeedPriority(seeds[j], state.ProblemType)
	})

	for _, name := range seeds {
		e.fetchArtifact(ctx, runID, state, name)
	}
}

// fetchArtifact reads one artifact into the run context. A failed read is
// recorded inline as an unavailability marker so later prompts and the
// recommender see it. Returns true when the artifact was fetched.
func (e *engineImpl) fetchArtifact(ctx context.Context, runID string, state *ContextState, name string) bool {
	doc, err := e.artifacts.Read(ctx, name)
	if err != nil {
		state.MarkUnavailable(name)
		if artifact.IsNotFound(err) {
			e.logger.Debug("artifact missing",
				zap.String("run_id", runID), zap.String("artifact", name))
			if e.auditLog != nil {
				_ = e.auditLog.LogArtifactMissing(ctx, runID, name)
			}
			return false
		}
		e.logger.Warn("artifact fetch failed",
			zap.String("run_id", runID), zap.String("artifact", name), zap.Error(err))
		return false
	}

	state.AddEvidence(doc.Name, doc.Content)
	e.publish(runID, AnalysisEvent{Type: "artifact", Artifact: doc.Name})
	if e.auditLog != nil {
		_ = e.auditLog.LogArtifactFetched(ctx, runID, doc.Name)
	}
	return true
}

// fetchMoreEvidence fetches the top recommended artifacts in score order, up
// to the per-round limit. A failed read still consumes its slot; candidates
// beyond the limit are never attempted. Zero recommendations force evidence
// sufficient: no progress is possible, so the loop must stop rather than
// spin.
func (e *engineImpl) fetchMoreEvidence(
	ctx context.Context,
	runID string,
	state *ContextState,
	controller *IterationController,
) []string {
	recs := e.recommender.Recommend(state.ProblemType, state)
	if len(recs) == 0 {
		controller.MarkEvidenceSufficient()
		return nil
	}
	if len(recs) > e.opts.PerRoundFetchLimit {
		recs = recs[:e.opts.PerRoundFetchLimit]
	}

	var fetched []string
	for _, rec := range recs {
		if e.fetchArtifact(ctx, runID, state, rec.Artifact) {
			fetched = append(fetched, rec.Artifact)
		}
	}
	return fetched
}

// concludeDegraded finishes a run that lost its model mid-flight. The step
// and artifact history is preserved for inspection, but the verdict fields
// are forced: OTHER, confidence 0.0, and the solution carries the error
// description. No well-formed reasoning can conclude without generated text.
func (e *engineImpl) concludeDegraded(
	ctx context.Context,
	runID string,
	state *ContextState,
	controller *IterationController,
	startedAt time.Time,
	note string,
) *AnalysisResult {
	e.logger.Warn("analysis degraded", zap.String("run_id", runID), zap.String("reason", note))
	if controller.Phase() == PhaseActive {
		if err := controller.Finish(); err != nil {
			e.logger.Error("finish degraded run", zap.String("run_id", runID), zap.Error(err))
		}
	}
	result := e.buildResult(runID, state, controller, startedAt, true, note)
	if e.auditLog != nil {
		_ = e.auditLog.LogAnalysisDegraded(ctx, runID, note)
	}
	e.conclude(ctx, runID, result)
	return result
}

// buildResult assembles the final result from the run context.
func (e *engineImpl) buildResult(
	runID string,
	state *ContextState,
	controller *IterationController,
	startedAt time.Time,
	degraded bool,
	failureNote string,
) *AnalysisResult {
	rounds := controller.Records()
	roundCount := len(rounds)
	if roundCount == 0 {
		roundCount = 1
	}

	result := &AnalysisResult{
		RunID:       runID,
		Status:      StatusCompleted,
		Question:    state.Question,
		ProblemType: ClassifyProblem(state.Steps),
		Confidence:  AggregateConfidence(state.Steps, roundCount),
		Solution:    SynthesizeSolution(state.Steps),
		KeyFindings: state.KeyFindings,
		Steps:       state.Steps,
		Rounds:      rounds,
		Artifacts:   state.FetchOrder,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}

	if degraded {
		result.Status = StatusDegraded
		result.Degraded = true
		result.FailureNote = failureNote
		result.ProblemType = ProblemOther
		result.Confidence = 0.0
		result.Solution = failureNote
	}
	return result
}

// conclude persists the result, records metrics and notifies subscribers.
func (e *engineImpl) conclude(ctx context.Context, runID string, result *AnalysisResult) {
	if e.store != nil {
		if err := e.store.SaveAnalysis(ctx, toDBAnalysis(result)); err != nil {
			e.logger.Error("persist analysis", zap.String("run_id", runID), zap.Error(err))
		}
	}

	metrics.AnalysesTotal.WithLabelValues(result.Status).Inc()
	metrics.AnalysisDuration.WithLabelValues(string(result.ProblemType)).
		Observe(result.CompletedAt.Sub(result.StartedAt).Seconds())
	metrics.AnalysisRounds.Observe(float64(len(result.Rounds)))
	metrics.AnalysisConfidence.WithLabelValues(string(result.ProblemType)).Observe(result.Confidence)

	if e.auditLog != nil && !result.Degraded {
		_ = e.auditLog.LogAnalysisCompleted(ctx, runID, string(result.ProblemType),
			result.CompletedAt.Sub(result.StartedAt))
	}

	e.logger.Info("analysis finished",
		zap.String("run_id", runID),
		zap.String("status", result.Status),
		zap.String("problem_type", string(result.ProblemType)),
		zap.Float64("confidence", result.Confidence),
		zap.Int("rounds", len(result.Rounds)),
		zap.Strings("artifacts", result.Artifacts),
	)

	e.publish(runID, AnalysisEvent{Type: "result", Result: result})
}

// ─── DB mapping ───────────────────────────────────────────────────────────────

func toDBAnalysis(r *AnalysisResult) *db.AnalysisRecord {
	findings, _ := json.Marshal(r.KeyFindings)
	rec := &db.AnalysisRecord{
		ID:          r.RunID,
		Status:      r.Status,
		Question:    r.Question,
		ProblemType: string(r.ProblemType),
		Confidence:  r.Confidence,
		Solution:    r.Solution,
		KeyFindings: string(findings),
		Degraded:    r.Degraded,
		FailureNote: r.FailureNote,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
	for _, s := range r.Steps {
		rec.Steps = append(rec.Steps, db.StepRecord{
			AnalysisID:    r.RunID,
			StepNumber:    int(s.Step),
			Name:          s.Name,
			Content:       s.Content,
			Confidence:    s.Confidence,
			NeedsMoreInfo: s.NeedsMoreInfo,
		})
	}
	for _, round := range r.Rounds {
		fetched, _ := json.Marshal(round.FetchedArtifacts)
		rec.Rounds = append(rec.Rounds, db.RoundRecord{
			AnalysisID:       r.RunID,
			Round:            round.Round,
			FetchedArtifacts: string(fetched),
			StepCount:        round.StepCount,
			NeedsMoreInfo:    round.NeedsMoreInfo,
			StartedAt:        round.StartedAt,
			CompletedAt:      round.CompletedAt,
		})
	}
	for i, name := range r.Artifacts {
		rec.Artifacts = append(rec.Artifacts, db.ArtifactRecord{
			AnalysisID: r.RunID,
			Position:   i,
			Name:       name,
		})
	}
	return rec
}

func fromDBAnalysis(rec *db.AnalysisRecord) *AnalysisResult {
	r := &AnalysisResult{
		RunID:       rec.ID,
		Status:      rec.Status,
		Question:    rec.Question,
		ProblemType: ProblemType(rec.ProblemType),
		Confidence:  rec.Confidence,
		Solution:    rec.Solution,
		Degraded:    rec.Degraded,
		FailureNote: rec.FailureNote,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
	}
	_ = json.Unmarshal([]byte(rec.KeyFindings), &r.KeyFindings)
	for _, s := range rec.Steps {
		r.Steps = append(r.Steps, StepResult{
			Step:          AnalysisStep(s.StepNumber),
			Name:          s.Name,
			Content:       s.Content,
			Confidence:    s.Confidence,
			NeedsMoreInfo: s.NeedsMoreInfo,
		})
	}
	for _, round := range rec.Rounds {
		rr := RoundRecord{
			Round:         round.Round,
			StepCount:     round.StepCount,
			NeedsMoreInfo: round.NeedsMoreInfo,
			StartedAt:     round.StartedAt,
			CompletedAt:   round.CompletedAt,
		}
		_ = json.Unmarshal([]byte(round.FetchedArtifacts), &rr.FetchedArtifacts)
		r.Rounds = append(r.Rounds, rr)
	}
	for _, a := range rec.Artifacts {
		r.Artifacts = append(r.Artifacts, a.Name)
	}
	return r
}
