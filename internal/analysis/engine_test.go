package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/batchlens/batchlens-ai/internal/artifact"
	"github.com/batchlens/batchlens-ai/internal/llm/types"
)

// ─── Fakes ────────────────────────────────────────────────────────────────────

// fakeCompletion replays canned responses, one per call.
type fakeCompletion struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeCompletion) Complete(_ context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error) {
	f.calls++
	for _, m := range req.Messages {
		if m.Role == "user" {
			f.prompts = append(f.prompts, m.Content)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return &types.CompletionResponse{Content: f.responses[idx]}, nil
}

// fakeDocs serves artifacts from a map. reads records every Read attempt,
// fetched only the successful ones.
type fakeDocs struct {
	docs    map[string]string
	reads   []string
	fetched []string
}

func (f *fakeDocs) Read(_ context.Context, name string) (*artifact.Document, error) {
	f.reads = append(f.reads, name)
	content, ok := f.docs[name]
	if !ok {
		return nil, &artifact.NotFoundError{Name: name}
	}
	f.fetched = append(f.fetched, name)
	return &artifact.Document{Name: name, Content: content, Size: int64(len(content))}, nil
}

func (f *fakeDocs) List(_ context.Context) ([]string, error) {
	var names []string
	for name := range f.docs {
		names = append(names, name)
	}
	return names, nil
}

func conclusiveResponse(classification string) string {
	return fmt.Sprintf(`[STEP 1] %s
[STEP 2] the join in request.script uses the customer_id key which is heavily repeated
[STEP 3] this matches the hot key pattern from the reference experience notes exactly
[STEP 4] the evidence on hand is sufficient. MORE FILES NEEDED: no
[STEP 5] pre-aggregate on customer_id before the join to balance partitions`, classification)
}

func newTestEngine(llm TextCompletion, docs artifact.Store, opts Options) AnalysisEngine {
	return NewAnalysisEngine(llm, docs, nil, nil, nil, opts)
}

func allSeedDocs() map[string]string {
	return map[string]string{
		"Error":             "Vertex v1 terminated after exceeding runtime limit",
		"request.script":    "SELECT customer_id, COUNT(*) FROM a JOIN b ON a.customer_id = b.customer_id GROUP BY customer_id",
		"__Warnings__.xml":  "Job reported 1 warning(s):\n- [W1001] join key statistics missing",
		"JobStatistics.xml": "stage SV2: vertex v1 processed 9000 rows vs stage average 100",
	}
}

// ─── Happy path ───────────────────────────────────────────────────────────────

func TestAnalyzeConclusiveFirstRound(t *testing.T) {
	llm := &fakeCompletion{responses: []string{conclusiveResponse("this is clearly DATA_SKEW on the join key given the uneven vertex row counts")}}
	docs := &fakeDocs{docs: allSeedDocs()}
	engine := newTestEngine(llm, docs, Options{})

	result, err := engine.Analyze(context.Background(), "why is job X slow?")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Degraded {
		t.Fatalf("unexpected degraded result: %s", result.FailureNote)
	}
	if result.ProblemType != ProblemDataSkew {
		t.Errorf("expected DATA_SKEW, got %s", result.ProblemType)
	}
	if len(result.Rounds) != 1 {
		t.Errorf("expected 1 round, got %d", len(result.Rounds))
	}
	if llm.calls != 1 {
		t.Errorf("expected 1 model call, got %d", llm.calls)
	}
	if !strings.Contains(result.Solution, "pre-aggregate") {
		t.Errorf("unexpected solution: %q", result.Solution)
	}
	if len(result.Artifacts) != 4 {
		t.Errorf("expected all 4 seeds fetched, got %v", result.Artifacts)
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		t.Errorf("confidence out of range: %v", result.Confidence)
	}
	if result.Status != StatusCompleted {
		t.Errorf("expected status completed, got %q", result.Status)
	}
}

func TestAnalyzeSeedsOrderedByPriority(t *testing.T) {
	llm := &fakeCompletion{responses: []string{conclusiveResponse("OTHER")}}
	docs := &fakeDocs{docs: allSeedDocs()}
	engine := newTestEngine(llm, docs, Options{})

	if _, err := engine.Analyze(context.Background(), "q"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// request.script is the only seed whose text mentions "script"; it must
	// be fetched first.
	if len(docs.fetched) == 0 || docs.fetched[0] != "request.script" {
		t.Errorf("expected request.script fetched first, got %v", docs.fetched)
	}
}

func TestAnalyzeMissingSeedsRecoverable(t *testing.T) {
	llm := &fakeCompletion{responses: []string{conclusiveResponse("OTHER — job failed early")}}
	docs := &fakeDocs{docs: map[string]string{
		"Error": "compilation failed: unknown column customer_id",
	}}
	engine := newTestEngine(llm, docs, Options{})

	result, err := engine.Analyze(context.Background(), "why did job X fail?")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Degraded {
		t.Fatalf("missing seeds must not degrade the run: %s", result.FailureNote)
	}
	if len(result.Artifacts) != 1 || result.Artifacts[0] != "Error" {
		t.Errorf("expected only the Error artifact, got %v", result.Artifacts)
	}
}

// ─── Iterative evidence gathering ─────────────────────────────────────────────

func TestAnalyzeFetchesRecommendedEvidence(t *testing.T) {
	// Round 1 classifies shuffle but the seeds cover no plan evidence, so the
	// recommender picks Algebra.xml; round 2 concludes with it.
	inconclusive := `[STEP 1] possibly EXCESSIVE_SHUFFLE: heavy data transfer between stages
[STEP 4] MORE FILES NEEDED: yes — the operator graph for the job would confirm`
	llm := &fakeCompletion{responses: []string{
		inconclusive,
		conclusiveResponse("confirmed EXCESSIVE_SHUFFLE between stages SV2 and SV3"),
	}}
	docsMap := allSeedDocs()
	docsMap["Algebra.xml"] = "HashJoin operator repartitions input b across 250 partitions"
	docs := &fakeDocs{docs: docsMap}
	engine := newTestEngine(llm, docs, Options{})

	result, err := engine.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if llm.calls != 2 {
		t.Fatalf("expected 2 rounds of model calls, got %d", llm.calls)
	}
	if result.ProblemType != ProblemExcessiveShuffle {
		t.Errorf("expected EXCESSIVE_SHUFFLE, got %s", result.ProblemType)
	}
	if len(result.Rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(result.Rounds))
	}
	found := false
	for _, name := range result.Rounds[0].FetchedArtifacts {
		if name == "Algebra.xml" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Algebra.xml fetched in round 1, got %v", result.Rounds[0].FetchedArtifacts)
	}
	// The second prompt must contain the newly fetched evidence.
	if len(llm.prompts) < 2 || !strings.Contains(llm.prompts[1], "250 partitions") {
		t.Error("round 2 prompt missing newly fetched evidence")
	}
}

func TestAnalyzeRoundTextCountsAsEvidence(t *testing.T) {
	// The seeds cover the script, errors and statistics categories; the
	// model's own round text covers config. Nothing is left to recommend, so
	// the run concludes after a single round even though the model asked for
	// more files.
	response := `[STEP 1] the job failed for an unknown reason
[STEP 2] nothing in the submitted code explains the slowdown
[STEP 3] no known pattern applies
[STEP 4] MORE FILES NEEDED: yes — the cluster config might explain it
[STEP 5] inconclusive so far`
	llm := &fakeCompletion{responses: []string{response}}
	docs := &fakeDocs{docs: allSeedDocs()}
	engine := newTestEngine(llm, docs, Options{})

	result, err := engine.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if llm.calls != 1 {
		t.Errorf("expected run to conclude after 1 round, got %d calls", llm.calls)
	}
	if len(result.Rounds) != 1 {
		t.Errorf("expected 1 round, got %d", len(result.Rounds))
	}
	if result.Degraded {
		t.Error("nothing left to fetch is not a degraded result")
	}
}

func TestAnalyzeUnavailableArtifactNotedInContext(t *testing.T) {
	// Round 1 recommends JobInfo.xml, which does not exist; the failed read
	// leaves an inline marker that the round 2 prompt carries.
	insatiable := `[STEP 1] the failure cause is unclear from the evidence on hand
[STEP 4] MORE FILES NEEDED: yes — job submission details would help`
	llm := &fakeCompletion{responses: []string{insatiable, conclusiveResponse("OTHER")}}
	docs := &fakeDocs{docs: allSeedDocs()}
	engine := newTestEngine(llm, docs, Options{})

	if _, err := engine.Analyze(context.Background(), "q"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(llm.prompts) < 2 {
		t.Fatalf("expected 2 prompts, got %d", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[1], "--- JobInfo.xml ---\n(artifact unavailable)") {
		t.Error("round 2 prompt missing the unavailability marker for JobInfo.xml")
	}
}

func TestAnalyzeRespectsPerRoundFetchLimit(t *testing.T) {
	insatiable := `[STEP 1] the failure cause is unclear from the evidence on hand
[STEP 4] MORE FILES NEEDED: yes — job submission details would help`
	llm := &fakeCompletion{responses: []string{
		insatiable,
		conclusiveResponse("OTHER"),
	}}
	// Everything in the catalog exists on disk.
	docsMap := allSeedDocs()
	for _, entry := range ArtifactCatalog {
		if _, ok := docsMap[entry.Name]; !ok {
			docsMap[entry.Name] = "content of " + entry.Name
		}
	}
	docs := &fakeDocs{docs: docsMap}
	engine := newTestEngine(llm, docs, Options{PerRoundFetchLimit: 2})

	result, err := engine.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := len(result.Rounds[0].FetchedArtifacts); got > 2 {
		t.Errorf("fetch limit exceeded: %d artifacts in round 1", got)
	}
}

func TestAnalyzeFailedFetchConsumesLimitSlot(t *testing.T) {
	// JobInfo.xml outranks NebulaCommandLine.txt for the missing config
	// evidence. With a limit of 1, JobInfo's failed read uses the only slot;
	// the runner-up is never attempted.
	insatiable := `[STEP 1] the failure cause is unclear from the evidence on hand
[STEP 4] MORE FILES NEEDED: yes — job submission details would help`
	llm := &fakeCompletion{responses: []string{insatiable, conclusiveResponse("OTHER")}}
	docsMap := allSeedDocs()
	docsMap["NebulaCommandLine.txt"] = "submission priority 1000"
	docs := &fakeDocs{docs: docsMap}
	engine := newTestEngine(llm, docs, Options{PerRoundFetchLimit: 1})

	if _, err := engine.Analyze(context.Background(), "q"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, name := range docs.reads {
		if name == "NebulaCommandLine.txt" {
			t.Error("runner-up candidate attempted past the per-round limit")
		}
	}
}

func TestAnalyzeBudgetExhaustion(t *testing.T) {
	// The model asks for more evidence every round and the recommended
	// artifacts never exist; the loop must still end at the budget.
	insatiable := `[STEP 1] the failure cause is unclear from the evidence on hand
[STEP 4] MORE FILES NEEDED: yes — job submission details would help`
	llm := &fakeCompletion{responses: []string{insatiable}}
	docs := &fakeDocs{docs: allSeedDocs()}
	engine := newTestEngine(llm, docs, Options{MaxIterations: 3})

	result, err := engine.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if llm.calls > 3 {
		t.Errorf("expected at most 3 model calls, got %d", llm.calls)
	}
	if len(result.Rounds) > 3 {
		t.Errorf("expected at most 3 rounds, got %d", len(result.Rounds))
	}
	if result.Degraded {
		t.Error("budget exhaustion is not a degraded result")
	}
}

func TestAnalyzeSingleRoundBudget(t *testing.T) {
	// maxIterations = 1 with a model that always wants more: exactly one
	// round, and the confidence penalty is zero.
	insatiable := `[STEP 1] the error output shows vertex v1 terminated but the root cause needs more evidence
[STEP 4] MORE FILES NEEDED: yes — job submission details would help`
	llm := &fakeCompletion{responses: []string{insatiable}}
	docs := &fakeDocs{docs: allSeedDocs()}
	engine := newTestEngine(llm, docs, Options{MaxIterations: 1})

	result, err := engine.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if llm.calls != 1 || len(result.Rounds) != 1 {
		t.Fatalf("expected exactly 1 round, got %d calls, %d rounds", llm.calls, len(result.Rounds))
	}

	// Confidence equals the plain mean of step confidences: one round means
	// no penalty.
	var sum float64
	for _, s := range result.Steps {
		sum += s.Confidence
	}
	want := sum / float64(len(result.Steps))
	if diff := result.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence %v (no penalty), got %v", want, result.Confidence)
	}
}

func TestAnalyzeForcedSufficientWhenNothingToFetch(t *testing.T) {
	// The model keeps asking for more but the recommender finds nothing above
	// threshold: the run concludes instead of spinning.
	insatiable := `[STEP 1] evidence review done, the cause remains unclear
[STEP 4] MORE FILES NEEDED: yes`
	llm := &fakeCompletion{responses: []string{insatiable}}
	docs := &fakeDocs{docs: allSeedDocs()}
	// Threshold so high nothing can be recommended.
	engine := newTestEngine(llm, docs, Options{RelevanceThreshold: 0.99})

	result, err := engine.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if llm.calls != 1 {
		t.Errorf("expected run to conclude after 1 round, got %d calls", llm.calls)
	}
	if result.Degraded {
		t.Error("forced sufficiency is not a degraded result")
	}
}

func TestAnalyzeStrayPhraseOutsideCompletenessStep(t *testing.T) {
	// The trigger phrase inside a code-analysis span must not prolong the
	// run; only the completeness step decides.
	response := `[STEP 1] the job hit an unrelated transient failure
[STEP 2] the code comments say more files needed: yes for the full picture
[STEP 4] MORE FILES NEEDED: no
[STEP 5] rerun the job`
	llm := &fakeCompletion{responses: []string{response}}
	docs := &fakeDocs{docs: allSeedDocs()}
	engine := newTestEngine(llm, docs, Options{})

	result, err := engine.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if llm.calls != 1 {
		t.Errorf("expected 1 model call, got %d", llm.calls)
	}
	if len(result.Rounds) != 1 {
		t.Errorf("expected 1 round, got %d", len(result.Rounds))
	}
}

func TestAnalyzeCompletenessStepAbsentConcludes(t *testing.T) {
	// Without a completeness step the evidence counts as sufficient.
	response := `[STEP 1] clearly DATA_SKEW from the uneven row counts
[STEP 5] pre-aggregate before the join`
	llm := &fakeCompletion{responses: []string{response}}
	docs := &fakeDocs{docs: allSeedDocs()}
	engine := newTestEngine(llm, docs, Options{})

	result, err := engine.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if llm.calls != 1 || len(result.Rounds) != 1 {
		t.Errorf("expected exactly 1 round, got %d calls, %d rounds", llm.calls, len(result.Rounds))
	}
	if result.ProblemType != ProblemDataSkew {
		t.Errorf("expected DATA_SKEW, got %s", result.ProblemType)
	}
}

// ─── Degraded path ────────────────────────────────────────────────────────────

func TestAnalyzeDegradedOnModelFailure(t *testing.T) {
	llm := &fakeCompletion{err: errors.New("connection refused")}
	docs := &fakeDocs{docs: allSeedDocs()}
	engine := newTestEngine(llm, docs, Options{})

	result, err := engine.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("model failure must not propagate as error, got %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded result")
	}
	if result.Status != StatusDegraded {
		t.Errorf("expected status degraded, got %q", result.Status)
	}
	if result.Confidence != 0 {
		t.Errorf("expected confidence 0, got %v", result.Confidence)
	}
	if result.ProblemType != ProblemOther {
		t.Errorf("expected OTHER, got %s", result.ProblemType)
	}
	if result.FailureNote == "" {
		t.Error("expected failure note")
	}
	if !strings.Contains(result.Solution, "connection refused") {
		t.Errorf("expected solution to carry the error description, got %q", result.Solution)
	}
}

func TestAnalyzeDegradedMidRun(t *testing.T) {
	// Round 1 leans towards skew; the round 2 model call fails. The verdict
	// fields are forced even though round 1 produced a classification, while
	// the step history survives for inspection.
	inconclusive := `[STEP 1] leaning towards data skew given the uneven row counts
[STEP 2] the join concentrates rows on one key
[STEP 4] MORE FILES NEEDED: yes — the execution breakdown would confirm`
	docsMap := allSeedDocs()
	docsMap["JobStatistics.xml"] = "vertex v1 processed 9000 rows vs average 100"
	docs := &fakeDocs{docs: docsMap}

	// First round succeeds, the second model call fails.
	llm := &failAfter{inner: &fakeCompletion{responses: []string{inconclusive}}, failFrom: 2}
	engine := newTestEngine(llm, docs, Options{})

	result, err := engine.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded result after mid-run failure")
	}
	if result.ProblemType != ProblemOther {
		t.Errorf("expected forced OTHER, got %s", result.ProblemType)
	}
	if result.Confidence != 0 {
		t.Errorf("expected forced confidence 0, got %v", result.Confidence)
	}
	if !strings.Contains(result.Solution, "model unavailable") {
		t.Errorf("expected solution to carry the error description, got %q", result.Solution)
	}
	// Steps from the successful first round survive into the result.
	if len(result.Steps) == 0 {
		t.Error("expected steps from the first round preserved")
	}
}

// failAfter delegates to an inner completion until failFrom, then errors.
type failAfter struct {
	inner    *fakeCompletion
	failFrom int
	calls    int
}

func (f *failAfter) Complete(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error) {
	f.calls++
	if f.calls >= f.failFrom {
		return nil, errors.New("model unavailable")
	}
	return f.inner.Complete(ctx, req)
}

// ─── Input validation and prompts ─────────────────────────────────────────────

func TestAnalyzeEmptyQuestion(t *testing.T) {
	engine := newTestEngine(&fakeCompletion{responses: []string{"x"}}, &fakeDocs{}, Options{})
	if _, err := engine.Analyze(context.Background(), ""); err == nil {
		t.Error("expected error for empty question")
	}
	if _, err := engine.Start(context.Background(), ""); err == nil {
		t.Error("expected error for empty question on Start")
	}
}

func TestAnalyzePromptContainsEvidenceAndExperience(t *testing.T) {
	llm := &fakeCompletion{responses: []string{conclusiveResponse("DATA_SKEW")}}
	docs := &fakeDocs{docs: allSeedDocs()}
	engine := newTestEngine(llm, docs, Options{})

	if _, err := engine.Analyze(context.Background(), "why slow?"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(llm.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(llm.prompts))
	}
	prompt := llm.prompts[0]
	for _, fragment := range []string{
		"why slow?",
		"request.script",
		"customer_id",
		"[STEP 1]",
		"[STEP 5]",
		"MORE FILES NEEDED",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt missing %q", fragment)
		}
	}
}
