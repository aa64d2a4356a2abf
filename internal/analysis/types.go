package analysis

import (
	"fmt"
	"time"
)

// ProblemType classifies the performance problem found in a job.
type ProblemType string

const (
	ProblemDataSkew         ProblemType = "DATA_SKEW"
	ProblemExcessiveShuffle ProblemType = "EXCESSIVE_SHUFFLE"
	ProblemOther            ProblemType = "OTHER"
)

// AnalysisStep identifies one of the five reasoning steps the model walks
// through in every round.
type AnalysisStep int

const (
	StepClassification     AnalysisStep = 1
	StepCodeAnalysis       AnalysisStep = 2
	StepExperienceAnalysis AnalysisStep = 3
	StepInfoCompleteness   AnalysisStep = 4
	StepFinalSolution      AnalysisStep = 5
)

// String returns the step's name.
func (s AnalysisStep) String() string {
	switch s {
	case StepClassification:
		return "CLASSIFICATION"
	case StepCodeAnalysis:
		return "CODE_ANALYSIS"
	case StepExperienceAnalysis:
		return "EXPERIENCE_ANALYSIS"
	case StepInfoCompleteness:
		return "INFO_COMPLETENESS"
	case StepFinalSolution:
		return "FINAL_SOLUTION"
	default:
		return "UNKNOWN"
	}
}

// StepResult is one reasoning step parsed out of a model response.
// NeedsMoreInfo is only ever set on the INFO_COMPLETENESS step.
type StepResult struct {
	Step          AnalysisStep `json:"step"`
	Name          string       `json:"name"`
	Content       string       `json:"content"`
	Confidence    float64      `json:"confidence"`
	NeedsMoreInfo bool         `json:"needs_more_info"`
}

// EvidenceRecommendation is a scored suggestion to fetch one more artifact.
type EvidenceRecommendation struct {
	Artifact string  `json:"artifact"`
	Score    float64 `json:"score"`
	Priority float64 `json:"priority"`
	Reason   string  `json:"reason"`
}

// Phase is the lifecycle phase of an analysis run.
type Phase string

const (
	PhaseInit   Phase = "INIT"
	PhaseActive Phase = "ACTIVE"
	PhaseDone   Phase = "DONE"
)

// RoundRecord captures what happened in a single reasoning round.
type RoundRecord struct {
	Round            int       `json:"round"`
	FetchedArtifacts []string  `json:"fetched_artifacts,omitempty"`
	StepCount        int       `json:"step_count"`
	NeedsMoreInfo    bool      `json:"needs_more_info"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// ContextState accumulates everything learned during a run: fetched evidence,
// parsed reasoning steps, and extracted key findings. AccumulatedText is
// append-only and round-delimited: artifact contents, unavailability markers
// and each round's raw model response land there in order. Built fresh for
// every run and discarded afterwards.
type ContextState struct {
	Question        string            `json:"question"`
	Evidence        map[string]string `json:"evidence"`         // artifact name → content
	FetchOrder      []string          `json:"fetch_order"`      // artifact names in fetch order
	AccumulatedText string            `json:"accumulated_text"` // append-only evidence + round text
	Steps           []StepResult      `json:"steps"`            // all steps across all rounds
	KeyFindings     []string          `json:"key_findings"`     // short facts extracted from steps
	ProblemType     ProblemType       `json:"problem_type"`
}

// NewContextState creates an empty context for a new run.
func NewContextState(question string) *ContextState {
	return &ContextState{
		Question:    question,
		Evidence:    make(map[string]string),
		ProblemType: ProblemOther,
	}
}

// AddEvidence records a fetched artifact and appends its content to the
// accumulated text. Re-fetching the same artifact replaces its content
// without duplicating the fetch order entry.
func (c *ContextState) AddEvidence(name, content string) {
	if _, seen := c.Evidence[name]; !seen {
		c.FetchOrder = append(c.FetchOrder, name)
	}
	c.Evidence[name] = content
	c.appendAccumulated("--- " + name + " ---\n" + content)
}

// MarkUnavailable records a failed artifact read inline so later rounds see
// that the artifact cannot help.
func (c *ContextState) MarkUnavailable(name string) {
	c.appendAccumulated("--- " + name + " ---\n(artifact unavailable)")
}

// AppendRoundText appends one round's raw model response with a delimiter.
func (c *ContextState) AppendRoundText(round int, text string) {
	c.appendAccumulated(fmt.Sprintf("--- round %d ---\n%s", round, text))
}

func (c *ContextState) appendAccumulated(text string) {
	if c.AccumulatedText != "" {
		c.AccumulatedText += "\n\n"
	}
	c.AccumulatedText += text
}

// HasEvidence reports whether the artifact has already been fetched.
func (c *ContextState) HasEvidence(name string) bool {
	_, ok := c.Evidence[name]
	return ok
}

// Run statuses as stored and reported by the API.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusDegraded  = "degraded"
)

// AnalysisResult is the final output of a run.
type AnalysisResult struct {
	RunID       string        `json:"run_id"`
	Status      string        `json:"status"`
	Question    string        `json:"question"`
	ProblemType ProblemType   `json:"problem_type"`
	Confidence  float64       `json:"confidence"`
	Solution    string        `json:"solution"`
	KeyFindings []string      `json:"key_findings,omitempty"`
	Steps       []StepResult  `json:"steps"`
	Rounds      []RoundRecord `json:"rounds"`
	Artifacts   []string      `json:"artifacts"`
	Degraded    bool          `json:"degraded"`
	FailureNote string        `json:"failure_note,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// AnalysisEvent is streamed to subscribers during an active run.
type AnalysisEvent struct {
	RunID     string          `json:"run_id"`
	Type      string          `json:"type"` // "round" | "artifact" | "step" | "result" | "error"
	Round     int             `json:"round,omitempty"`
	Artifact  string          `json:"artifact,omitempty"`
	Step      *StepResult     `json:"step,omitempty"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Subscriber receives analysis events in real-time.
type Subscriber struct {
	Ch chan AnalysisEvent
}
