package analysis

import (
	"fmt"
	"time"
)

// IterationController owns the round budget and lifecycle of one analysis
// run. A run moves INIT → ACTIVE → DONE; rounds only advance while ACTIVE,
// and the run ends when the evidence becomes sufficient or the round budget
// runs out. Sufficiency is monotone: once true it never resets within a run.
type IterationController struct {
	phase         Phase
	maxIterations int
	round         int
	sufficient    bool
	forced        bool
	records       []RoundRecord
}

// NewIterationController creates a controller with the given round budget.
// A budget below 1 selects the default of 5.
func NewIterationController(maxIterations int) *IterationController {
	if maxIterations < 1 {
		maxIterations = 5
	}
	return &IterationController{
		phase:         PhaseInit,
		maxIterations: maxIterations,
	}
}

// Phase returns the current lifecycle phase.
func (c *IterationController) Phase() Phase {
	return c.phase
}

// Round returns the current round number, 1-based. Zero before Begin.
func (c *IterationController) Round() int {
	return c.round
}

// MaxIterations returns the round budget.
func (c *IterationController) MaxIterations() int {
	return c.maxIterations
}

// Begin transitions INIT → ACTIVE and opens round 1.
func (c *IterationController) Begin() error {
	if c.phase != PhaseInit {
		return fmt.Errorf("cannot begin run in phase %s", c.phase)
	}
	c.phase = PhaseActive
	c.round = 1
	return nil
}

// ShouldContinue reports whether another round may run: the run is ACTIVE,
// the evidence is not yet sufficient, and the budget is not exhausted.
func (c *IterationController) ShouldContinue() bool {
	return c.phase == PhaseActive && !c.sufficient && c.round <= c.maxIterations
}

// EvaluateCompleteness inspects a round's parsed steps and updates the
// sufficiency signal. The INFO_COMPLETENESS step alone decides: when present,
// the run continues only if it asks for more files; when absent, the evidence
// is treated as sufficient so malformed model output cannot loop forever.
// Returns whether more evidence was requested.
func (c *IterationController) EvaluateCompleteness(steps []StepResult) bool {
	needsMore := false
	for _, s := range steps {
		if s.Step == StepInfoCompleteness {
			needsMore = s.NeedsMoreInfo
		}
	}
	if !needsMore {
		c.sufficient = true
	}
	return needsMore
}

// Advance records the finished round and opens the next one. It fails when
// the run is not ACTIVE.
func (c *IterationController) Advance(record RoundRecord) error {
	if c.phase != PhaseActive {
		return fmt.Errorf("cannot advance run in phase %s", c.phase)
	}
	record.Round = c.round
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now()
	}
	c.records = append(c.records, record)
	c.round++
	return nil
}

// MarkEvidenceSufficient stops further rounds without finishing the run.
// Used when no candidate artifacts remain to fetch.
func (c *IterationController) MarkEvidenceSufficient() {
	c.sufficient = true
	c.forced = true
}

// EvidenceForced reports whether evidence was forced sufficient.
func (c *IterationController) EvidenceForced() bool {
	return c.forced
}

// Finish transitions ACTIVE → DONE.
func (c *IterationController) Finish() error {
	if c.phase != PhaseActive {
		return fmt.Errorf("cannot finish run in phase %s", c.phase)
	}
	c.phase = PhaseDone
	return nil
}

// Records returns the per-round history.
func (c *IterationController) Records() []RoundRecord {
	return c.records
}
