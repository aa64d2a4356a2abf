package db

import (
	"context"
	"errors"
	"time"
)

// Package db persists completed analysis runs for later retrieval.
//
// Responsibilities:
//   - Store analysis results with their reasoning steps, round history and
//     fetched artifact list
//   - Serve the read API (get by ID, list newest first)
//   - Run schema migrations on startup
//
// Run state is never rehydrated from here: a record is an immutable snapshot
// written when a run starts (status "running") and replaced when it ends.

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// AnalysisRecord is the DB representation of an analysis run.
type AnalysisRecord struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"` // running | completed | degraded
	Question    string           `json:"question"`
	ProblemType string           `json:"problem_type"`
	Confidence  float64          `json:"confidence"`
	Solution    string           `json:"solution"`
	KeyFindings string           `json:"key_findings"` // JSON array
	Degraded    bool             `json:"degraded"`
	FailureNote string           `json:"failure_note"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Steps       []StepRecord     `json:"steps"`
	Rounds      []RoundRecord    `json:"rounds"`
	Artifacts   []ArtifactRecord `json:"artifacts"`
}

// StepRecord is one parsed reasoning step.
type StepRecord struct {
	ID            int64   `json:"id"`
	AnalysisID    string  `json:"analysis_id"`
	StepNumber    int     `json:"step_number"`
	Name          string  `json:"name"`
	Content       string  `json:"content"`
	Confidence    float64 `json:"confidence"`
	NeedsMoreInfo bool    `json:"needs_more_info"`
}

// RoundRecord is one reasoning round.
type RoundRecord struct {
	ID               int64     `json:"id"`
	AnalysisID       string    `json:"analysis_id"`
	Round            int       `json:"round"`
	FetchedArtifacts string    `json:"fetched_artifacts"` // JSON array
	StepCount        int       `json:"step_count"`
	NeedsMoreInfo    bool      `json:"needs_more_info"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
}

// ArtifactRecord is one artifact fetched during a run, in fetch order.
type ArtifactRecord struct {
	ID         int64  `json:"id"`
	AnalysisID string `json:"analysis_id"`
	Position   int    `json:"position"`
	Name       string `json:"name"`
}

// AnalysisStore persists analysis runs.
type AnalysisStore interface {
	// SaveAnalysis creates or replaces an analysis record with its children.
	SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error

	// GetAnalysis retrieves an analysis by ID. Returns ErrNotFound when the
	// record does not exist.
	GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error)

	// ListAnalyses returns analyses newest first.
	ListAnalyses(ctx context.Context, limit, offset int) ([]*AnalysisRecord, error)

	// DeleteAnalysis removes an analysis and its children.
	DeleteAnalysis(ctx context.Context, id string) error
}

// Store is the persistence interface for the service.
type Store interface {
	AnalysisStore

	// Close releases database resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}
