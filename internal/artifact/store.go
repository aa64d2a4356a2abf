package artifact

import (
	"context"
	"errors"
	"fmt"
)

// Package artifact provides access to job output files used as diagnosis
// evidence.
//
// Responsibilities:
//   - Read individual artifacts by name from a job output directory
//   - List the artifacts available for a job
//   - Cap artifact content at a configurable size so prompts stay bounded
//   - Normalize known structured artifacts (XML/JSON) into readable summaries
//     before their content enters the reasoning context
//
// A missing artifact is an expected condition, not a failure: jobs emit
// different subsets of output files depending on how far they got. Callers
// detect it with IsNotFound and continue.

// Document is the content of a single job output artifact.
type Document struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	Size      int64  `json:"size"`      // original size in bytes, before truncation
	Truncated bool   `json:"truncated"` // true when content was cut at the size limit
}

// Store is the evidence retrieval interface consumed by the analysis engine.
type Store interface {
	// Read returns the named artifact. A NotFoundError is returned when the
	// artifact does not exist for this job.
	Read(ctx context.Context, name string) (*Document, error)

	// List returns the names of all artifacts available for this job.
	List(ctx context.Context) ([]string, error)
}

// NotFoundError indicates a requested artifact does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact %q not found", e.Name)
}

// IsNotFound reports whether err indicates a missing artifact.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
