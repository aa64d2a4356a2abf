package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/batchlens/batchlens-ai/internal/metrics"
)

const (
	// DefaultSizeLimit caps how much of an artifact enters the reasoning
	// context. Large artifacts (statistics dumps, generated code) are
	// truncated, not rejected.
	DefaultSizeLimit = 10000
)

// FileStore reads artifacts from a job output directory on the local
// filesystem.
type FileStore struct {
	root      string
	sizeLimit int
	parsers   map[string]Parser
	logger    *zap.Logger
}

// NewFileStore creates a store over the given job output directory.
// A sizeLimit of 0 selects DefaultSizeLimit.
func NewFileStore(root string, sizeLimit int, logger *zap.Logger) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact root directory is required")
	}
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileStore{
		root:      root,
		sizeLimit: sizeLimit,
		parsers:   defaultParsers(),
		logger:    logger,
	}, nil
}

// Read returns the named artifact, normalized and truncated to the size limit.
func (s *FileStore) Read(ctx context.Context, name string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Artifact names are flat file names; reject anything path-like.
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		metrics.ArtifactFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("invalid artifact name %q", name)
	}

	path := filepath.Join(s.root, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.ArtifactFetches.WithLabelValues("not_found").Inc()
			return nil, &NotFoundError{Name: name}
		}
		metrics.ArtifactFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read artifact %q: %w", name, err)
	}

	content := s.normalize(name, raw)

	truncated := false
	if len(content) > s.sizeLimit {
		content = content[:s.sizeLimit] + "\n... (truncated)"
		truncated = true
	}

	metrics.ArtifactFetches.WithLabelValues("ok").Inc()
	metrics.ArtifactBytesRead.Add(float64(len(content)))

	s.logger.Debug("artifact read",
		zap.String("artifact", name),
		zap.Int64("size", int64(len(raw))),
		zap.Bool("truncated", truncated),
	)

	return &Document{
		Name:      name,
		Content:   content,
		Size:      int64(len(raw)),
		Truncated: truncated,
	}, nil
}

// List returns the names of all regular files in the job output directory,
// sorted for deterministic ordering.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact root %q does not exist", s.root)
		}
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// normalize runs the registered parser for known artifacts; unknown artifacts
// pass through as raw text. Parser failures fall back to the raw content so a
// malformed file still contributes evidence.
func (s *FileStore) normalize(name string, raw []byte) string {
	parser, ok := s.parsers[name]
	if !ok {
		return string(raw)
	}

	parsed, err := parser(name, raw)
	if err != nil {
		s.logger.Warn("artifact parse failed, using raw content",
			zap.String("artifact", name),
			zap.Error(err),
		)
		return string(raw)
	}
	return parsed
}
