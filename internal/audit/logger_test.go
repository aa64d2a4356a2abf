package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (Logger, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &Config{
		AuditLogPath: filepath.Join(dir, "audit.log"),
		AppLogPath:   filepath.Join(dir, "app.log"),
		MaxSize:      1,
		MaxBackups:   1,
		MaxAge:       1,
		LogLevel:     "info",
	}
	l, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, cfg.AuditLogPath
}

func readAuditLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestLogAnalysisLifecycle(t *testing.T) {
	l, path := newTestLogger(t)
	ctx := context.Background()

	if err := l.LogAnalysisStarted(ctx, "run-1"); err != nil {
		t.Fatalf("LogAnalysisStarted: %v", err)
	}
	if err := l.LogArtifactFetched(ctx, "run-1", "JobStatistics.xml"); err != nil {
		t.Fatalf("LogArtifactFetched: %v", err)
	}
	if err := l.LogAnalysisCompleted(ctx, "run-1", "DATA_SKEW", 3*time.Second); err != nil {
		t.Fatalf("LogAnalysisCompleted: %v", err)
	}
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	lines := readAuditLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("expected 3 audit lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], string(EventAnalysisStarted)) {
		t.Errorf("first line should be analysis.started: %s", lines[0])
	}
	if !strings.Contains(lines[1], "JobStatistics.xml") {
		t.Errorf("second line should reference the artifact: %s", lines[1])
	}
	if !strings.Contains(lines[2], "DATA_SKEW") {
		t.Errorf("third line should carry the problem type: %s", lines[2])
	}
}

func TestLogAnalysisFailedCarriesError(t *testing.T) {
	l, path := newTestLogger(t)

	if err := l.LogAnalysisFailed(context.Background(), "run-2", errors.New("completion service unavailable")); err != nil {
		t.Fatalf("LogAnalysisFailed: %v", err)
	}
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	lines := readAuditLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected 1 audit line, got %d", len(lines))
	}

	// The message field is itself a JSON-encoded event.
	var outer map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &outer); err != nil {
		t.Fatalf("parse audit line: %v", err)
	}
	msg, _ := outer["message"].(string)
	var event Event
	if err := json.Unmarshal([]byte(msg), &event); err != nil {
		t.Fatalf("parse embedded event: %v", err)
	}
	if event.Result != ResultFailure {
		t.Errorf("expected failure result, got %s", event.Result)
	}
	if !strings.Contains(event.Error, "completion service unavailable") {
		t.Errorf("expected error message in event, got %q", event.Error)
	}
}

func TestEventBuilder(t *testing.T) {
	event := NewEvent(EventArtifactMissing).
		WithCorrelationID("run-3").
		WithResource("profile", "artifact").
		WithResult(ResultFailure).
		WithMetadata("round", 2)

	if event.CorrelationID != "run-3" {
		t.Errorf("unexpected correlation id %q", event.CorrelationID)
	}
	if event.Resource != "profile" || event.ResourceType != "artifact" {
		t.Errorf("unexpected resource %q/%q", event.Resource, event.ResourceType)
	}
	if event.Metadata["round"] != 2 {
		t.Errorf("unexpected metadata: %v", event.Metadata)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}
