package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, sizeLimit int) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir, sizeLimit, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store, dir
}

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact %s: %v", name, err)
	}
}

func TestReadPlainArtifact(t *testing.T) {
	store, dir := newTestStore(t, 0)
	writeArtifact(t, dir, "Error", "Vertex failed: out of memory in stage SV3")

	doc, err := store.Read(context.Background(), "Error")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Name != "Error" {
		t.Errorf("expected name Error, got %q", doc.Name)
	}
	if doc.Content != "Vertex failed: out of memory in stage SV3" {
		t.Errorf("unexpected content: %q", doc.Content)
	}
	if doc.Truncated {
		t.Error("small artifact should not be truncated")
	}
}

func TestReadMissingArtifact(t *testing.T) {
	store, _ := newTestStore(t, 0)

	_, err := store.Read(context.Background(), "JobStatistics.xml")
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if !IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestReadRejectsPathTraversal(t *testing.T) {
	store, _ := newTestStore(t, 0)

	for _, name := range []string{"../etc/passwd", "sub/file.txt", "", ".hidden"} {
		if _, err := store.Read(context.Background(), name); err == nil {
			t.Errorf("expected error for name %q", name)
		} else if IsNotFound(err) {
			t.Errorf("invalid name %q should not report not-found", name)
		}
	}
}

func TestReadTruncatesLargeArtifact(t *testing.T) {
	store, dir := newTestStore(t, 2048)
	writeArtifact(t, dir, "request.script", strings.Repeat("SELECT * FROM input;\n", 500))

	doc, err := store.Read(context.Background(), "request.script")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !doc.Truncated {
		t.Error("expected truncation")
	}
	if !strings.HasSuffix(doc.Content, "... (truncated)") {
		t.Error("expected truncation marker suffix")
	}
	if len(doc.Content) > 2048+len("\n... (truncated)") {
		t.Errorf("content exceeds size limit: %d bytes", len(doc.Content))
	}
	if doc.Size != int64(500*len("SELECT * FROM input;\n")) {
		t.Errorf("Size should report original bytes, got %d", doc.Size)
	}
}

func TestList(t *testing.T) {
	store, dir := newTestStore(t, 0)
	writeArtifact(t, dir, "request.script", "script")
	writeArtifact(t, dir, "Error", "error text")
	writeArtifact(t, dir, ".hidden", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	names, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"Error", "request.script"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}
}

func TestReadCancelledContext(t *testing.T) {
	store, dir := newTestStore(t, 0)
	writeArtifact(t, dir, "Error", "text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Read(ctx, "Error"); err == nil {
		t.Error("expected context error")
	}
}

func TestReadFallsBackOnMalformedStructuredArtifact(t *testing.T) {
	store, dir := newTestStore(t, 0)
	writeArtifact(t, dir, "JobStatistics.xml", "not xml at all <<<")

	doc, err := store.Read(context.Background(), "JobStatistics.xml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Content != "not xml at all <<<" {
		t.Errorf("expected raw fallback content, got %q", doc.Content)
	}
}
