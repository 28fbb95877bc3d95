package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skychat-ai/skychat/internal/assistant"
)

type mockIndexClient struct {
	mu       sync.Mutex
	uploads  []string   // filenames, in upload call order
	batches  [][]string // file IDs per CreateFileBatch call
	uploadFn func(filename string) (assistant.File, error)
	batchFn  func(call int, fileIDs []string) (assistant.FileBatch, error)
	getFn    func(batchID string) (assistant.FileBatch, error)
}

func (m *mockIndexClient) UploadFile(_ context.Context, filename string, r io.Reader) (assistant.File, error) {
	io.Copy(io.Discard, r)
	m.mu.Lock()
	m.uploads = append(m.uploads, filename)
	m.mu.Unlock()
	if m.uploadFn != nil {
		return m.uploadFn(filename)
	}
	return assistant.File{ID: "id-" + filename, Filename: filename}, nil
}

func (m *mockIndexClient) CreateFileBatch(_ context.Context, _ string, fileIDs []string) (assistant.FileBatch, error) {
	m.mu.Lock()
	m.batches = append(m.batches, fileIDs)
	call := len(m.batches)
	m.mu.Unlock()
	if m.batchFn != nil {
		return m.batchFn(call, fileIDs)
	}
	return assistant.FileBatch{ID: fmt.Sprintf("batch_%d", call), Status: "completed"}, nil
}

func (m *mockIndexClient) GetFileBatch(_ context.Context, _ string, batchID string) (assistant.FileBatch, error) {
	if m.getFn != nil {
		return m.getFn(batchID)
	}
	return assistant.FileBatch{ID: batchID, Status: "completed"}, nil
}

// newTestIngestor wires an Ingestor whose sleeps are recorded, not taken.
func newTestIngestor(client IndexClient) (*Ingestor, *[]time.Duration) {
	in := New(client)
	var slept []time.Duration
	in.sleep = func(d time.Duration) { slept = append(slept, d) }
	return in, &slept
}

func writeFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("content of "+n), 0o644); err != nil {
			t.Fatalf("writing %s: %v", n, err)
		}
	}
	return dir
}

func TestIngest_SingleBatch(t *testing.T) {
	dir := writeFiles(t, "a.txt", "b.txt", "c.txt")
	client := &mockIndexClient{}
	in, _ := newTestIngestor(client)

	results, err := in.Ingest(context.Background(), dir, "vs_1", 5)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d batch results, want 1", len(results))
	}
	if len(client.batches) != 1 {
		t.Fatalf("issued %d batch calls, want 1", len(client.batches))
	}
	if results[0].Err != nil || results[0].Attempts != 1 {
		t.Errorf("result = %+v, want success on first attempt", results[0])
	}
}

func TestIngest_BatchPartitioning(t *testing.T) {
	names := []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"}
	dir := writeFiles(t, names...)
	client := &mockIndexClient{}
	in, _ := newTestIngestor(client)

	results, err := in.Ingest(context.Background(), dir, "vs_1", 2)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// ceil(5/2) = 3 batches, in file order.
	if len(results) != 3 || len(client.batches) != 3 {
		t.Fatalf("got %d results and %d batch calls, want 3 and 3", len(results), len(client.batches))
	}
	wantBatches := [][]string{{"a.txt", "b.txt"}, {"c.txt", "d.txt"}, {"e.txt"}}
	for i, want := range wantBatches {
		got := results[i].Files
		if len(got) != len(want) {
			t.Fatalf("batch %d has %d files, want %d", i, len(got), len(want))
		}
		for j, w := range want {
			if filepath.Base(got[j]) != w {
				t.Errorf("batch %d file %d = %s, want %s", i, j, filepath.Base(got[j]), w)
			}
		}
	}

	// Across all batches: every file uploaded exactly once.
	uploaded := append([]string(nil), client.uploads...)
	sort.Strings(uploaded)
	if strings.Join(uploaded, ",") != strings.Join(names, ",") {
		t.Errorf("uploads = %v, want each of %v exactly once", uploaded, names)
	}
}

func TestIngest_FailedBatchDoesNotBlockNext(t *testing.T) {
	dir := writeFiles(t, "a.txt", "b.txt", "c.txt")
	client := &mockIndexClient{
		batchFn: func(call int, fileIDs []string) (assistant.FileBatch, error) {
			// First batch (2 files) fails on all attempts; second succeeds.
			if len(fileIDs) == 2 {
				return assistant.FileBatch{}, fmt.Errorf("remote hiccup %d", call)
			}
			return assistant.FileBatch{ID: "batch_ok", Status: "completed"}, nil
		},
	}
	in, slept := newTestIngestor(client)

	results, err := in.Ingest(context.Background(), dir, "vs_1", 2)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Err == nil || results[0].Attempts != 3 {
		t.Errorf("batch 0 = %+v, want 3 failed attempts", results[0])
	}
	if results[1].Err != nil {
		t.Errorf("batch 1 failed: %v", results[1].Err)
	}

	// Two retry delays for batch 0, one inter-batch pause per batch.
	var retries, pauses int
	for _, d := range *slept {
		switch d {
		case retryDelay:
			retries++
		case batchPause:
			pauses++
		}
	}
	if retries != 2 {
		t.Errorf("slept %d retry delays, want 2", retries)
	}
	if pauses != 2 {
		t.Errorf("slept %d batch pauses, want 2", pauses)
	}

	// The failed batch's files were re-uploaded on every attempt.
	if len(client.uploads) != 2*3+1 {
		t.Errorf("upload calls = %d, want 7 (2 files x 3 attempts + 1)", len(client.uploads))
	}
}

func TestIngest_PollsBatchToCompletion(t *testing.T) {
	dir := writeFiles(t, "a.txt")
	polls := 0
	client := &mockIndexClient{
		batchFn: func(_ int, _ []string) (assistant.FileBatch, error) {
			return assistant.FileBatch{ID: "batch_1", Status: "in_progress"}, nil
		},
		getFn: func(batchID string) (assistant.FileBatch, error) {
			polls++
			if polls < 3 {
				return assistant.FileBatch{ID: batchID, Status: "in_progress"}, nil
			}
			return assistant.FileBatch{ID: batchID, Status: "completed"}, nil
		},
	}
	in, _ := newTestIngestor(client)

	results, err := in.Ingest(context.Background(), dir, "vs_1", 5)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if results[0].Err != nil {
		t.Errorf("batch failed: %v", results[0].Err)
	}
	if polls != 3 {
		t.Errorf("polled %d times, want 3", polls)
	}
}

func TestIngest_FailedIndexingReported(t *testing.T) {
	dir := writeFiles(t, "a.txt")
	client := &mockIndexClient{
		batchFn: func(_ int, _ []string) (assistant.FileBatch, error) {
			return assistant.FileBatch{ID: "batch_1", Status: "failed",
				FileCounts: assistant.FileCounts{Failed: 1, Total: 1}}, nil
		},
	}
	in, _ := newTestIngestor(client)

	results, err := in.Ingest(context.Background(), dir, "vs_1", 5)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if results[0].Err == nil {
		t.Error("expected error for failed batch status")
	}
}

func TestIngest_MissingDirectory(t *testing.T) {
	in, _ := newTestIngestor(&mockIndexClient{})
	_, err := in.Ingest(context.Background(), filepath.Join(t.TempDir(), "nope"), "vs_1", 5)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestIngest_EmptyDirectory(t *testing.T) {
	in, _ := newTestIngestor(&mockIndexClient{})
	_, err := in.Ingest(context.Background(), t.TempDir(), "vs_1", 5)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestIngest_SkipsSubdirectories(t *testing.T) {
	dir := writeFiles(t, "a.txt")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "b.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write nested: %v", err)
	}

	client := &mockIndexClient{}
	in, _ := newTestIngestor(client)
	if _, err := in.Ingest(context.Background(), dir, "vs_1", 5); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(client.uploads) != 1 || client.uploads[0] != "a.txt" {
		t.Errorf("uploads = %v, want [a.txt] only", client.uploads)
	}
}
