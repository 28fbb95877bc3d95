// Package ingest uploads directories of documents into a hosted vector store
// in batches, with bounded retry per batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skychat-ai/skychat/internal/assistant"
)

// ErrInvalidInput is returned when the source directory does not exist, is
// not a directory, or contains no regular files.
var ErrInvalidInput = errors.New("invalid input")

const (
	defaultBatchSize = 5
	maxAttempts      = 3

	// Fixed pacing constants; a tuning point, not a contract.
	retryDelay = 2 * time.Second
	batchPause = 1 * time.Second

	pollInterval  = 1 * time.Second
	maxBatchPolls = 300

	uploadConcurrency = 4
)

// IndexClient is the slice of the hosted service the ingestor needs.
type IndexClient interface {
	UploadFile(ctx context.Context, filename string, r io.Reader) (assistant.File, error)
	CreateFileBatch(ctx context.Context, vectorStoreID string, fileIDs []string) (assistant.FileBatch, error)
	GetFileBatch(ctx context.Context, vectorStoreID, batchID string) (assistant.FileBatch, error)
}

// BatchResult reports the outcome of one ingestion batch. A batch that
// exhausted its retries carries the final error; it never aborts the run.
type BatchResult struct {
	Index    int
	Files    []string
	Attempts int
	Err      error
}

// Ingestor partitions a directory's files into batches and indexes each batch
// into a vector store, retrying failed batches up to a fixed cap.
type Ingestor struct {
	client IndexClient
	sleep  func(time.Duration)
	logger *slog.Logger
}

// New creates an Ingestor using the given client.
func New(client IndexClient) *Ingestor {
	return &Ingestor{
		client: client,
		sleep:  time.Sleep,
		logger: slog.Default(),
	}
}

// Ingest uploads all regular files directly under dir (non-recursive, in name
// order) into the vector store, batchSize files at a time. Each batch is
// attempted up to 3 times with a pause between attempts; a batch that fails
// all attempts is reported in its BatchResult and processing continues with
// the next batch. The returned error is non-nil only for invalid input.
func (in *Ingestor) Ingest(ctx context.Context, dir, vectorStoreID string, batchSize int) ([]BatchResult, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading directory %s: %v", ErrInvalidInput, dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no regular files in %s", ErrInvalidInput, dir)
	}

	var results []BatchResult
	for start := 0; start < len(paths); start += batchSize {
		end := min(start+batchSize, len(paths))
		batch := paths[start:end]
		index := start / batchSize

		result := BatchResult{Index: index, Files: batch}
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			result.Attempts = attempt
			err := in.uploadBatch(ctx, vectorStoreID, batch)
			if err == nil {
				result.Err = nil
				break
			}
			result.Err = err
			in.logger.Warn("batch upload failed",
				"batch", index, "attempt", attempt, "files", len(batch), "error", err)
			if attempt < maxAttempts {
				in.sleep(retryDelay)
			}
		}

		if result.Err != nil {
			in.logger.Error("batch abandoned after retries",
				"batch", index, "attempts", result.Attempts, "error", result.Err)
		} else {
			in.logger.Info("batch indexed", "batch", index, "files", len(batch))
		}
		results = append(results, result)

		in.sleep(batchPause)
	}

	return results, nil
}

// uploadBatch performs one attempt: open and extract every file, upload them
// concurrently, create the file batch, and wait for it to finish indexing.
// All file handles opened here are closed before returning.
func (in *Ingestor) uploadBatch(ctx context.Context, vectorStoreID string, paths []string) error {
	type opened struct {
		name string
		r    io.Reader
		f    *os.File
	}

	files := make([]opened, 0, len(paths))
	defer func() {
		for _, o := range files {
			o.f.Close()
		}
	}()

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		files = append(files, opened{name: filepath.Base(path), f: f})

		r, err := extractText(path, f)
		if err != nil {
			return fmt.Errorf("extracting text from %s: %w", path, err)
		}
		files[len(files)-1].r = r
	}

	fileIDs := make([]string, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, o := range files {
		g.Go(func() error {
			uploaded, err := in.client.UploadFile(gCtx, o.name, o.r)
			if err != nil {
				return fmt.Errorf("uploading %s: %w", o.name, err)
			}
			fileIDs[i] = uploaded.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	batch, err := in.client.CreateFileBatch(ctx, vectorStoreID, fileIDs)
	if err != nil {
		return fmt.Errorf("creating file batch: %w", err)
	}

	for polls := 0; !batch.Done(); polls++ {
		if polls >= maxBatchPolls {
			return fmt.Errorf("file batch %s still indexing after %d polls", batch.ID, polls)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		in.sleep(pollInterval)
		batch, err = in.client.GetFileBatch(ctx, vectorStoreID, batch.ID)
		if err != nil {
			return fmt.Errorf("polling file batch: %w", err)
		}
	}

	if batch.Status != "completed" {
		return fmt.Errorf("file batch %s finished with status %s (%d/%d files indexed)",
			batch.ID, batch.Status, batch.FileCounts.Completed, batch.FileCounts.Total)
	}
	return nil
}
