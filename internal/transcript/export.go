package transcript

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

var exportHeader = []string{"timestamp", "session_id", "turn_id", "role", "content", "rating", "feedback"}

// Exporter appends transcript turns to a CSV file. Each flush writes only the
// rows added since the previous flush for the same file, tracked by a cursor
// in the store.
type Exporter struct {
	store  *Store
	logger *slog.Logger
}

func NewExporter(store *Store) *Exporter {
	return &Exporter{store: store, logger: slog.Default()}
}

// Flush appends all turns recorded since the last flush to the CSV file at
// path, creating it with a header row if needed. It returns the number of
// rows written.
func (e *Exporter) Flush(path string) (int, error) {
	after, err := e.store.ExportCursor(path)
	if err != nil {
		return 0, fmt.Errorf("reading export cursor: %w", err)
	}

	turns, last, err := e.store.TurnsAfter(after)
	if err != nil {
		return 0, fmt.Errorf("reading new turns: %w", err)
	}
	if len(turns) == 0 {
		return 0, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening export file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("checking export file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(exportHeader); err != nil {
			return 0, fmt.Errorf("writing header: %w", err)
		}
	}

	for _, t := range turns {
		rating := ""
		if t.Rating > 0 {
			rating = strconv.Itoa(t.Rating)
		}
		row := []string{
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.SessionID,
			t.ID,
			t.Role,
			t.Content,
			rating,
			t.Feedback,
		}
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("writing row for turn %s: %w", t.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flushing export file: %w", err)
	}

	if err := e.store.SetExportCursor(path, last); err != nil {
		return 0, fmt.Errorf("saving export cursor: %w", err)
	}

	e.logger.Info("exported transcript rows", "path", path, "rows", len(turns))
	return len(turns), nil
}
