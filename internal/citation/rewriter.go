// Package citation rewrites raw reply annotations into bracketed numeric
// markers and an appended citation list.
package citation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skychat-ai/skychat/internal/assistant"
)

// FileResolver looks up metadata for a cited file.
type FileResolver interface {
	GetFile(ctx context.Context, fileID string) (assistant.File, error)
}

// Rewriter replaces annotation spans with [i] markers, numbering annotations
// in the order they appear, and appends a citation list naming each cited
// file. When a filename lookup fails (file deleted remotely) the raw file ID
// is surfaced instead; a lookup failure never fails the rewrite.
type Rewriter struct {
	files  FileResolver
	logger *slog.Logger
}

// NewRewriter creates a Rewriter resolving filenames through files.
func NewRewriter(files FileResolver) *Rewriter {
	return &Rewriter{
		files:  files,
		logger: slog.Default(),
	}
}

// Rewrite post-processes raw reply text. With no annotations the text is
// returned unchanged.
func (r *Rewriter) Rewrite(ctx context.Context, raw string, annotations []assistant.Annotation) string {
	if len(annotations) == 0 {
		return raw
	}

	var entries []string
	for i, a := range annotations {
		marker := fmt.Sprintf("[%d]", i)
		if a.Text != "" {
			raw = strings.ReplaceAll(raw, a.Text, marker)
		}
		if a.FileCitation == nil {
			continue
		}

		name := a.FileCitation.FileID
		f, err := r.files.GetFile(ctx, a.FileCitation.FileID)
		if err != nil {
			r.logger.Warn("could not resolve cited file, falling back to file ID",
				"file_id", a.FileCitation.FileID, "error", err)
		} else {
			name = f.Filename
		}
		entries = append(entries, fmt.Sprintf("%s %s", marker, name))
	}

	if len(entries) == 0 {
		return raw
	}
	return raw + "\n\nCitations:\n" + strings.Join(entries, "\n")
}
