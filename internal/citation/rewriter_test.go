package citation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/skychat-ai/skychat/internal/assistant"
)

type mockResolver struct {
	getFn func(ctx context.Context, fileID string) (assistant.File, error)
	calls int
}

func (m *mockResolver) GetFile(ctx context.Context, fileID string) (assistant.File, error) {
	m.calls++
	return m.getFn(ctx, fileID)
}

func namedFiles(names map[string]string) *mockResolver {
	return &mockResolver{
		getFn: func(_ context.Context, fileID string) (assistant.File, error) {
			name, ok := names[fileID]
			if !ok {
				return assistant.File{}, fmt.Errorf("no such file %s", fileID)
			}
			return assistant.File{ID: fileID, Filename: name}, nil
		},
	}
}

func TestRewrite_TwoFileCitations(t *testing.T) {
	resolver := namedFiles(map[string]string{
		"file_0": "faa-part-107.pdf",
		"file_1": "battery-manual.pdf",
	})
	r := NewRewriter(resolver)

	annotations := []assistant.Annotation{
		{Text: "B", FileCitation: &assistant.FileCitation{FileID: "file_0"}},
		{Text: "C", FileCitation: &assistant.FileCitation{FileID: "file_1"}},
	}
	got := r.Rewrite(context.Background(), "A B C", annotations)

	if !strings.HasPrefix(got, "A [0] [1]") {
		t.Errorf("markers not substituted in order: %q", got)
	}
	wantBlock := "\n\nCitations:\n[0] faa-part-107.pdf\n[1] battery-manual.pdf"
	if !strings.HasSuffix(got, wantBlock) {
		t.Errorf("citation block = %q, want suffix %q", got, wantBlock)
	}
}

func TestRewrite_NoAnnotations(t *testing.T) {
	r := NewRewriter(namedFiles(nil))

	const raw = "Nothing to cite here."
	if got := r.Rewrite(context.Background(), raw, nil); got != raw {
		t.Errorf("Rewrite = %q, want input unchanged", got)
	}
}

func TestRewrite_PlainAnnotationNoCitationList(t *testing.T) {
	resolver := namedFiles(nil)
	r := NewRewriter(resolver)

	annotations := []assistant.Annotation{{Text: "span"}}
	got := r.Rewrite(context.Background(), "a span b", annotations)

	if got != "a [0] b" {
		t.Errorf("Rewrite = %q, want %q", got, "a [0] b")
	}
	if resolver.calls != 0 {
		t.Errorf("resolver called %d times for a plain annotation, want 0", resolver.calls)
	}
}

func TestRewrite_LookupFailureFallsBackToFileID(t *testing.T) {
	r := NewRewriter(namedFiles(nil)) // every lookup fails

	annotations := []assistant.Annotation{
		{Text: "X", FileCitation: &assistant.FileCitation{FileID: "file_gone"}},
	}
	got := r.Rewrite(context.Background(), "see X", annotations)

	if !strings.Contains(got, "[0] file_gone") {
		t.Errorf("expected raw file ID fallback, got %q", got)
	}
}

func TestRewrite_IndicesFollowAnnotationOrder(t *testing.T) {
	resolver := namedFiles(map[string]string{
		"f1": "one.txt",
		"f2": "two.txt",
		"f3": "three.txt",
	})
	r := NewRewriter(resolver)

	annotations := []assistant.Annotation{
		{Text: "gamma", FileCitation: &assistant.FileCitation{FileID: "f3"}},
		{Text: "alpha", FileCitation: &assistant.FileCitation{FileID: "f1"}},
		{Text: "beta", FileCitation: &assistant.FileCitation{FileID: "f2"}},
	}
	got := r.Rewrite(context.Background(), "gamma alpha beta", annotations)

	if !strings.HasPrefix(got, "[0] [1] [2]") {
		t.Errorf("markers should follow annotation order, got %q", got)
	}
	wantBlock := "Citations:\n[0] three.txt\n[1] one.txt\n[2] two.txt"
	if !strings.Contains(got, wantBlock) {
		t.Errorf("citation entries out of order: %q", got)
	}
}
