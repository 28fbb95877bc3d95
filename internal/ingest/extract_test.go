package ingest

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTemp(t *testing.T, name, content string) (string, *os.File) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", name, err)
	}
	t.Cleanup(func() { f.Close() })
	return path, f
}

func TestExtractText_Passthrough(t *testing.T) {
	path, f := openTemp(t, "notes.txt", "plain notes")

	r, err := extractText(path, f)
	if err != nil {
		t.Fatalf("extractText: %v", err)
	}
	data, _ := io.ReadAll(r)
	if string(data) != "plain notes" {
		t.Errorf("got %q, want passthrough content", data)
	}
}

func TestExtractText_HTML(t *testing.T) {
	const doc = `<html><head><style>body{color:red}</style><script>var x=1;</script></head>` +
		`<body><h1>Preflight</h1><p>Check propellers before arming.</p></body></html>`
	path, f := openTemp(t, "checklist.html", doc)

	r, err := extractText(path, f)
	if err != nil {
		t.Fatalf("extractText: %v", err)
	}
	data, _ := io.ReadAll(r)
	text := string(data)

	if !strings.Contains(text, "Preflight") || !strings.Contains(text, "Check propellers before arming.") {
		t.Errorf("text content missing:\n%s", text)
	}
	if strings.Contains(text, "var x=1") || strings.Contains(text, "color:red") {
		t.Errorf("script/style leaked into text:\n%s", text)
	}
}

func TestExtractText_BadPDF(t *testing.T) {
	path, f := openTemp(t, "broken.pdf", "not a pdf at all")

	if _, err := extractText(path, f); err == nil {
		t.Error("expected error for malformed pdf")
	}
}
