package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// extractText returns a reader over the uploadable content of the file.
// PDFs and HTML documents are converted to plain text so the retrieval index
// works from clean text; everything else is uploaded as-is.
func extractText(path string, f *os.File) (io.Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfText(f)
	case ".html", ".htm":
		return htmlText(f)
	default:
		return f, nil
	}
}

func pdfText(f *os.File) (io.Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parsing pdf: %w", err)
	}
	text, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting pdf text: %w", err)
	}
	return text, nil
}

func htmlText(f *os.File) (io.Reader, error) {
	root, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.NewReader(sb.String()), nil
}
