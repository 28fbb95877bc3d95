// Package search provides stateless one-shot query helpers: an open web
// search and a vector-store-scoped document search.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/skychat-ai/skychat/internal/assistant"
)

// ErrUnknownDomain is returned for a domain tag outside the configured set.
var ErrUnknownDomain = errors.New("unknown domain")

const webInstructions = "You are a research assistant for UAV and drone operations. " +
	"Prioritize factual, current results relevant to unmanned aircraft: regulations, " +
	"airspace, hardware, weather minima, and flight operations. Answer concisely and " +
	"cite sources where available."

// Responder is the slice of the hosted service the helpers need.
type Responder interface {
	Respond(ctx context.Context, req assistant.RespondRequest) (string, error)
}

// Helper issues single-shot tool-augmented completions. It is stateless and
// safe for concurrent use.
type Helper struct {
	svc     Responder
	model   string
	domains map[string]string // domain tag -> vector store ID
}

// NewHelper creates a Helper. domains maps each recognized domain tag to the
// vector store searched for that tag.
func NewHelper(svc Responder, model string, domains map[string]string) *Helper {
	return &Helper{svc: svc, model: model, domains: domains}
}

// Domains returns the recognized domain tags in sorted order.
func (h *Helper) Domains() []string {
	tags := make([]string, 0, len(h.domains))
	for tag := range h.domains {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Web runs one open-web-search-augmented completion and returns the output
// text verbatim.
func (h *Helper) Web(ctx context.Context, query string) (string, error) {
	out, err := h.svc.Respond(ctx, assistant.RespondRequest{
		Model:        h.model,
		Instructions: webInstructions,
		Input:        query,
		Tools:        []assistant.RespondTool{{Type: "web_search"}},
	})
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	return out, nil
}

// Scoped runs one completion grounded in the vector store mapped to the
// domain tag. An unrecognized tag fails before any remote call.
func (h *Helper) Scoped(ctx context.Context, query, domain string) (string, error) {
	storeID, ok := h.domains[domain]
	if !ok {
		return "", fmt.Errorf("%w: %q (known: %v)", ErrUnknownDomain, domain, h.Domains())
	}

	out, err := h.svc.Respond(ctx, assistant.RespondRequest{
		Model: h.model,
		Input: query,
		Tools: []assistant.RespondTool{{
			Type:           "file_search",
			VectorStoreIDs: []string{storeID},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("scoped search (%s): %w", domain, err)
	}
	return out, nil
}
