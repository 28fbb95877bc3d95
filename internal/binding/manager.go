// Package binding associates vector stores with an assistant configuration.
package binding

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/skychat-ai/skychat/internal/assistant"
)

// AssistantService is the slice of the hosted service the manager needs.
type AssistantService interface {
	GetAssistant(ctx context.Context, id string) (assistant.Assistant, error)
	UpdateAssistantVectorStores(ctx context.Context, id string, storeIDs []string) (assistant.Assistant, error)
}

// Manager binds vector stores to assistants idempotently: binding an already
// bound store performs no remote write.
type Manager struct {
	svc              AssistantService
	defaultAssistant string
	defaultStore     string
	logger           *slog.Logger
}

// NewManager creates a Manager. The default identifiers are used when Bind is
// called with empty arguments.
func NewManager(svc AssistantService, defaultAssistant, defaultStore string) *Manager {
	return &Manager{
		svc:              svc,
		defaultAssistant: defaultAssistant,
		defaultStore:     defaultStore,
		logger:           slog.Default(),
	}
}

// Bind ensures storeID is in assistantID's bound vector store list. Empty
// identifiers default to the configured ones. The returned bool reports
// whether a remote write happened; calling Bind twice with the same arguments
// leaves the same remote state as calling it once.
func (m *Manager) Bind(ctx context.Context, assistantID, storeID string) (assistant.Assistant, bool, error) {
	if assistantID == "" {
		assistantID = m.defaultAssistant
	}
	if storeID == "" {
		storeID = m.defaultStore
	}

	a, err := m.svc.GetAssistant(ctx, assistantID)
	if err != nil {
		return assistant.Assistant{}, false, fmt.Errorf("fetching assistant: %w", err)
	}

	bound := a.VectorStoreIDs()
	if slices.Contains(bound, storeID) {
		m.logger.Info("vector store already bound", "assistant", assistantID, "store", storeID)
		return a, false, nil
	}

	updated, err := m.svc.UpdateAssistantVectorStores(ctx, assistantID, append(slices.Clone(bound), storeID))
	if err != nil {
		return assistant.Assistant{}, false, fmt.Errorf("updating assistant binding: %w", err)
	}

	m.logger.Info("vector store bound", "assistant", assistantID, "store", storeID)
	return updated, true, nil
}
