// Package session drives one multi-turn conversation against a hosted
// assistant: it owns the thread, submits user turns, polls runs to a
// terminal state, and post-processes replies.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skychat-ai/skychat/internal/assistant"
)

// ErrNoReply is returned when a run produced no assistant-role message.
// Callers substitute a user-visible fallback rather than failing.
var ErrNoReply = errors.New("no assistant reply")

// ErrTurnInFlight is returned when a turn is submitted while a previous
// turn on the same session is still being processed.
var ErrTurnInFlight = errors.New("a turn is already in flight")

const (
	defaultPollInterval = 1 * time.Second
	defaultPollBudget   = 30 * time.Second
)

// ThreadClient is the slice of the hosted service a session needs.
type ThreadClient interface {
	CreateThread(ctx context.Context) (assistant.Thread, error)
	CreateMessage(ctx context.Context, threadID, role, content string) (assistant.Message, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (assistant.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (assistant.Run, error)
	ListMessages(ctx context.Context, threadID, runID string) ([]assistant.Message, error)
}

// Rewriter post-processes a raw reply's annotations.
type Rewriter interface {
	Rewrite(ctx context.Context, raw string, annotations []assistant.Annotation) string
}

// Prefixer supplies the glossary context prepended to each user turn.
type Prefixer interface {
	Prefix() string
}

// Turn is one entry in the session's local transcript.
type Turn struct {
	Role    string
	Content string
}

// Session owns a single conversation thread. The thread is created lazily on
// the first turn and its identifier is cached for the session's lifetime.
// Turns are strictly sequential: a second SubmitTurn while one is pending
// fails with ErrTurnInFlight instead of corrupting the thread.
type Session struct {
	client      ThreadClient
	rewriter    Rewriter
	glossary    Prefixer
	assistantID string

	pollInterval time.Duration
	pollBudget   time.Duration
	sleep        func(time.Duration)
	logger       *slog.Logger

	mu       sync.Mutex
	threadID string
	turns    []Turn
}

// New creates a Session for the given assistant. pollInterval and pollBudget
// control the run polling loop; values <= 0 fall back to 1s and 30s.
func New(client ThreadClient, rewriter Rewriter, glossary Prefixer, assistantID string, pollInterval, pollBudget time.Duration) *Session {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if pollBudget <= 0 {
		pollBudget = defaultPollBudget
	}
	return &Session{
		client:       client,
		rewriter:     rewriter,
		glossary:     glossary,
		assistantID:  assistantID,
		pollInterval: pollInterval,
		pollBudget:   pollBudget,
		sleep:        time.Sleep,
		logger:       slog.Default(),
	}
}

// ThreadID returns the cached thread identifier, empty before the first turn.
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// Turns returns a copy of the session's local transcript.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// SubmitTurn sends one user turn through the full pipeline: glossary prefix,
// thread creation (first turn only), message append, run, poll-to-terminal,
// reply extraction, and citation rewriting. A run that fails to reach a
// terminal state within the poll budget is not an error; extraction is still
// attempted and may find no reply. No reply yields ErrNoReply.
func (s *Session) SubmitTurn(ctx context.Context, userText string) (string, error) {
	if !s.mu.TryLock() {
		return "", ErrTurnInFlight
	}
	defer s.mu.Unlock()

	composed := s.glossary.Prefix() + userText

	if s.threadID == "" {
		thread, err := s.client.CreateThread(ctx)
		if err != nil {
			return "", fmt.Errorf("creating thread: %w", err)
		}
		s.threadID = thread.ID
	}

	if _, err := s.client.CreateMessage(ctx, s.threadID, "user", composed); err != nil {
		return "", fmt.Errorf("appending user message: %w", err)
	}
	s.turns = append(s.turns, Turn{Role: "user", Content: userText})

	run, err := s.client.CreateRun(ctx, s.threadID, s.assistantID)
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}

	run, err = s.pollRun(ctx, run)
	if err != nil {
		return "", err
	}

	reply, err := s.extractReply(ctx, run.ID)
	if err != nil {
		return "", err
	}
	s.turns = append(s.turns, Turn{Role: "assistant", Content: reply})
	return reply, nil
}

// pollRun re-checks the run status every pollInterval until it reaches a
// terminal state or the poll budget is spent. Timeout is logged and the last
// observed run returned; the caller proceeds to extraction either way.
func (s *Session) pollRun(ctx context.Context, run assistant.Run) (assistant.Run, error) {
	elapsed := time.Duration(0)
	for !run.Terminal() {
		if elapsed >= s.pollBudget {
			s.logger.Warn("run did not reach a terminal state within the poll budget",
				"run", run.ID, "status", run.Status, "budget", s.pollBudget)
			return run, nil
		}
		if err := ctx.Err(); err != nil {
			return run, err
		}

		s.sleep(s.pollInterval)
		elapsed += s.pollInterval

		updated, err := s.client.GetRun(ctx, s.threadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("polling run %s: %w", run.ID, err)
		}
		run = updated
	}
	return run, nil
}

// extractReply lists the run's messages and returns the rewritten text of the
// first assistant-role message, or ErrNoReply when there is none.
func (s *Session) extractReply(ctx context.Context, runID string) (string, error) {
	msgs, err := s.client.ListMessages(ctx, s.threadID, runID)
	if err != nil {
		return "", fmt.Errorf("listing run messages: %w", err)
	}

	for _, m := range msgs {
		if m.Role != "assistant" {
			continue
		}
		text := m.TextContent()
		if text == nil {
			continue
		}
		return s.rewriter.Rewrite(ctx, text.Value, text.Annotations), nil
	}
	return "", ErrNoReply
}
