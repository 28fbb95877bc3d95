package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/skychat-ai/skychat/internal/api"
	"github.com/skychat-ai/skychat/internal/assistant"
	"github.com/skychat-ai/skychat/internal/citation"
	"github.com/skychat-ai/skychat/internal/config"
	"github.com/skychat-ai/skychat/internal/glossary"
	"github.com/skychat-ai/skychat/internal/ingest"
	"github.com/skychat-ai/skychat/internal/search"
	"github.com/skychat-ai/skychat/internal/session"
	"github.com/skychat-ai/skychat/internal/transcript"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the skychat server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running skychat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show skychat server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "skychat.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// serverToken returns the configured bearer token, generating an ephemeral
// one when none is set.
func serverToken(cfg config.Config) (string, error) {
	if cfg.Server.Token != "" {
		return cfg.Server.Token, nil
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating server token: %w", err)
	}
	token := hex.EncodeToString(buf)
	slog.Warn("no server token configured, generated an ephemeral one", "token", token)
	return token, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "skychat version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if cfg.Assistant.AssistantID == "" {
		return fmt.Errorf("missing required config: assistant ID (set SKYCHAT_ASSISTANT_ID or assistant.id)")
	}

	token, err := serverToken(cfg)
	if err != nil {
		return err
	}

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("skychat is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("skychat is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the transcript store.
	store, err := transcript.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening transcript store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing transcript store: %v\n", err)
		}
	}()

	// Assistant service client and the pieces built on it.
	client := assistant.NewClientWithBaseURL(cfg.Assistant.APIKey, cfg.Assistant.BaseURL)
	gloss := glossary.Load(cfg.Glossary.Path)
	if gloss.Len() > 0 {
		slog.Info("glossary loaded", "path", cfg.Glossary.Path, "terms", gloss.Len())
	}
	rewriter := citation.NewRewriter(client)
	searcher := search.NewHelper(client, cfg.Assistant.Model, cfg.Search.DomainStores())
	newRunner := func() api.TurnRunner {
		return session.New(client, rewriter, gloss, cfg.Assistant.AssistantID, 0, 0)
	}

	handler := api.NewHandler(api.Deps{
		Store:     store,
		NewRunner: newRunner,
		Search:    searcher,
		Token:     token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpDeps := api.MCPDeps{
		Runner: newRunner(),
		Search: searcher,
	}
	if cfg.Assistant.StoreID != "" {
		mcpDeps.Ingest = ingest.New(client)
		mcpDeps.StoreID = cfg.Assistant.StoreID
	}
	mcpSrv := api.NewMCPServer(mcpDeps)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "skychat listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("skychat is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop skychat (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to skychat (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Assistant", "%s", cfg.Assistant.AssistantID)
	printStatus("Model", "%s", cfg.Assistant.Model)
	if cfg.Assistant.StoreID != "" {
		printStatus("Vector store", "%s", cfg.Assistant.StoreID)
	}
	if domains := cfg.Search.DomainStores(); len(domains) > 0 {
		printStatus("Search domains", "%d configured", len(domains))
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
