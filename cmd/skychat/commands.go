package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skychat-ai/skychat/internal/assistant"
	"github.com/skychat-ai/skychat/internal/binding"
	"github.com/skychat-ai/skychat/internal/config"
	"github.com/skychat-ai/skychat/internal/ingest"
	"github.com/skychat-ai/skychat/internal/search"
	"github.com/skychat-ai/skychat/internal/transcript"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat against a running skychat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		title, _ := cmd.Flags().GetString("title")
		resp, err := client.post(ctx, "/sessions", map[string]string{"title": title})
		if err != nil {
			return err
		}
		var sess struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &sess); err != nil {
			return err
		}
		printStep("Session %s started. Type your question, or 'exit' to quit.", sess.ID[:8])

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for {
			fmt.Fprint(os.Stderr, colorize(colorBold, "you> "))
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				break
			}

			fmt.Fprintln(os.Stderr, colorize(colorCyan, "…thinking"))
			resp, err := client.post(ctx, "/sessions/"+sess.ID+"/turns", map[string]string{"text": line})
			if err != nil {
				printError("%v", err)
				continue
			}
			var turn struct {
				Reply   string `json:"reply"`
				NoReply bool   `json:"no_reply"`
				TurnID  string `json:"turn_id"`
			}
			if err := decodeJSON(resp, &turn); err != nil {
				printError("%v", err)
				continue
			}
			fmt.Printf("\n%s\n\n", turn.Reply)
			if turn.NoReply {
				printWarning("the assistant produced no reply for this turn")
			}
		}
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().String("title", "", "title for the new session")
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Upload every document in a directory into a vector store",
	Long: `Upload every document in a directory into a vector store.

Files are uploaded in batches; a batch that fails is retried and, if it
keeps failing, reported without stopping the rest of the run.

Examples:
  skychat ingest ./manuals
  skychat ingest ./regs --store vs_abc123 --batch-size 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storeID, _ := cmd.Flags().GetString("store")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if storeID == "" {
			storeID = cfg.Assistant.StoreID
		}
		if storeID == "" {
			return fmt.Errorf("no vector store: pass --store or set SKYCHAT_STORE_ID")
		}

		client := assistant.NewClientWithBaseURL(cfg.Assistant.APIKey, cfg.Assistant.BaseURL)
		printStep("Ingesting %s into %s...", args[0], storeID)

		results, err := ingest.New(client).Ingest(cmd.Context(), args[0], storeID, batchSize)
		if err != nil {
			return err
		}

		uploaded, failed := 0, 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				printError("batch %d failed after %d attempts: %v", r.Index+1, r.Attempts, r.Err)
			} else {
				uploaded += len(r.Files)
			}
		}
		if failed > 0 {
			printWarning("Uploaded %d files, %d of %d batches failed", uploaded, failed, len(results))
			return nil
		}
		printSuccess("Uploaded %d files in %d batches", uploaded, len(results))
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("store", "", "vector store ID (default: configured store)")
	ingestCmd.Flags().Int("batch-size", 0, "files per upload batch (default 5)")
}

// --- bind ---

var bindCmd = &cobra.Command{
	Use:   "bind",
	Short: "Attach a vector store to the assistant's file search",
	Long: `Attach a vector store to the assistant's file search resources.

The operation is idempotent: a store that is already attached is left as is.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		assistantID, _ := cmd.Flags().GetString("assistant")
		storeID, _ := cmd.Flags().GetString("store")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		client := assistant.NewClientWithBaseURL(cfg.Assistant.APIKey, cfg.Assistant.BaseURL)
		mgr := binding.NewManager(client, cfg.Assistant.AssistantID, cfg.Assistant.StoreID)

		a, wrote, err := mgr.Bind(cmd.Context(), assistantID, storeID)
		if err != nil {
			return err
		}
		if wrote {
			printSuccess("Bound store to assistant %s (stores: %v)", a.ID, a.VectorStoreIDs())
		} else {
			printSuccess("Store already bound to assistant %s (stores: %v)", a.ID, a.VectorStoreIDs())
		}
		return nil
	},
}

func init() {
	bindCmd.Flags().String("assistant", "", "assistant ID (default: configured assistant)")
	bindCmd.Flags().String("store", "", "vector store ID (default: configured store)")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "One-shot search outside of any conversation",
}

var searchWebCmd = &cobra.Command{
	Use:   "web <query>",
	Short: "Answer a question using live web search",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		helper, err := newSearchHelper()
		if err != nil {
			return err
		}

		answer, err := helper.Web(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	},
}

var searchKBCmd = &cobra.Command{
	Use:   "kb <domain> <query>",
	Short: "Answer a question from one knowledge-base domain",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		helper, err := newSearchHelper()
		if err != nil {
			return err
		}

		answer, err := helper.Scoped(cmd.Context(), strings.Join(args[1:], " "), args[0])
		if err != nil {
			if errors.Is(err, search.ErrUnknownDomain) {
				return fmt.Errorf("unknown domain %q, valid domains: %v", args[0], helper.Domains())
			}
			return err
		}
		fmt.Println(answer)
		return nil
	},
}

func newSearchHelper() (*search.Helper, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	client := assistant.NewClientWithBaseURL(cfg.Assistant.APIKey, cfg.Assistant.BaseURL)
	return search.NewHelper(client, cfg.Assistant.Model, cfg.Search.DomainStores()), nil
}

func init() {
	searchCmd.AddCommand(searchWebCmd)
	searchCmd.AddCommand(searchKBCmd)
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse recorded sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/sessions?limit=%d", limit))
		if err != nil {
			return err
		}

		var sessions []struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Title     string `json:"title"`
		}
		if err := decodeJSON(resp, &sessions); err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		for _, s := range sessions {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %s  %s\n", colorize(colorCyan, s.ID[:8]), s.CreatedAt, title)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/sessions/"+args[0]+"/turns")
		if err != nil {
			return err
		}

		var turns []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Rating  int    `json:"rating"`
		}
		if err := decodeJSON(resp, &turns); err != nil {
			return err
		}

		for _, t := range turns {
			label := colorize(colorBold, t.Role+":")
			fmt.Printf("%s %s\n", label, t.Content)
			if t.Rating > 0 {
				fmt.Printf("  %s\n", colorize(colorYellow, fmt.Sprintf("rated %d/10", t.Rating)))
			}
		}
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Append new transcript rows to a CSV file",
	Long: `Append new transcript rows to a CSV file.

Each run writes only the turns recorded since the previous export to the
same file, so repeated exports never duplicate rows.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			return fmt.Errorf("--output is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := transcript.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening transcript store: %w", err)
		}
		defer store.Close()

		n, err := transcript.NewExporter(store).Flush(output)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("Nothing new to export.")
			return nil
		}
		printSuccess("Exported %d rows to %s", n, output)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output CSV file path")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
