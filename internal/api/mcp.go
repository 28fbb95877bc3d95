package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/skychat-ai/skychat/internal/ingest"
	"github.com/skychat-ai/skychat/internal/search"
	"github.com/skychat-ai/skychat/internal/session"
)

// DirIngestor uploads a directory of documents into a vector store.
type DirIngestor interface {
	Ingest(ctx context.Context, dir, vectorStoreID string, batchSize int) ([]ingest.BatchResult, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Runner  TurnRunner  // shared conversation backing the ask tool
	Search  Searcher
	Ingest  DirIngestor // optional; if nil, ingest_dir returns an error
	StoreID string      // vector store used by ingest_dir
}

// NewMCPServer creates an MCP server exposing the assistant as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"skychat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("skychat: conversational assistant for UAV documentation, regulations, and flight operations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask the assistant a question. The conversation keeps context across calls."),
			mcp.WithString("question", mcp.Description("The question to ask"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("kb_search",
			mcp.WithDescription("Search one knowledge-base domain and answer from its documents only."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("domain", mcp.Description("Knowledge domain to search"), mcp.Required()),
		),
		mcpKBSearch(deps),
	)

	s.AddTool(
		mcp.NewTool("web_search",
			mcp.WithDescription("Answer a question using live web search."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		mcpWebSearch(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_dir",
			mcp.WithDescription("Upload every document in a server-local directory into the knowledge base."),
			mcp.WithString("dir", mcp.Description("Directory path on the server"), mcp.Required()),
			mcp.WithNumber("batch_size", mcp.Description("Files per upload batch (default 5)")),
		),
		mcpIngestDir(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		reply, err := deps.Runner.SubmitTurn(ctx, question)
		if errors.Is(err, session.ErrNoReply) {
			return mcpText(NoReplyText), nil
		}
		if errors.Is(err, session.ErrTurnInFlight) {
			return mcpError("a previous question is still being answered"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		return mcpText(reply), nil
	}
}

func mcpKBSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		domain, err := req.RequireString("domain")
		if err != nil {
			return mcpError("domain is required"), nil
		}

		answer, err := deps.Search.Scoped(ctx, query, domain)
		if errors.Is(err, search.ErrUnknownDomain) {
			return mcpError(fmt.Sprintf("unknown domain %q, valid domains: %v", domain, deps.Search.Domains())), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcpText(answer), nil
	}
}

func mcpWebSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		answer, err := deps.Search.Web(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcpText(answer), nil
	}
}

func mcpIngestDir(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Ingest == nil {
			return mcpError("ingestion not available: no vector store configured"), nil
		}

		dir, err := req.RequireString("dir")
		if err != nil {
			return mcpError("dir is required"), nil
		}
		batchSize := req.GetInt("batch_size", 0)

		results, err := deps.Ingest.Ingest(ctx, dir, deps.StoreID, batchSize)
		if errors.Is(err, ingest.ErrInvalidInput) {
			return mcpError(fmt.Sprintf("invalid input: %v", err)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("ingestion failed: %v", err)), nil
		}

		uploaded, failed := 0, 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			} else {
				uploaded += len(r.Files)
			}
		}
		if failed > 0 {
			return mcpText(fmt.Sprintf("Uploaded %d files, %d of %d batches failed", uploaded, failed, len(results))), nil
		}
		return mcpText(fmt.Sprintf("Uploaded %d files in %d batches", uploaded, len(results))), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
