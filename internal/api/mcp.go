package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/docmind/internal/retrieval"
	"github.com/kalambet/docmind/internal/storage"
)

// MCPDocuments is the read side of the document service used by MCP tools.
type MCPDocuments interface {
	Get(id string) (storage.Document, error)
	History(docID string) ([]storage.Version, error)
	RecentActivity() ([]storage.Activity, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Documents MCPDocuments
	Search    Searcher
	QA        Asker // optional; if nil, ask_question returns an error
}

// NewMCPServer creates an MCP server exposing read-only document tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"docmind",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("docmind: shared documents with AI summaries, tags and semantic search."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_documents",
			mcp.WithDescription("Search documents by literal text or by meaning."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("type", mcp.Description("text or semantic (default semantic)"), mcp.Enum("text", "semantic")),
		),
		mcpSearchDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("get_document",
			mcp.WithDescription("Fetch one document with its summary, tags and AI status."),
			mcp.WithString("id", mcp.Description("Document id"), mcp.Required()),
		),
		mcpGetDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("document_history",
			mcp.WithDescription("List the saved versions of a document, newest first."),
			mcp.WithString("id", mcp.Description("Document id"), mcp.Required()),
		),
		mcpDocumentHistory(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_question",
			mcp.WithDescription("Answer a question using the most relevant documents as context."),
			mcp.WithString("question", mcp.Description("The question"), mcp.Required()),
		),
		mcpAskQuestion(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"docmind://activity",
			"Recent Activity",
			mcp.WithResourceDescription("The latest document edits"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceActivity(deps),
	)

	return s
}

func mcpSearchDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		mode := req.GetString("type", retrieval.ModeSemantic)

		results, err := deps.Search.Search(ctx, query, mode)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(toResultsJSON(results))
	}
}

func mcpGetDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		doc, err := deps.Documents.Get(id)
		if err != nil {
			return mcpError(fmt.Sprintf("get document failed: %v", err)), nil
		}
		return mcpJSON(toDocumentJSON(doc))
	}
}

func mcpDocumentHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		versions, err := deps.Documents.History(id)
		if err != nil {
			return mcpError(fmt.Sprintf("history failed: %v", err)), nil
		}
		return mcpJSON(toVersionsJSON(versions))
	}
}

func mcpAskQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.QA == nil {
			return mcpError("question answering not available"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		ans, err := deps.QA.Ask(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}
		if ans.Answer == "" {
			return mcpText("No completed documents to answer from."), nil
		}
		return mcpText(ans.Answer), nil
	}
}

func mcpResourceActivity(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		feed, err := deps.Documents.RecentActivity()
		if err != nil {
			return nil, fmt.Errorf("failed to get recent activity: %w", err)
		}
		b, err := json.Marshal(toActivityJSON(feed))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal activity: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
