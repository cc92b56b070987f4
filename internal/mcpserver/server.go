// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the knowledge store tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/docstore"
	"github.com/starford/ansuz/internal/models"
)

// Server wraps the MCP server with the store tools.
type Server struct {
	mcp *server.MCPServer
	svc *docstore.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *docstore.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_docs",
		mcp.WithDescription("Ranked keyword search across document names, descriptions, and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocs)

	s.mcp.AddTool(mcp.NewTool("read_doc",
		mcp.WithDescription("Read the current content of a document by its dotted name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Dotted document name (e.g. auth.jwt)")),
	), s.readDoc)

	s.mcp.AddTool(mcp.NewTool("store_doc",
		mcp.WithDescription("Create a document, or replace an existing one when update is true. "+
			"Names are dotted lowercase identifiers (e.g. auth.jwt); every write produces a new version."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Dotted document name")),
		mcp.WithString("description", mcp.Required(), mcp.Description("One-line summary used in listings and search")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body")),
		mcp.WithBoolean("update", mcp.Description("Replace an existing document instead of creating")),
	), s.storeDoc)

	s.mcp.AddTool(mcp.NewTool("append_doc",
		mcp.WithDescription("Append markdown to an existing document, preserving everything already there."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Dotted document name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown fragment to append")),
	), s.appendDoc)

	s.mcp.AddTool(mcp.NewTool("record_decision",
		mcp.WithDescription("Record a design decision with its rationale on a document."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Dotted document name")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("What was decided")),
		mcp.WithString("rationale", mcp.Required(), mcp.Description("Why it was decided")),
	), s.recordDecision)

	s.mcp.AddTool(mcp.NewTool("list_docs",
		mcp.WithDescription("List all documents with their descriptions and versions."),
	), s.listDocs)

	s.mcp.AddTool(mcp.NewTool("why",
		mcp.WithDescription("Search recorded decisions only: answers why something was done this way."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.why)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchDocs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDoc(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Get(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", name, err)), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}

func (s *Server) storeDoc(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	description, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var doc *models.Doc
	if req.GetBool("update", false) {
		doc, err = s.svc.Update(ctx, name, description, content)
	} else {
		doc, err = s.svc.Put(ctx, name, description, content)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store %s: %v", name, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("stored %s (version %d)", doc.Name, doc.Version)), nil
}

func (s *Server) appendDoc(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Append(ctx, name, content)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("append %s: %v", name, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("appended to %s (version %d)", doc.Name, doc.Version)), nil
}

func (s *Server) recordDecision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	decision, err := req.RequireString("decision")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rationale, err := req.RequireString("rationale")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.RecordDecision(ctx, name, decision, rationale)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("record decision on %s: %v", name, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("recorded on %s (version %d)", doc.Name, doc.Version)), nil
}

func (s *Server) listDocs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := s.svc.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(summaries) == 0 {
		return mcp.NewToolResultText("no documents"), nil
	}
	var lines []string
	for _, d := range summaries {
		lines = append(lines, fmt.Sprintf("%s (v%d): %s", d.Name, d.Version, d.Description))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) why(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Why(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("no matching decisions"), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
