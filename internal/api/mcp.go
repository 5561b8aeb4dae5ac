package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docbridge/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// NewMCPServer exposes every registered tool over MCP. Calls go through the
// same invoker as the REST surface, so they share the gate and host loop.
func NewMCPServer(inv *tools.Invoker, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("docbridge", Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, t := range inv.Registry().List() {
		s.AddTool(mcpTool(t), mcpHandler(inv, t.Name, log))
	}
	return s
}

// NewMCPHandler serves MCP streamable HTTP.
func NewMCPHandler(inv *tools.Invoker, log *slog.Logger) http.Handler {
	return server.NewStreamableHTTPServer(NewMCPServer(inv, log), server.WithStateLess(true))
}

func mcpTool(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(t.Description),
		mcp.WithReadOnlyHintAnnotation(!t.Mutates),
	}
	for _, p := range t.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case tools.TypeInteger:
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		case tools.TypeBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, props...))
		case tools.TypeArray:
			props = append(props, mcp.Items(map[string]any{"type": "object"}))
			opts = append(opts, mcp.WithArray(p.Name, props...))
		default:
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

// mcpHandler reports tool failures as error results carrying the same
// {"error": {...}} body the REST surface returns.
func mcpHandler(inv *tools.Invoker, name string, log *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := inv.Invoke(ctx, name, tools.Args(req.GetArguments()))
		if resp.Error != nil {
			body, err := json.Marshal(resp)
			if err != nil {
				return mcp.NewToolResultError(resp.Error.Message), nil
			}
			return mcp.NewToolResultError(string(body)), nil
		}
		body, err := json.Marshal(resp.Result)
		if err != nil {
			log.Error("encode tool result", "tool", name, "error", err)
			return mcp.NewToolResultError("failed to encode result"), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
