package mcpbridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"webmcp-inspector/internal/application/port/input"
	"webmcp-inspector/internal/application/port/output"
	"webmcp-inspector/internal/domain/entity"
)

const Version = "0.1.0"

var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

// Bridge republishes the tools discovered in browser tabs as an MCP server.
type Bridge struct {
	source input.ToolSource
	logger output.LoggerPort
	server *server.MCPServer

	mu          sync.Mutex
	unsubscribe func()
}

func New(name string, source input.ToolSource, logger output.LoggerPort) *Bridge {
	return &Bridge{
		source: source,
		logger: logger.WithField("component", "mcp"),
		server: server.NewMCPServer(name, Version, server.WithToolCapabilities(true)),
	}
}

func (b *Bridge) Server() *server.MCPServer {
	return b.server
}

// Start publishes the current catalog and follows every later change.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsubscribe != nil {
		return
	}
	b.unsubscribe = b.source.OnToolsChanged(b.sync)
	b.sync(b.source.ListTools())
}

func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
}

func (b *Bridge) ServeStdio() error {
	b.Start()
	defer b.Stop()
	return server.ServeStdio(b.server)
}

func (b *Bridge) sync(tools []entity.Tool) {
	b.server.SetTools(b.serverTools(tools)...)
	b.logger.Debug("MCP tools synced", "tools", len(tools))
}

func (b *Bridge) serverTools(tools []entity.Tool) []server.ServerTool {
	seen := make(map[string]bool, len(tools))
	out := make([]server.ServerTool, 0, len(tools))
	for _, t := range tools {
		// only the first tool of a name is reachable
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		out = append(out, server.ServerTool{
			Tool:    mcp.NewToolWithRawSchema(t.Name, t.Description, schemaOf(t)),
			Handler: b.handler(t.Name),
		})
	}
	return out
}

func schemaOf(t entity.Tool) json.RawMessage {
	if t.InputSchema == "" || !json.Valid([]byte(t.InputSchema)) {
		return emptyObjectSchema
	}
	return json.RawMessage(t.InputSchema)
}

func (b *Bridge) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := "{}"
		if raw := req.GetRawArguments(); raw != nil {
			data, err := json.Marshal(raw)
			if err != nil {
				return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
			}
			args = string(data)
		}

		result, err := b.source.CallTool(ctx, name, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if result == nil {
			return mcp.NewToolResultText(""), nil
		}
		return mcp.NewToolResultText(*result), nil
	}
}
