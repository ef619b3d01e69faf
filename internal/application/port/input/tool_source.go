package input

import (
	"context"

	"webmcp-inspector/internal/domain/entity"
)

type ConnectConfig struct {
	Host string
	Port int
}

// ConnectReport lists what a Connect attached and what it had to skip.
type ConnectReport struct {
	Attached []entity.TargetSummary
	Failed   map[string]error
}

type ToolsChangedListener func(tools []entity.Tool)

type ToolSource interface {
	Connect(ctx context.Context, cfg ConnectConfig) (*ConnectReport, error)
	ListTools() []entity.Tool
	CallTool(ctx context.Context, name, inputArguments string) (*string, error)
	OnToolsChanged(listener ToolsChangedListener) (unsubscribe func())
	Disconnect(ctx context.Context) error
	IsConnected() bool
	Targets() []entity.TargetSummary
	RefreshTools(ctx context.Context) error
}
