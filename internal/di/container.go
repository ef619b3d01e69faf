package di

import (
	"context"
	"fmt"

	"webmcp-inspector/internal/adapter/httpapi"
	"webmcp-inspector/internal/adapter/mcpbridge"
	"webmcp-inspector/internal/application/port/input"
	"webmcp-inspector/internal/application/port/output"
	"webmcp-inspector/internal/infrastructure/browser/rod"
	"webmcp-inspector/internal/infrastructure/logger"
	"webmcp-inspector/internal/infrastructure/metrics"
	"webmcp-inspector/internal/usecase/toolsource"
)

type Container struct {
	Logger  output.LoggerPort
	Metrics *metrics.PrometheusMetrics
	Source  input.ToolSource
	HTTP    *httpapi.Handler
	MCP     *mcpbridge.Bridge

	cfg Config
}

type Config struct {
	Host     string
	Port     int
	LogLevel string
	LogDir   string
	LogName  string
	MCPName  string
	Trace    bool
}

func NewContainer(cfg Config) (*Container, error) {
	log, err := logger.NewLoggerAdapter(logger.Config{
		Level: cfg.LogLevel,
		Dir:   cfg.LogDir,
		Name:  cfg.LogName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	m := metrics.NewPrometheusMetrics()

	debuggerCfg := rod.DefaultConfig()
	debuggerCfg.Trace = cfg.Trace
	debugger := rod.NewDebuggerAdapter(debuggerCfg, log)

	source := toolsource.New(debugger, log, m)

	mcpName := cfg.MCPName
	if mcpName == "" {
		mcpName = "webmcp-inspector"
	}

	return &Container{
		Logger:  log,
		Metrics: m,
		Source:  source,
		HTTP:    httpapi.NewHandler(source, log, m.Handler()),
		MCP:     mcpbridge.New(mcpName, source, log),
		cfg:     cfg,
	}, nil
}

// Connect attaches to every page of the configured browser.
func (c *Container) Connect(ctx context.Context) (*input.ConnectReport, error) {
	return c.Source.Connect(ctx, input.ConnectConfig{Host: c.cfg.Host, Port: c.cfg.Port})
}

func (c *Container) Close(ctx context.Context) {
	if c.Source != nil {
		if err := c.Source.Disconnect(ctx); err != nil {
			c.Logger.Warn("Disconnect failed", "error", err)
		}
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
