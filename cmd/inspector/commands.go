package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"webmcp-inspector/internal/adapter/httpapi"
	"webmcp-inspector/internal/application/port/output"
	"webmcp-inspector/internal/di"
	"webmcp-inspector/internal/infrastructure/console"
	"webmcp-inspector/internal/infrastructure/env"
	"webmcp-inspector/internal/usecase/toolsource"
)

const shutdownTimeout = 5 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inspector",
		Short:         "Discover and call WebMCP tools exposed by open browser tabs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().String("host", "", "Chrome remote debugging host (env CDP_HOST)")
	root.PersistentFlags().Int("port", 0, "Chrome remote debugging port (env CDP_PORT)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	root.PersistentFlags().Bool("trace", false, "Log raw CDP traffic")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMCPCmd())
	root.AddCommand(newToolsCmd())
	root.AddCommand(newCallCmd())
	return root
}

type settings struct {
	container di.Config
	httpAddr  string
}

func loadSettings(cmd *cobra.Command, logName string) settings {
	var e output.ConfigPort = env.NewEnvService()
	s := settings{
		container: di.Config{
			Host:     e.GetWithDefault("CDP_HOST", toolsource.DefaultHost),
			Port:     e.GetInt("CDP_PORT", toolsource.DefaultPort),
			LogLevel: e.GetWithDefault("LOG_LEVEL", "info"),
			LogDir:   e.Get("LOG_DIR"),
			LogName:  logName,
			MCPName:  e.GetWithDefault("MCP_SERVER_NAME", "webmcp-inspector"),
		},
		httpAddr: e.GetWithDefault("HTTP_ADDR", ":8080"),
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		s.container.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		s.container.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("log-level") {
		s.container.LogLevel, _ = flags.GetString("log-level")
	}
	s.container.Trace, _ = flags.GetBool("trace")
	if flags.Changed("addr") {
		s.httpAddr, _ = flags.GetString("addr")
	}
	return s
}

// connect builds the container and attaches to the browser.
func connect(ctx context.Context, s settings) (*di.Container, error) {
	c, err := di.NewContainer(s.container)
	if err != nil {
		return nil, err
	}

	report, err := c.Connect(ctx)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	for id, attachErr := range report.Failed {
		c.Logger.Warn("Tab skipped", "target", id, "error", attachErr)
	}
	return c, nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool catalog over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "HTTP listen address (env HTTP_ADDR)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := loadSettings(cmd, "serve")
	c, err := connect(ctx, s)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	srv := &http.Server{
		Addr:              s.httpAddr,
		Handler:           c.HTTP.Routes(httpapi.NewRequestLogger("webmcp-inspector")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("HTTP server listening", "addr", s.httpAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	c.Logger.Info("Shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Expose the discovered tools as an MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := loadSettings(cmd, "mcp")
			c, err := connect(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer c.Close(context.Background())

			return c.MCP.ServeStdio()
		},
	}
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tools exposed by every open tab",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}
	cmd.Flags().Bool("json", false, "Print the catalog as JSON")
	cmd.Flags().Bool("watch", false, "Keep running and print every catalog change")
	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	watch, _ := cmd.Flags().GetBool("watch")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := loadSettings(cmd, "tools")
	c, err := connect(ctx, s)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c.Source.ListTools()); err != nil {
			return err
		}
	} else {
		p := console.NewPrinter(out)
		p.ShowTargets(c.Source.Targets())
		p.ShowTools(c.Source.ListTools())
	}
	if !watch {
		return nil
	}

	p := console.NewPrinter(out)
	unsubscribe := c.Source.OnToolsChanged(p.ShowToolsChanged)
	defer unsubscribe()
	<-ctx.Done()
	return nil
}

func newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [json-args]",
		Short: "Call one tool by name and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			input := "{}"
			if len(args) == 2 {
				input = args[1]
			}
			if !json.Valid([]byte(input)) {
				return fmt.Errorf("arguments for %q are not valid JSON", name)
			}

			s := loadSettings(cmd, "call")
			c, err := connect(cmd.Context(), s)
			if err != nil {
				return err
			}
			defer c.Close(context.Background())

			p := console.NewPrinter(cmd.OutOrStdout())
			p.ShowToolStart(name, input)
			result, err := c.Source.CallTool(cmd.Context(), name, input)
			if err != nil {
				return err
			}
			p.ShowToolResult(result, nil)
			return nil
		},
	}
}
