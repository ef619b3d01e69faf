package toolsource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"webmcp-inspector/internal/application/port/input"
	"webmcp-inspector/internal/application/port/output"
	"webmcp-inspector/internal/application/service"
	"webmcp-inspector/internal/domain/entity"
)

var _ input.ToolSource = (*UseCase)(nil)

const (
	DefaultHost = "localhost"
	DefaultPort = 9222
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type listenerEntry struct {
	id uint64
	fn input.ToolsChangedListener
}

// UseCase turns the open tabs of one browser into a live tool catalog.
type UseCase struct {
	debugger output.DebuggerPort
	registry *service.TargetRegistry
	logger   output.LoggerPort
	metrics  output.MetricsPort

	mu             sync.Mutex
	state          State
	cfg            input.ConnectConfig
	session        output.BrowserSession
	listeners      []listenerEntry
	nextListenerID uint64
	// connectGen changes when a Disconnect overtakes a running Connect.
	connectGen    uint64
	cancelConnect context.CancelFunc

	// notifyMu orders registry updates and the snapshots they queue.
	notifyMu sync.Mutex

	fanMu      sync.Mutex
	pending    []entity.Tool
	hasPending bool
	delivering bool
}

func New(debugger output.DebuggerPort, logger output.LoggerPort, metrics output.MetricsPort) *UseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &UseCase{
		debugger: debugger,
		registry: service.NewTargetRegistry(logger),
		logger:   logger,
		metrics:  metrics,
	}
}

func withDefaults(cfg input.ConnectConfig) input.ConnectConfig {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return cfg
}

func (uc *UseCase) Connect(ctx context.Context, cfg input.ConnectConfig) (*input.ConnectReport, error) {
	cfg = withDefaults(cfg)

	uc.mu.Lock()
	if uc.state != StateDisconnected {
		uc.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	uc.state = StateConnecting
	uc.cfg = cfg
	uc.connectGen++
	gen := uc.connectGen
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	uc.cancelConnect = cancel
	uc.mu.Unlock()

	session, targets, report, err := uc.connect(ctx, cfg)

	uc.mu.Lock()
	if uc.connectGen != gen {
		uc.mu.Unlock()
		uc.discard(session, targets)
		return report, ErrConnectCanceled
	}
	uc.cancelConnect = nil
	if err != nil {
		uc.state = StateDisconnected
		uc.mu.Unlock()
		return report, err
	}
	uc.session = session
	uc.state = StateConnected
	uc.mu.Unlock()
	return report, nil
}

// discard releases what a Connect attached after a Disconnect overtook it.
func (uc *UseCase) discard(session output.BrowserSession, targets []*service.ManagedTarget) {
	ctx := context.Background()
	for _, t := range targets {
		uc.registry.RemoveConn(t.ID, t.Conn)
		if err := t.Conn.Close(ctx); err != nil {
			uc.logger.Debug("Close after canceled connect", "target", t.ID, "error", err)
		}
	}
	if session != nil {
		if err := session.Close(); err != nil {
			uc.logger.Debug("Session close after canceled connect", "error", err)
		}
	}
	uc.metrics.TargetsAttached(uc.registry.Len())
	uc.logger.Info("Connect canceled by disconnect", "targets", len(targets))
}

func (uc *UseCase) connect(ctx context.Context, cfg input.ConnectConfig) (output.BrowserSession, []*service.ManagedTarget, *input.ConnectReport, error) {
	endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log := uc.logger.WithField("endpoint", endpoint)

	session, err := uc.debugger.Dial(ctx, cfg.Host, cfg.Port)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w at %s: %w", ErrEndpointUnreachable, endpoint, err)
	}

	infos, err := session.Targets(ctx)
	if err != nil {
		_ = session.Close()
		return nil, nil, nil, fmt.Errorf("%w: list targets at %s: %w", ErrEndpointUnreachable, endpoint, err)
	}

	pages := make([]entity.TargetInfo, 0, len(infos))
	for _, t := range infos {
		if t.IsPage() {
			pages = append(pages, t)
		}
	}
	if len(pages) == 0 {
		_ = session.Close()
		return nil, nil, nil, fmt.Errorf(
			"%w at %s. Ensure Chrome is running with --remote-debugging-port=%d and has at least one tab open",
			ErrNoPageTargets, endpoint, cfg.Port,
		)
	}

	report := &input.ConnectReport{Failed: make(map[string]error)}
	var targets []*service.ManagedTarget
	var errs []error
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		target, err := uc.attach(ctx, session, page)
		if err != nil {
			log.Warn("Target attach failed", "target", page.ID, "url", page.URL, "error", err)
			report.Failed[page.ID] = err
			errs = append(errs, fmt.Errorf("attach %s: %w", page.ID, err))
			continue
		}
		targets = append(targets, target)
		report.Attached = append(report.Attached, entity.TargetSummary{
			ID:        target.ID,
			URL:       target.URL,
			Title:     target.Title,
			ToolCount: len(target.Tools),
		})
	}

	if len(targets) == 0 {
		_ = session.Close()
		return nil, nil, report, fmt.Errorf("no page target at %s could be attached: %w", endpoint, errors.Join(errs...))
	}

	uc.warnDuplicates(log)
	uc.metrics.TargetsAttached(uc.registry.Len())
	log.Info("Connected", "targets", len(report.Attached), "failed", len(report.Failed), "tools", len(uc.registry.AllTools()))

	return session, targets, report, nil
}

func (uc *UseCase) ListTools() []entity.Tool {
	return uc.registry.AllTools()
}

func (uc *UseCase) Targets() []entity.TargetSummary {
	return uc.registry.Targets()
}

// CallTool runs name on the first target exposing it. A nil result means the
// page returned nothing, e.g. the tool navigated the tab away.
func (uc *UseCase) CallTool(ctx context.Context, name, inputArguments string) (*string, error) {
	target, ok := uc.registry.FindTargetForTool(name)
	if !ok {
		uc.metrics.ToolCalled(name, "not_found", 0)
		return nil, &toolNotFoundError{
			name:      name,
			available: entity.ToolNames(uc.registry.AllTools()),
		}
	}

	callID := uuid.NewString()
	log := uc.logger.WithFields(map[string]any{
		"call_id": callID,
		"tool":    name,
		"target":  target.ID,
	})
	log.Info("Executing tool", "args", inputArguments)
	start := time.Now()

	res, err := target.Conn.Evaluate(ctx, output.EvaluateRequest{
		Expression:    executeToolExpression(name, inputArguments),
		AwaitPromise:  true,
		ReturnByValue: true,
	})
	if err != nil {
		uc.metrics.ToolCalled(name, "error", time.Since(start))
		log.Error("Tool evaluation failed", "error", err)
		return nil, fmt.Errorf("evaluate tool %q on target %s: %w", name, target.ID, err)
	}

	if res.Exception != nil {
		uc.metrics.ToolCalled(name, "rejected", time.Since(start))
		execErr := &ToolExecutionError{
			Tool:     name,
			TargetID: target.ID,
			Message:  exceptionMessage(res.Exception),
		}
		log.Warn("Tool rejected", "error", execErr.Message)
		return nil, execErr
	}

	elapsed := time.Since(start)
	uc.metrics.ToolCalled(name, "ok", elapsed)
	result, ok := valueString(res)
	if !ok {
		log.Info("Tool completed without a result", "duration_ms", elapsed.Milliseconds())
		return nil, nil
	}
	log.Info("Tool completed", "duration_ms", elapsed.Milliseconds(), "resultLen", len(*result))
	return result, nil
}

func (uc *UseCase) OnToolsChanged(listener input.ToolsChangedListener) func() {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.nextListenerID++
	id := uc.nextListenerID
	uc.listeners = append(uc.listeners, listenerEntry{id: id, fn: listener})

	return func() {
		uc.mu.Lock()
		defer uc.mu.Unlock()
		for i, l := range uc.listeners {
			if l.id == id {
				uc.listeners = append(uc.listeners[:i:i], uc.listeners[i+1:]...)
				return
			}
		}
	}
}

// Disconnect closes every target and the browser session. A Connect still in
// progress is canceled and releases whatever it attached.
func (uc *UseCase) Disconnect(ctx context.Context) error {
	uc.mu.Lock()
	if uc.state == StateConnecting {
		uc.connectGen++
		if uc.cancelConnect != nil {
			uc.cancelConnect()
			uc.cancelConnect = nil
		}
	}
	session := uc.session
	uc.session = nil
	uc.listeners = nil
	uc.state = StateDisconnected
	uc.mu.Unlock()

	uc.registry.DisconnectAll(ctx)

	uc.metrics.TargetsAttached(0)
	if session != nil {
		if err := session.Close(); err != nil {
			uc.logger.Warn("Browser session close failed", "error", err)
		}
	}
	uc.logger.Info("Disconnected")
	return nil
}

func (uc *UseCase) IsConnected() bool {
	return uc.State() == StateConnected
}

func (uc *UseCase) State() State {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.state
}

// RefreshTools re-lists the tools of every attached target and notifies
// listeners once if anything was listed.
func (uc *UseCase) RefreshTools(ctx context.Context) error {
	var errs []error
	refreshed := 0
	for _, id := range uc.registry.IDs() {
		target, ok := uc.registry.Get(id)
		if !ok {
			continue
		}
		res, err := target.Conn.Evaluate(ctx, output.EvaluateRequest{
			Expression:    listToolsExpression,
			ReturnByValue: true,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh %s: %w", id, err))
			continue
		}
		uc.notifyMu.Lock()
		if uc.registry.UpdateTools(id, toolsFromResult(res)) {
			refreshed++
		}
		uc.notifyMu.Unlock()
	}
	if refreshed > 0 {
		uc.notifyMu.Lock()
		uc.enqueue(uc.registry.AllTools())
		uc.notifyMu.Unlock()
		uc.deliver()
	}
	return errors.Join(errs...)
}

func (uc *UseCase) applyToolsChanged(targetID string, tools []entity.Tool) {
	uc.notifyMu.Lock()
	if !uc.registry.UpdateTools(targetID, tools) {
		uc.notifyMu.Unlock()
		uc.logger.Debug("Tools changed for unknown target", "target", targetID)
		return
	}
	uc.metrics.ToolsChanged(targetID)
	uc.logger.Info("Tools changed", "target", targetID, "tools", len(tools))
	uc.warnDuplicates(uc.logger)
	uc.enqueue(uc.registry.AllTools())
	uc.notifyMu.Unlock()

	uc.deliver()
}

// enqueue records the newest aggregate. Callers hold notifyMu so snapshots are
// queued in the order the registry changed.
func (uc *UseCase) enqueue(tools []entity.Tool) {
	uc.fanMu.Lock()
	uc.pending = tools
	uc.hasPending = true
	uc.fanMu.Unlock()
}

// deliver hands queued snapshots to listeners without holding any lock, so a
// listener may call back into the source. Only one goroutine delivers at a
// time; a snapshot queued meanwhile is delivered by it, superseding any older
// one that was still waiting.
func (uc *UseCase) deliver() {
	uc.fanMu.Lock()
	if uc.delivering {
		uc.fanMu.Unlock()
		return
	}
	uc.delivering = true
	for uc.hasPending {
		tools := uc.pending
		uc.pending = nil
		uc.hasPending = false
		uc.fanMu.Unlock()

		uc.notify(tools)

		uc.fanMu.Lock()
	}
	uc.delivering = false
	uc.fanMu.Unlock()
}

func (uc *UseCase) notify(tools []entity.Tool) {
	uc.mu.Lock()
	listeners := make([]input.ToolsChangedListener, 0, len(uc.listeners))
	for _, l := range uc.listeners {
		listeners = append(listeners, l.fn)
	}
	uc.mu.Unlock()

	for _, fn := range listeners {
		fn(tools)
	}
}

func (uc *UseCase) warnDuplicates(log output.LoggerPort) {
	if dups := uc.registry.DuplicateToolNames(); len(dups) > 0 {
		log.Warn("Tool names exposed by several targets, calls go to the first one", "tools", dups)
	}
}

type nopMetrics struct{}

func (nopMetrics) ToolCalled(string, string, time.Duration) {}
func (nopMetrics) ToolsChanged(string)                      {}
func (nopMetrics) TargetsAttached(int)                      {}
