package rod

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"webmcp-inspector/internal/application/port/output"
	"webmcp-inspector/internal/domain/entity"
)

var (
	_ output.DebuggerPort     = (*DebuggerAdapter)(nil)
	_ output.BrowserSession   = (*browserSession)(nil)
	_ output.TargetConnection = (*targetConnection)(nil)
)

var ErrInvalidEndpoint = errors.New("invalid debugging endpoint")

const (
	defaultDialTimeout   = 10 * time.Second
	defaultBindingBuffer = 32
	maxVersionBytes      = 1 << 20
)

type DebuggerConfig struct {
	DialTimeout time.Duration
	// BindingBuffer is how many binding calls a target may queue before the
	// event loop blocks.
	BindingBuffer int
	Trace         bool
}

func DefaultConfig() DebuggerConfig {
	return DebuggerConfig{
		DialTimeout:   defaultDialTimeout,
		BindingBuffer: defaultBindingBuffer,
		Trace:         false,
	}
}

// DebuggerAdapter speaks CDP to an already running Chrome through go-rod.
// It never launches or closes the browser itself.
type DebuggerAdapter struct {
	cfg    DebuggerConfig
	logger output.LoggerPort
}

func NewDebuggerAdapter(cfg DebuggerConfig, logger output.LoggerPort) *DebuggerAdapter {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.BindingBuffer <= 0 {
		cfg.BindingBuffer = defaultBindingBuffer
	}
	return &DebuggerAdapter{cfg: cfg, logger: logger}
}

func (d *DebuggerAdapter) Dial(ctx context.Context, host string, port int) (output.BrowserSession, error) {
	endpoint, err := endpointAddress(host, port)
	if err != nil {
		return nil, err
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, d.cfg.DialTimeout)
	defer cancelDial()

	wsURL, err := resolveURL(dialCtx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", endpoint, err)
	}

	ws := &cdp.WebSocket{}
	if err := ws.Connect(dialCtx, wsURL, nil); err != nil {
		return nil, fmt.Errorf("connect %s: %w", wsURL, err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	browser := rod.New().
		ControlURL("").
		Client(cdp.New().Start(ws)).
		Context(sessionCtx).
		NoDefaultDevice().
		Trace(d.cfg.Trace)
	if err := browser.Connect(); err != nil {
		cancel()
		_ = ws.Close()
		return nil, fmt.Errorf("connect %s: %w", wsURL, err)
	}

	s := &browserSession{
		browser: browser,
		ws:      ws,
		cancel:  cancel,
		buffer:  d.cfg.BindingBuffer,
		logger:  d.logger.WithField("endpoint", endpoint),
		conns:   make(map[proto.TargetSessionID]*targetConnection),
	}
	go s.watchTargets()

	d.logger.Debug("Browser session opened", "endpoint", endpoint, "ws", wsURL)
	return s, nil
}

func endpointAddress(host string, port int) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidEndpoint)
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("%w: port %d out of range", ErrInvalidEndpoint, port)
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// resolveURL asks the endpoint for its browser websocket url. The returned
// url keeps the endpoint's host, since Chrome reports its own bind address.
func resolveURL(ctx context.Context, endpoint string) (string, error) {
	versionURL := (&url.URL{Scheme: "http", Host: endpoint, Path: "/json/version"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s answered %s", ErrInvalidEndpoint, versionURL, res.Status)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, maxVersionBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", versionURL, err)
	}

	field, ok := gson.New(data).Gets("webSocketDebuggerUrl")
	raw, isString := field.Val().(string)
	if !ok || !isString || raw == "" {
		return "", fmt.Errorf("%w: no webSocketDebuggerUrl at %s", ErrInvalidEndpoint, endpoint)
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "ws" && parsed.Scheme != "wss") {
		return "", fmt.Errorf("%w: bad webSocketDebuggerUrl %q", ErrInvalidEndpoint, raw)
	}
	parsed.Host = endpoint
	return parsed.String(), nil
}

type browserSession struct {
	browser *rod.Browser
	ws      *cdp.WebSocket
	cancel  context.CancelFunc
	buffer  int
	logger  output.LoggerPort

	mu    sync.Mutex
	conns map[proto.TargetSessionID]*targetConnection
}

func (s *browserSession) Targets(ctx context.Context) ([]entity.TargetInfo, error) {
	res, err := proto.TargetGetTargets{}.Call(s.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("get targets: %w", err)
	}

	targets := make([]entity.TargetInfo, 0, len(res.TargetInfos))
	for _, info := range res.TargetInfos {
		targets = append(targets, toTargetInfo(info))
	}
	return targets, nil
}

func toTargetInfo(info *proto.TargetTargetInfo) entity.TargetInfo {
	return entity.TargetInfo{
		ID:    string(info.TargetID),
		Type:  entity.TargetType(info.Type),
		URL:   info.URL,
		Title: info.Title,
	}
}

func (s *browserSession) Attach(ctx context.Context, target entity.TargetInfo) (output.TargetConnection, error) {
	page, err := s.browser.Context(ctx).PageFromTarget(proto.TargetTargetID(target.ID))
	if err != nil {
		return nil, fmt.Errorf("attach to %s: %w", target.ID, err)
	}

	conn := newTargetConnection(s.browser, page, s.buffer)

	s.mu.Lock()
	s.conns[page.SessionID] = conn
	s.mu.Unlock()

	go func() {
		<-conn.done
		s.mu.Lock()
		delete(s.conns, page.SessionID)
		s.mu.Unlock()
	}()

	return conn, nil
}

// watchTargets ends the event streams of tabs that close or detach on their own.
func (s *browserSession) watchTargets() {
	s.browser.EachEvent(
		func(e *proto.TargetTargetDestroyed) {
			s.drop(func(c *targetConnection) bool { return c.targetID == e.TargetID }, "destroyed")
		},
		func(e *proto.TargetDetachedFromTarget) {
			s.drop(func(c *targetConnection) bool { return c.page.SessionID == e.SessionID }, "detached")
		},
	)()
}

func (s *browserSession) drop(match func(*targetConnection) bool, reason string) {
	s.mu.Lock()
	var matched []*targetConnection
	for _, c := range s.conns {
		if match(c) {
			matched = append(matched, c)
		}
	}
	s.mu.Unlock()

	for _, c := range matched {
		s.logger.Debug("Target went away", "target", c.targetID, "reason", reason)
		c.cancel()
	}
}

func (s *browserSession) Close() error {
	s.cancel()
	return s.ws.Close()
}

type targetConnection struct {
	browser  *rod.Browser
	page     *rod.Page
	targetID proto.TargetTargetID
	cancel   context.CancelFunc
	calls    chan entity.BindingCall
	done     chan struct{}
}

// newTargetConnection ties the page to the session lifetime rather than to the
// context the attach ran under.
func newTargetConnection(browser *rod.Browser, page *rod.Page, buffer int) *targetConnection {
	ctx, cancel := context.WithCancel(browser.GetContext())
	c := &targetConnection{
		browser:  browser,
		page:     page.Context(ctx),
		targetID: page.TargetID,
		cancel:   cancel,
		calls:    make(chan entity.BindingCall, buffer),
		done:     make(chan struct{}),
	}

	wait := c.page.EachEvent(func(e *proto.RuntimeBindingCalled) {
		select {
		case c.calls <- entity.BindingCall{Name: e.Name, Payload: e.Payload}:
		case <-ctx.Done():
		}
	})
	go func() {
		defer close(c.done)
		defer close(c.calls)
		wait()
	}()

	return c
}

func (c *targetConnection) EnableRuntime(ctx context.Context) error {
	return proto.RuntimeEnable{}.Call(c.page.Context(ctx))
}

func (c *targetConnection) AddBinding(ctx context.Context, name string) error {
	return proto.RuntimeAddBinding{Name: name}.Call(c.page.Context(ctx))
}

func (c *targetConnection) BindingCalls() <-chan entity.BindingCall {
	return c.calls
}

func (c *targetConnection) Evaluate(ctx context.Context, req output.EvaluateRequest) (*output.EvaluateResult, error) {
	res, err := proto.RuntimeEvaluate{
		Expression:    req.Expression,
		AwaitPromise:  req.AwaitPromise,
		ReturnByValue: req.ReturnByValue,
	}.Call(c.page.Context(ctx))
	if err != nil {
		return nil, err
	}
	return toEvaluateResult(res), nil
}

// Close detaches from the target without closing the tab.
func (c *targetConnection) Close(ctx context.Context) error {
	defer c.cancel()
	return proto.TargetDetachFromTarget{SessionID: c.page.SessionID}.Call(c.browser.Context(ctx))
}

func toEvaluateResult(res *proto.RuntimeEvaluateResult) *output.EvaluateResult {
	out := &output.EvaluateResult{}
	if res.Result != nil && !res.Result.Value.Nil() {
		out.Value = []byte(res.Result.Value.JSON("", ""))
	}
	if d := res.ExceptionDetails; d != nil {
		out.Exception = &output.ExceptionDetails{Text: d.Text}
		if d.Exception != nil {
			out.Exception.Description = d.Exception.Description
		}
	}
	return out
}
