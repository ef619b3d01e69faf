package toolsource

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"webmcp-inspector/internal/application/port/output"
	"webmcp-inspector/internal/domain/entity"
)

func stringResult(s string) *output.EvaluateResult {
	raw, _ := json.Marshal(s)
	return &output.EvaluateResult{Value: raw}
}

func toolsResult(tools ...entity.Tool) *output.EvaluateResult {
	if tools == nil {
		tools = []entity.Tool{}
	}
	raw, _ := json.Marshal(tools)
	return stringResult(string(raw))
}

func toolsPayload(tools ...entity.Tool) string {
	raw, _ := json.Marshal(tools)
	return string(raw)
}

type fakeConn struct {
	mu        sync.Mutex
	requests  []output.EvaluateRequest
	bindings  []string
	closed    int
	closeOnce sync.Once
	calls     chan entity.BindingCall

	bootstrap    *output.EvaluateResult
	bootstrapErr error
	enableErr    error
	closeErr     error
	// exec answers every evaluation other than the bootstrap.
	exec func(req output.EvaluateRequest) (*output.EvaluateResult, error)
}

func newFakeConn(tools ...entity.Tool) *fakeConn {
	return &fakeConn{
		calls:     make(chan entity.BindingCall, 16),
		bootstrap: toolsResult(tools...),
	}
}

func (c *fakeConn) EnableRuntime(ctx context.Context) error {
	return c.enableErr
}

func (c *fakeConn) AddBinding(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = append(c.bindings, name)
	return nil
}

func (c *fakeConn) BindingCalls() <-chan entity.BindingCall {
	return c.calls
}

func (c *fakeConn) Evaluate(ctx context.Context, req output.EvaluateRequest) (*output.EvaluateResult, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	exec := c.exec
	c.mu.Unlock()

	if req.Expression == bootstrapExpression {
		return c.bootstrap, c.bootstrapErr
	}
	if exec == nil {
		return nil, errors.New("unexpected evaluation")
	}
	return exec(req)
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.calls) })
	return c.closeErr
}

func (c *fakeConn) push(name, payload string) {
	c.calls <- entity.BindingCall{Name: name, Payload: payload}
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) lastRequest() output.EvaluateRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[len(c.requests)-1]
}

type fakeSession struct {
	mu         sync.Mutex
	targets    []entity.TargetInfo
	targetsErr error
	// Attach of stallID signals attaching, then waits for release.
	stallID   string
	attaching chan struct{}
	release   chan struct{}
	conns     map[string]*fakeConn
	attachErr map[string]error
	closed    bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		conns:     make(map[string]*fakeConn),
		attachErr: make(map[string]error),
	}
}

func (s *fakeSession) addPage(id string, conn *fakeConn) *fakeSession {
	s.targets = append(s.targets, entity.TargetInfo{
		ID:    id,
		Type:  entity.TargetTypePage,
		URL:   "https://example.com/" + id,
		Title: "Tab " + strings.ToUpper(id),
	})
	s.conns[id] = conn
	return s
}

func (s *fakeSession) Targets(ctx context.Context) ([]entity.TargetInfo, error) {
	return s.targets, s.targetsErr
}

func (s *fakeSession) Attach(ctx context.Context, target entity.TargetInfo) (output.TargetConnection, error) {
	if s.stallID != "" && target.ID == s.stallID {
		close(s.attaching)
		<-s.release
	}
	if err := s.attachErr[target.ID]; err != nil {
		return nil, err
	}
	conn, ok := s.conns[target.ID]
	if !ok {
		return nil, errors.New("no such target")
	}
	return conn, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDebugger struct {
	session *fakeSession
	err     error
	host    string
	port    int
}

func (d *fakeDebugger) Dial(ctx context.Context, host string, port int) (output.BrowserSession, error) {
	d.host = host
	d.port = port
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

type metricCall struct {
	tool    string
	outcome string
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []metricCall
}

func (m *recordingMetrics) ToolCalled(name, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricCall{tool: name, outcome: outcome})
}

func (m *recordingMetrics) ToolsChanged(string) {}
func (m *recordingMetrics) TargetsAttached(int) {}

func (m *recordingMetrics) outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.outcome)
	}
	return out
}
