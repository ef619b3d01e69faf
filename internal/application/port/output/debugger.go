package output

import (
	"context"

	"webmcp-inspector/internal/domain/entity"
)

// DebuggerPort opens remote debugging sessions against a browser endpoint.
type DebuggerPort interface {
	Dial(ctx context.Context, host string, port int) (BrowserSession, error)
}

// BrowserSession is one connection to a browser's debugging endpoint.
type BrowserSession interface {
	Targets(ctx context.Context) ([]entity.TargetInfo, error)
	Attach(ctx context.Context, target entity.TargetInfo) (TargetConnection, error)
	Close() error
}

// TargetConnection is a protocol session scoped to a single target.
type TargetConnection interface {
	EnableRuntime(ctx context.Context) error
	AddBinding(ctx context.Context, name string) error
	// BindingCalls delivers binding invocations in arrival order.
	// The channel is closed once the connection is closed.
	BindingCalls() <-chan entity.BindingCall
	Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResult, error)
	Close(ctx context.Context) error
}

type EvaluateRequest struct {
	Expression    string
	AwaitPromise  bool
	ReturnByValue bool
}

type EvaluateResult struct {
	// Value holds the returned value as raw JSON, nil for undefined.
	Value     []byte
	Exception *ExceptionDetails
}

type ExceptionDetails struct {
	Text        string
	Description string
}
