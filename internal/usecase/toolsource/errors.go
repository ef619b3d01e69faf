package toolsource

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEndpointUnreachable = errors.New("debugging endpoint unreachable")
	ErrNoPageTargets       = errors.New("no page targets found")
	ErrAlreadyConnected    = errors.New("tool source already connected")
	ErrToolNotFound        = errors.New("tool not found")
	ErrConnectCanceled     = errors.New("disconnected while connecting")
)

type toolNotFoundError struct {
	name      string
	available []string
}

func (e *toolNotFoundError) Error() string {
	available := strings.Join(e.available, ", ")
	if available == "" {
		available = "(none)"
	}
	return fmt.Sprintf("Tool \"%s\" not found in any connected tab. Available tools: %s", e.name, available)
}

func (e *toolNotFoundError) Is(target error) bool {
	return target == ErrToolNotFound
}

const fallbackExecutionMessage = "Tool execution failed"

// ToolExecutionError is returned when the page rejects or throws while running a tool.
type ToolExecutionError struct {
	Tool     string
	TargetID string
	Message  string
}

func (e *ToolExecutionError) Error() string {
	return e.Message
}
