package output

import "time"

type MetricsPort interface {
	ToolCalled(name string, outcome string, elapsed time.Duration)
	ToolsChanged(targetID string)
	TargetsAttached(n int)
}
