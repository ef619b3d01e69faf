package service

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"webmcp-inspector/internal/application/port/output"
	"webmcp-inspector/internal/domain/entity"
)

// ManagedTarget is one attached browser tab together with the tools it currently exposes.
type ManagedTarget struct {
	ID    string
	URL   string
	Title string
	Conn  output.TargetConnection
	Tools []entity.Tool
}

func (t *ManagedTarget) hasTool(name string) bool {
	for _, tool := range t.Tools {
		if tool.Name == name {
			return true
		}
	}
	return false
}

// TargetRegistry owns the attached targets of one tool source.
// Iteration order is insertion order.
type TargetRegistry struct {
	mu      sync.RWMutex
	targets map[string]*ManagedTarget
	order   []string
	logger  output.LoggerPort
}

func NewTargetRegistry(logger output.LoggerPort) *TargetRegistry {
	return &TargetRegistry{
		targets: make(map[string]*ManagedTarget),
		logger:  logger,
	}
}

// Add inserts the target, or replaces an existing entry with the same id in place.
func (r *TargetRegistry) Add(target *ManagedTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.targets[target.ID]; !ok {
		r.order = append(r.order, target.ID)
	}
	r.targets[target.ID] = target
}

func (r *TargetRegistry) Remove(id string) (*ManagedTarget, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.targets[id]
	if !ok {
		return nil, false
	}
	r.removeLocked(id)
	return target, true
}

// RemoveConn removes id only while it is still served by conn, so a stale
// connection cannot evict a target that has since been re-attached.
func (r *TargetRegistry) RemoveConn(id string, conn output.TargetConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.targets[id]
	if !ok || target.Conn != conn {
		return false
	}
	r.removeLocked(id)
	return true
}

func (r *TargetRegistry) removeLocked(id string) {
	delete(r.targets, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *TargetRegistry) Get(id string) (*ManagedTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target, ok := r.targets[id]
	return target, ok
}

// UpdateTools replaces the tool list of id. Unknown ids are ignored since
// a notification may race the removal of its target.
func (r *TargetRegistry) UpdateTools(id string, tools []entity.Tool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.targets[id]
	if !ok {
		return false
	}
	target.Tools = tools
	return true
}

func (r *TargetRegistry) AllTools() []entity.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]entity.Tool, 0)
	for _, id := range r.order {
		result = append(result, r.targets[id].Tools...)
	}
	return result
}

// FindTargetForTool returns the first target, in insertion order, exposing name.
func (r *TargetRegistry) FindTargetForTool(name string) (*ManagedTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if target := r.targets[id]; target.hasTool(name) {
			return target, true
		}
	}
	return nil, false
}

func (r *TargetRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

func (r *TargetRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

func (r *TargetRegistry) Targets() []entity.TargetSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]entity.TargetSummary, 0, len(r.order))
	for _, id := range r.order {
		t := r.targets[id]
		result = append(result, entity.TargetSummary{
			ID:        t.ID,
			URL:       t.URL,
			Title:     t.Title,
			ToolCount: len(t.Tools),
		})
	}
	return result
}

// DuplicateToolNames reports names exposed by more than one target.
// Dispatch for those names resolves to the first owner only.
func (r *TargetRegistry) DuplicateToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owners := make(map[string]int)
	var dups []string
	for _, id := range r.order {
		seen := make(map[string]bool)
		for _, tool := range r.targets[id].Tools {
			if seen[tool.Name] {
				continue
			}
			seen[tool.Name] = true
			owners[tool.Name]++
			if owners[tool.Name] == 2 {
				dups = append(dups, tool.Name)
			}
		}
	}
	return dups
}

// DisconnectAll closes every connection concurrently and clears the registry.
// Close errors are logged and otherwise ignored.
func (r *TargetRegistry) DisconnectAll(ctx context.Context) {
	r.mu.Lock()
	targets := make([]*ManagedTarget, 0, len(r.order))
	for _, id := range r.order {
		targets = append(targets, r.targets[id])
	}
	r.targets = make(map[string]*ManagedTarget)
	r.order = nil
	r.mu.Unlock()

	var g errgroup.Group
	for _, target := range targets {
		g.Go(func() error {
			if target.Conn == nil {
				return nil
			}
			if err := target.Conn.Close(ctx); err != nil {
				r.logger.Warn("Target close failed", "target", target.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
