package toolsource

import (
	"context"
	"fmt"

	"webmcp-inspector/internal/application/port/output"
	"webmcp-inspector/internal/application/service"
	"webmcp-inspector/internal/domain/entity"
)

// attach opens a connection to info, lists its tools and subscribes to changes
// in one evaluation, then registers the target.
func (uc *UseCase) attach(ctx context.Context, session output.BrowserSession, info entity.TargetInfo) (*service.ManagedTarget, error) {
	log := uc.logger.WithField("target", info.ID)

	conn, err := session.Attach(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}

	attached := false
	defer func() {
		if !attached {
			if err := conn.Close(ctx); err != nil {
				log.Debug("Close after failed attach", "error", err)
			}
		}
	}()

	if err := conn.EnableRuntime(ctx); err != nil {
		return nil, fmt.Errorf("enable runtime: %w", err)
	}
	if err := conn.AddBinding(ctx, BindingName); err != nil {
		return nil, fmt.Errorf("add binding: %w", err)
	}

	res, err := conn.Evaluate(ctx, output.EvaluateRequest{
		Expression:    bootstrapExpression,
		ReturnByValue: true,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	tools := toolsFromResult(res)

	target := &service.ManagedTarget{
		ID:    info.ID,
		URL:   info.URL,
		Title: info.Title,
		Conn:  conn,
		Tools: tools,
	}
	uc.registry.Add(target)
	attached = true

	go uc.watch(info.ID, conn)

	log.Info("Target attached", "url", info.URL, "tools", len(tools))
	return target, nil
}

// toolsFromResult reads a listing evaluation. Pages without the tool API,
// exceptions and unparsable values all count as no tools.
func toolsFromResult(res *output.EvaluateResult) []entity.Tool {
	if res == nil || res.Exception != nil {
		return []entity.Tool{}
	}
	payload, ok := valueString(res)
	if !ok {
		return []entity.Tool{}
	}
	tools, err := decodeToolList(*payload)
	if err != nil {
		return []entity.Tool{}
	}
	return tools
}

// watch applies the tool snapshots a target pushes until its connection closes.
// A connection that closes on its own drops the target.
func (uc *UseCase) watch(targetID string, conn output.TargetConnection) {
	log := uc.logger.WithField("target", targetID)

	for call := range conn.BindingCalls() {
		if call.Name != BindingName {
			continue
		}
		tools, err := decodeToolList(call.Payload)
		if err != nil {
			log.Debug("Dropping malformed tools payload", "error", err)
			continue
		}
		uc.applyToolsChanged(targetID, tools)
	}

	uc.notifyMu.Lock()
	if !uc.registry.RemoveConn(targetID, conn) {
		uc.notifyMu.Unlock()
		return
	}
	uc.metrics.TargetsAttached(uc.registry.Len())
	log.Warn("Target connection lost")
	uc.enqueue(uc.registry.AllTools())
	uc.notifyMu.Unlock()

	uc.deliver()
}
