package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Capability produces a completion for a role's system prompt and a task
// prompt. The LLM client satisfies this; tests substitute fakes.
type Capability interface {
	Generate(ctx context.Context, role Role, prompt string) (string, error)
}

// InvocationError wraps any failure of a single agent invocation so
// callers handle timeouts, transport errors and model errors uniformly.
type InvocationError struct {
	Role Role
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("agent %s invocation failed: %v", e.Role, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Invoker dispatches agent invocations through a bounded worker pool. The
// pool caps how many model calls are in flight across all conversations;
// callers block until a slot frees up or their context is done.
type Invoker struct {
	capability Capability
	slots      chan struct{}
	timeout    time.Duration
}

func NewInvoker(capability Capability, workers int, timeout time.Duration) *Invoker {
	if workers <= 0 {
		workers = 1
	}
	return &Invoker{
		capability: capability,
		slots:      make(chan struct{}, workers),
		timeout:    timeout,
	}
}

// Invoke runs one agent call, respecting the pool bound and the per-call
// timeout. Every failure comes back as an *InvocationError.
func (inv *Invoker) Invoke(ctx context.Context, role Role, prompt string) (string, error) {
	select {
	case inv.slots <- struct{}{}:
		defer func() { <-inv.slots }()
	case <-ctx.Done():
		return "", &InvocationError{Role: role, Err: ctx.Err()}
	}

	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := inv.capability.Generate(ctx, role, prompt)
	if err != nil {
		slog.Warn("agent invocation failed", "role", role, "elapsed", time.Since(start), "error", err)
		return "", &InvocationError{Role: role, Err: err}
	}

	slog.Debug("agent invocation done", "role", role, "elapsed", time.Since(start))
	return out, nil
}
