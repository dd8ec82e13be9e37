// Package action defines the injected action-invoker capability. The
// scheduler, pipeline orchestrator and rule engine treat every action as a
// black box behind the Invoker interface; what an action actually does
// (calling a content generator, publishing a post) is wired at setup time.
package action

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownAction is returned when no function is registered for a name
var ErrUnknownAction = errors.New("unknown action")

// ProgressFunc reports monotonic progress (0-100) of a long-running action.
// Return an error to abort the action.
type ProgressFunc func(progress int) error

// Request carries the action name, its payload and an optional progress
// callback into an invocation.
type Request struct {
	Name     string
	Payload  map[string]any
	Progress ProgressFunc
}

// Result is the outcome payload of a successful action. Content carries a
// generated article body when the action produces one; Metadata carries
// everything else and is merged into the payload of downstream stages.
type Result struct {
	Content  string
	Metadata map[string]any
}

// Invoker executes a named action. Implementations must honor context
// cancellation: a caller that times out treats the outcome as unknown and
// will not apply a late success.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// Func is a single registered action implementation
type Func func(ctx context.Context, req Request) (*Result, error)

// Registry is an Invoker dispatching to registered action functions.
// Registration happens during setup; Invoke is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Func
}

// NewRegistry creates an empty action registry
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]Func),
	}
}

// Register binds an action name to its implementation, replacing any
// previous binding.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

// Invoke dispatches to the registered function for req.Name
func (r *Registry) Invoke(ctx context.Context, req Request) (*Result, error) {
	r.mu.RLock()
	fn, ok := r.actions[req.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Name)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return fn(ctx, req)
}
