package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/logging"
)

// Func runs a task in-process.
type Func func(ctx context.Context, in Input) error

// Inline runs registered task funcs synchronously. Unknown task ids are
// logged and accepted, which suits single-node setups with no workers.
type Inline struct {
	mu    sync.RWMutex
	funcs map[string]Func
	runs  []Run
}

// Run records one submission.
type Run struct {
	TaskID string
	Input  Input
	Known  bool
}

// NewInline creates an empty inline runner.
func NewInline() *Inline {
	return &Inline{funcs: make(map[string]Func)}
}

// Register binds fn to taskID. Registering the same id twice panics.
func (r *Inline) Register(taskID string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[taskID]; exists {
		panic(fmt.Sprintf("task %q already registered", taskID))
	}
	r.funcs[taskID] = fn
}

// Submit runs the task bound to taskID, if any.
func (r *Inline) Submit(ctx context.Context, taskID string, exec *core.ExecutionContext) error {
	in := NewInput(exec)

	r.mu.Lock()
	fn, ok := r.funcs[taskID]
	r.runs = append(r.runs, Run{TaskID: taskID, Input: in, Known: ok})
	r.mu.Unlock()

	log := logging.FromContext(ctx)
	if !ok {
		log.Info("no inline task registered, skipping", "task", taskID, "import_id", in.ImportID)
		return nil
	}
	if err := fn(ctx, in); err != nil {
		return fmt.Errorf("task %s: %w", taskID, err)
	}
	log.Debug("inline task finished", "task", taskID, "import_id", in.ImportID)
	return nil
}

// Runs returns every submission so far, oldest first.
func (r *Inline) Runs() []Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Run, len(r.runs))
	copy(out, r.runs)
	return out
}
