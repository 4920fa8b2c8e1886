package core

// orchestrator.go runs imports through their lifecycle:
//
//	pending -> validated -> dispatched -> completed | rolled_back | failed
//
// Prepare resolves a handler and validates the upload; it is the only way
// into "validated". Dispatch looks the action up in the handler's action
// table and runs its step. Rolling back an import that is already rolled back
// returns the stored result without running the step again.
//
// With an ImportStore every state change is saved, and imports unknown to
// this process are loaded from the store on first use.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidTransition is returned when an action is dispatched from a state
// that does not allow it, e.g. importing twice.
var ErrInvalidTransition = errors.New("invalid import state transition")

// Orchestrator validates uploads and dispatches handler actions.
type Orchestrator struct {
	registry *Registry
	limiter  *ImportLimiter
	tracer   trace.Tracer
	now      func() time.Time

	store    ImportStore

	mu      sync.RWMutex
	imports map[uuid.UUID]*importRecord
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithImportStore persists import records in store.
func WithImportStore(store ImportStore) OrchestratorOption {
	return func(o *Orchestrator) { o.store = store }
}

type importRecord struct {
	mu       sync.Mutex // serialises dispatches of one import
	exec     *ExecutionContext
	handler  Handler
	state    ImportState
	forward  Outcome
	rollback *Result
	history  []Result
	lastErr  string
}

// ImportStatus is a snapshot of one import.
type ImportStatus struct {
	Exec      *ExecutionContext `json:"exec"`
	HandlerID string            `json:"handlerId"`
	State     ImportState       `json:"state"`
	Outcome   Outcome           `json:"outcome"`
	History   []Result          `json:"history"`
	Error     string            `json:"error,omitempty"`
}

// NewOrchestrator creates an Orchestrator over registry. limiter may be nil
// for unlimited concurrency. Without WithImportStore, imports live only in
// process memory.
func NewOrchestrator(registry *Registry, limiter *ImportLimiter, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		limiter:  limiter,
		tracer:   otel.Tracer("github.com/JonMunkholm/geoimport/internal/core"),
		now:      func() time.Time { return time.Now().UTC() },
		imports:  make(map[uuid.UUID]*importRecord),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Prepare resolves the handler for p, validates the uploaded files and
// records the import as validated.
func (o *Orchestrator) Prepare(ctx context.Context, p Payload, user User, opts ValidateOptions) (*ExecutionContext, Handler, error) {
	h, err := o.registry.Resolve(p)
	if err != nil {
		return nil, nil, err
	}

	action, ok := ParseAction(p.Action)
	if !ok {
		return nil, nil, &UnsupportedActionError{HandlerID: h.Descriptor().ID, Action: p.Action}
	}

	var resourceID *uuid.UUID
	if p.ResourceID != "" {
		id, err := uuid.Parse(p.ResourceID)
		if err != nil {
			return nil, nil, &InvalidInputError{Message: "invalid resource id", Reason: err.Error()}
		}
		resourceID = &id
	}

	files := make(map[string]string, len(p.Files))
	for k, v := range p.Files {
		files[k] = v
	}
	p.Files = files

	exec := &ExecutionContext{
		ID:         uuid.New(),
		HandlerID:  h.Descriptor().ID,
		Action:     action,
		Input:      p,
		ResourceID: resourceID,
		User:       user,
		CreatedAt:  o.now(),
	}

	rec := &importRecord{exec: exec, handler: h, state: StatePending}
	o.mu.Lock()
	o.imports[exec.ID] = rec
	o.mu.Unlock()

	log := logging.WithFields(ctx, "import_id", exec.ID, "handler", exec.HandlerID, "action", action.String())

	valid, err := h.IsValid(ctx, exec.Files(), user, opts)
	if err == nil && !valid {
		err = &InvalidInputError{Message: "uploaded document failed validation"}
	}
	if err != nil {
		rec.mu.Lock()
		rec.state = StateFailed
		rec.lastErr = err.Error()
		o.save(ctx, rec)
		rec.mu.Unlock()
		log.Warn("import validation failed", "error", err)
		return nil, nil, err
	}

	rec.mu.Lock()
	rec.state = StateValidated
	o.save(ctx, rec)
	rec.mu.Unlock()
	log.Info("import validated", "file", p.BaseName())

	return exec, h, nil
}

// Run prepares p and dispatches its requested action.
func (o *Orchestrator) Run(ctx context.Context, p Payload, user User, opts ValidateOptions) (Result, error) {
	exec, h, err := o.Prepare(ctx, p, user, opts)
	if err != nil {
		return Result{}, err
	}
	return o.Dispatch(ctx, h, exec.Action, exec)
}

// Dispatch runs action from h's action table against exec.
// Step errors are returned unchanged and mark the import failed.
func (o *Orchestrator) Dispatch(ctx context.Context, h Handler, action Action, exec *ExecutionContext) (res Result, err error) {
	handlerID := h.Descriptor().ID

	ctx, span := o.tracer.Start(ctx, "import.dispatch", trace.WithAttributes(
		attribute.String("import.id", exec.ID.String()),
		attribute.String("import.handler", handlerID),
		attribute.String("import.action", action.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	rec, err := o.record(ctx, exec.ID)
	if err != nil {
		return Result{}, err
	}

	step, ok := h.Actions().Lookup(action)
	if !ok {
		return Result{}, &UnsupportedActionError{HandlerID: handlerID, Action: action.String()}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if action.Compensating() {
		if rec.state == StateRolledBack && rec.rollback != nil {
			return *rec.rollback, nil
		}
		if rec.state == StatePending || rec.state == StateDispatched {
			return Result{}, fmt.Errorf("%w: cannot %s import in state %s", ErrInvalidTransition, action, rec.state)
		}
	} else if rec.state != StateValidated {
		return Result{}, fmt.Errorf("%w: cannot %s import in state %s", ErrInvalidTransition, action, rec.state)
	}

	if o.limiter != nil {
		if err := o.limiter.Acquire(ctx); err != nil {
			return Result{}, err
		}
		defer o.limiter.Release()
	}

	log := logging.WithFields(ctx, "import_id", exec.ID, "handler", handlerID, "action", action.String())

	start := time.Now()
	rec.state = StateDispatched
	o.save(ctx, rec)
	out, err := step.Run(ctx, exec, rec.forward)

	res = Result{
		ImportID: exec.ID,
		Action:   action,
		Outcome:  out,
		Duration: time.Since(start),
	}

	if err != nil {
		if !action.Compensating() {
			rec.forward = out
		}
		rec.state = StateFailed
		rec.lastErr = err.Error()
		res.State = StateFailed
		res.Error = err.Error()
		rec.history = append(rec.history, res)
		o.save(ctx, rec)
		log.Error("import step failed", "error", err, "duration_ms", res.Duration.Milliseconds())
		return res, err
	}

	if action.Compensating() {
		rec.state = StateRolledBack
		res.State = StateRolledBack
		stored := res
		rec.rollback = &stored
	} else {
		rec.forward = out
		rec.state = StateCompleted
		res.State = StateCompleted
	}
	rec.lastErr = ""
	rec.history = append(rec.history, res)
	o.save(ctx, rec)

	log.Info("import step completed",
		"state", res.State,
		"task", out.TaskID,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// Rollback dispatches the rollback action of the import's handler.
func (o *Orchestrator) Rollback(ctx context.Context, importID uuid.UUID) (Result, error) {
	rec, err := o.record(ctx, importID)
	if err != nil {
		return Result{}, err
	}
	return o.Dispatch(ctx, rec.handler, ActionRollback, rec.exec)
}

// Get returns a snapshot of an import.
func (o *Orchestrator) Get(ctx context.Context, importID uuid.UUID) (ImportStatus, error) {
	rec, err := o.record(ctx, importID)
	if err != nil {
		return ImportStatus{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshot(), nil
}

// List returns snapshots of the imports this process has seen, newest first.
func (o *Orchestrator) List() []ImportStatus {
	o.mu.RLock()
	recs := make([]*importRecord, 0, len(o.imports))
	for _, rec := range o.imports {
		recs = append(recs, rec)
	}
	o.mu.RUnlock()

	out := make([]ImportStatus, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.snapshot())
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Exec.CreatedAt.After(out[j].Exec.CreatedAt)
	})
	return out
}

// LimiterStatus reports the import limiter state. Zero if unlimited.
func (o *Orchestrator) LimiterStatus() ImportLimiterStatus {
	if o.limiter == nil {
		return ImportLimiterStatus{}
	}
	return o.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (o *Orchestrator) WaitForImports(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	return o.limiter.WaitForDrain(ctx)
}

func (o *Orchestrator) record(ctx context.Context, id uuid.UUID) (*importRecord, error) {
	o.mu.RLock()
	rec, ok := o.imports[id]
	o.mu.RUnlock()
	if ok {
		return rec, nil
	}
	if o.store == nil {
		return nil, &NotFoundError{Kind: "import", Key: id.String()}
	}

	stored, err := o.store.LoadImport(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Kind: "import", Key: id.String()}
		}
		return nil, persistErr("load import", err)
	}
	if stored.Exec == nil {
		return nil, fmt.Errorf("import %s: stored record has no execution context", id)
	}
	h, ok := o.registry.Get(stored.Exec.HandlerID)
	if !ok {
		return nil, fmt.Errorf("import %s: handler %q is not registered", id, stored.Exec.HandlerID)
	}

	loaded := &importRecord{
		exec:     stored.Exec,
		handler:  h,
		state:    stored.State,
		forward:  stored.Forward,
		rollback: stored.Rollback,
		history:  stored.History,
		lastErr:  stored.Error,
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if rec, ok := o.imports[id]; ok {
		return rec, nil
	}
	o.imports[id] = loaded
	return loaded, nil
}

// save writes rec to the import store. The caller holds rec.mu. A failed
// write is logged and does not undo the state change.
func (o *Orchestrator) save(ctx context.Context, rec *importRecord) {
	if o.store == nil {
		return
	}
	history := make([]Result, len(rec.history))
	copy(history, rec.history)
	err := o.store.SaveImport(context.WithoutCancel(ctx), &ImportRecord{
		Exec:     rec.exec,
		State:    rec.state,
		Forward:  rec.forward,
		Rollback: rec.rollback,
		History:  history,
		Error:    rec.lastErr,
	})
	if err != nil {
		logging.WithFields(ctx, "import_id", rec.exec.ID).
			Error("persist import record failed", "state", rec.state, "error", err)
	}
}

func (r *importRecord) snapshot() ImportStatus {
	history := make([]Result, len(r.history))
	copy(history, r.history)
	return ImportStatus{
		Exec:      r.exec,
		HandlerID: r.handler.Descriptor().ID,
		State:     r.state,
		Outcome:   r.forward,
		History:   history,
		Error:     r.lastErr,
	}
}
