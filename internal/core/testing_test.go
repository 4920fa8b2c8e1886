package core

import (
	"context"
	"strings"
	"sync"
)

// mutexLocker is a per-key Locker that also counts held keys.
type mutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	held  int
}

func newMutexLocker() *mutexLocker {
	return &mutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *mutexLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	l.mu.Lock()
	l.held++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.held--
			l.mu.Unlock()
			m.Unlock()
		})
	}, nil
}

func (l *mutexLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// stubHandler matches a file extension and runs recorded steps.
type stubHandler struct {
	id      string
	ext     string
	action  Action
	valid   error
	actions ActionTable
}

func (h *stubHandler) Descriptor() HandlerDescriptor {
	return HandlerDescriptor{
		ID:      h.id,
		Formats: []Format{{Label: h.id, RequiredExt: []string{h.ext}}},
		Actions: h.Actions().Actions(),
		Type:    "metadata",
	}
}

func (h *stubHandler) CanHandle(p Payload) bool {
	if !strings.HasSuffix(p.BaseFile, "."+h.ext) {
		return false
	}
	if h.action == ActionUnknown {
		return true
	}
	a, ok := ParseAction(p.Action)
	return ok && a == h.action
}

func (h *stubHandler) IsValid(context.Context, FileSet, User, ValidateOptions) (bool, error) {
	if h.valid != nil {
		return false, h.valid
	}
	return true, nil
}

func (h *stubHandler) Actions() ActionTable {
	if h.actions == nil {
		return ActionTable{}
	}
	return h.actions
}
