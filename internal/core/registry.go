package core

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// DefaultPriority is used by Add for handlers registered without an explicit priority.
const DefaultPriority = 100

type registration struct {
	handler  Handler
	priority int
	seq      int
}

// Registry holds the upload handlers in priority order and the dataset
// data-handlers keyed by resource subtype.
//
// Resolution is first match: lower priority values are tried first and equal
// priorities keep registration order.
type Registry struct {
	mu       sync.RWMutex
	entries  []registration
	byID     map[string]int
	seq      int
	data     map[string]DataHandler
	fallback DataHandler
}

// NewRegistry creates an empty registry. fallback is returned by
// DataHandlerFor when no data handler matches a resource's subtype.
func NewRegistry(fallback DataHandler) *Registry {
	return &Registry{
		byID:     make(map[string]int),
		data:     make(map[string]DataHandler),
		fallback: fallback,
	}
}

// Register adds h with the given priority.
// Panics if a handler with the same ID is already registered.
func (r *Registry) Register(h Handler, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := h.Descriptor().ID
	if _, exists := r.byID[id]; exists {
		panic(fmt.Sprintf("handler already registered: %s", id))
	}

	r.seq++
	r.entries = append(r.entries, registration{handler: h, priority: priority, seq: r.seq})
	r.sortLocked()
}

// Add registers h at DefaultPriority.
func (r *Registry) Add(h Handler) {
	r.Register(h, DefaultPriority)
}

// SetPriority changes the priority of a registered handler.
// Returns false if id is unknown.
func (r *Registry) SetPriority(id string, priority int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		return false
	}
	r.entries[idx].priority = priority
	r.sortLocked()
	return true
}

// ApplyPriorities sets priorities from an id -> priority map and returns
// the ids that did not match a registered handler.
func (r *Registry) ApplyPriorities(priorities map[string]int) []string {
	var unknown []string
	for id, p := range priorities {
		if !r.SetPriority(id, p) {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (r *Registry) sortLocked() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].priority != r.entries[j].priority {
			return r.entries[i].priority < r.entries[j].priority
		}
		return r.entries[i].seq < r.entries[j].seq
	})
	for i, e := range r.entries {
		r.byID[e.handler.Descriptor().ID] = i
	}
}

// Resolve returns the first handler whose CanHandle accepts p.
// Returns a *NotFoundError if none does.
func (r *Registry) Resolve(p Payload) (Handler, error) {
	matches := r.Matches(p)
	if len(matches) == 0 {
		return nil, &NotFoundError{Kind: "handler", Key: fmt.Sprintf("file %q with action %q", p.BaseName(), p.Action)}
	}
	if len(matches) > 1 {
		ids := make([]string, len(matches))
		for i, h := range matches {
			ids[i] = h.Descriptor().ID
		}
		slog.Debug("multiple handlers match payload, using first",
			"file", p.BaseName(),
			"action", p.Action,
			"handlers", ids,
		)
	}
	return matches[0], nil
}

// Matches returns every handler accepting p, in priority order.
func (r *Registry) Matches(p Payload) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Handler
	for _, e := range r.entries {
		if e.handler.CanHandle(p) {
			out = append(out, e.handler)
		}
	}
	return out
}

// Get returns a handler by ID.
func (r *Registry) Get(id string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.entries[idx].handler, true
}

// Descriptors returns the descriptors of all handlers in priority order.
func (r *Registry) Descriptors() []HandlerDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]HandlerDescriptor, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.handler.Descriptor()
	}
	return out
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// RegisterDataHandler binds a data handler to a resource subtype.
func (r *Registry) RegisterDataHandler(subtype string, h DataHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[subtype] = h
}

// DataHandlerFor returns the data handler for the resource's subtype, or the
// registry's fallback.
func (r *Registry) DataHandlerFor(res *Resource) DataHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if res != nil {
		if h, ok := r.data[res.Subtype]; ok {
			return h
		}
	}
	return r.fallback
}
