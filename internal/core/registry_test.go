package core

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_ResolveFirstMatchByPriority(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&stubHandler{id: "late", ext: "sld"}, 200)
	r.Register(&stubHandler{id: "early", ext: "sld"}, 10)
	r.Add(&stubHandler{id: "xml", ext: "xml"})

	h, err := r.Resolve(Payload{BaseFile: "a.sld"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := h.Descriptor().ID; got != "early" {
		t.Errorf("resolved %q, want early", got)
	}

	if n := len(r.Matches(Payload{BaseFile: "a.sld"})); n != 2 {
		t.Errorf("matches = %d, want 2", n)
	}
}

func TestRegistry_EqualPriorityKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(&stubHandler{id: "a", ext: "sld"})
	r.Add(&stubHandler{id: "b", ext: "sld"})

	h, _ := r.Resolve(Payload{BaseFile: "x.sld"})
	if got := h.Descriptor().ID; got != "a" {
		t.Errorf("resolved %q, want a", got)
	}
}

func TestRegistry_ResolveNoMatch(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(&stubHandler{id: "sld", ext: "sld", action: ActionStyleUpload})

	_, err := r.Resolve(Payload{BaseFile: "a.sld", Action: "import"})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "handler" {
		t.Fatalf("err = %v, want handler NotFoundError", err)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(&stubHandler{id: "sld", ext: "sld"})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate id")
		}
	}()
	r.Add(&stubHandler{id: "sld", ext: "sld"})
}

func TestRegistry_ApplyPriorities(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(&stubHandler{id: "a", ext: "sld"})
	r.Add(&stubHandler{id: "b", ext: "sld"})

	unknown := r.ApplyPriorities(map[string]int{"b": 1, "zzz": 5, "mmm": 3})
	if len(unknown) != 2 || unknown[0] != "mmm" || unknown[1] != "zzz" {
		t.Errorf("unknown = %v", unknown)
	}

	descs := r.Descriptors()
	if descs[0].ID != "b" || descs[1].ID != "a" {
		t.Errorf("order = %s, %s", descs[0].ID, descs[1].ID)
	}

	h, ok := r.Get("a")
	if !ok || h.Descriptor().ID != "a" {
		t.Errorf("Get(a) = %v, %v", h, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) found a handler")
	}
	if r.SetPriority("missing", 1) {
		t.Error("SetPriority(missing) = true")
	}
	if r.Count() != 2 {
		t.Errorf("Count = %d", r.Count())
	}
}

type namedData struct{ id string }

func (d namedData) ID() string                        { return d.id }
func (d namedData) SupportsInlineStyleHandling() bool { return true }
func (d namedData) HandleStyleFile(_ context.Context, _ *Resource, _ *ExecutionContext) error {
	return nil
}

func TestRegistry_DataHandlerFor(t *testing.T) {
	r := NewRegistry(namedData{id: "fallback"})
	r.RegisterDataHandler("vector", namedData{id: "vector"})

	tests := []struct {
		res  *Resource
		want string
	}{
		{&Resource{Subtype: "vector"}, "vector"},
		{&Resource{Subtype: "raster"}, "fallback"},
		{nil, "fallback"},
	}
	for _, tt := range tests {
		if got := r.DataHandlerFor(tt.res).ID(); got != tt.want {
			t.Errorf("DataHandlerFor(%v) = %q, want %q", tt.res, got, tt.want)
		}
	}
}
