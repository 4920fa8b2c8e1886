package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Repository, ResourceManager and ImportStore.
// It backs tests and single-node development runs (DATABASE_URL=memory).
//
// Like the Postgres schema, it rejects a second original link for a resource.
type MemoryStore struct {
	mu        sync.RWMutex
	assets    map[uuid.UUID]Asset
	links     map[uuid.UUID]Link
	resources map[uuid.UUID]Resource
	imports   map[uuid.UUID][]byte // JSON, as stored by the database
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assets:    make(map[uuid.UUID]Asset),
		links:     make(map[uuid.UUID]Link),
		resources: make(map[uuid.UUID]Resource),
		imports:   make(map[uuid.UUID][]byte),
	}
}

// errDuplicateOriginal mirrors the unique index violation the database reports.
var errDuplicateOriginal = fmt.Errorf("%w: links_one_original_per_resource", ErrDuplicateOriginal)

// PutResource inserts or replaces a resource.
func (m *MemoryStore) PutResource(r Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[r.ID] = r
}

// SaveResource is PutResource with the signature the web layer expects.
func (m *MemoryStore) SaveResource(_ context.Context, r *Resource) error {
	if r == nil || r.ID == uuid.Nil {
		return errors.New("save resource: id is required")
	}
	m.PutResource(*r)
	return nil
}

func (m *MemoryStore) CreateAsset(_ context.Context, asset *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.assets[asset.ID]; exists {
		return errors.New("duplicate key value violates unique constraint \"assets_pkey\"")
	}
	m.assets[asset.ID] = cloneAsset(*asset)
	return nil
}

func (m *MemoryStore) GetAsset(_ context.Context, id uuid.UUID) (*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, &NotFoundError{Kind: "asset", Key: id.String()}
	}
	out := cloneAsset(a)
	return &out, nil
}

func (m *MemoryStore) CreateLink(_ context.Context, link *Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link.ResourceID != nil && link.LinkType == LinkTypeOriginal {
		if m.findOriginalLocked(*link.ResourceID) != nil {
			return errDuplicateOriginal
		}
	}
	m.links[link.ID] = cloneLink(*link)
	return nil
}

func (m *MemoryStore) UpdateLink(_ context.Context, link *Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[link.ID]; !ok {
		return &NotFoundError{Kind: "link", Key: link.ID.String()}
	}
	m.links[link.ID] = cloneLink(*link)
	return nil
}

func (m *MemoryStore) DeleteLink(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[id]; !ok {
		return &NotFoundError{Kind: "link", Key: id.String()}
	}
	delete(m.links, id)
	return nil
}

func (m *MemoryStore) GetLink(_ context.Context, id uuid.UUID) (*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.links[id]
	if !ok {
		return nil, &NotFoundError{Kind: "link", Key: id.String()}
	}
	out := cloneLink(l)
	return &out, nil
}

func (m *MemoryStore) FindOriginalLink(_ context.Context, resourceID uuid.UUID) (*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findOriginalLocked(resourceID), nil
}

func (m *MemoryStore) findOriginalLocked(resourceID uuid.UUID) *Link {
	for _, l := range m.links {
		if l.ResourceID != nil && *l.ResourceID == resourceID && l.LinkType == LinkTypeOriginal {
			out := cloneLink(l)
			return &out
		}
	}
	return nil
}

// ListLinks returns the resource's links, oldest first.
func (m *MemoryStore) ListLinks(_ context.Context, resourceID uuid.UUID) ([]*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Link
	for _, l := range m.links {
		if l.ResourceID != nil && *l.ResourceID == resourceID {
			c := cloneLink(l)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// StagedLinks returns links not bound to any resource.
func (m *MemoryStore) StagedLinks() []*Link {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Link
	for _, l := range m.links {
		if l.ResourceID == nil {
			c := cloneLink(l)
			out = append(out, &c)
		}
	}
	return out
}

func (m *MemoryStore) GetResource(_ context.Context, id uuid.UUID) (*Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[id]
	if !ok {
		return nil, &NotFoundError{Kind: "resource", Key: id.String()}
	}
	return &r, nil
}

// Exec implements ResourceManager against the stored copy of instance.
func (m *MemoryStore) Exec(_ context.Context, op string, instance *Resource, attrs map[string]any, vals map[string]any) error {
	if instance == nil {
		return errors.New(op + ": resource is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.resources[instance.ID]
	if !ok {
		return &NotFoundError{Kind: "resource", Key: instance.ID.String()}
	}
	if err := ApplyResourceOp(&stored, op, attrs, vals); err != nil {
		return err
	}
	m.resources[stored.ID] = stored
	*instance = stored
	return nil
}

// SaveImport implements ImportStore.
func (m *MemoryStore) SaveImport(_ context.Context, rec *ImportRecord) error {
	if rec == nil || rec.Exec == nil {
		return errors.New("save import: execution context is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode import %s: %w", rec.Exec.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports[rec.Exec.ID] = data
	return nil
}

// LoadImport implements ImportStore.
func (m *MemoryStore) LoadImport(_ context.Context, id uuid.UUID) (*ImportRecord, error) {
	m.mu.RLock()
	data, ok := m.imports[id]
	m.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Kind: "import", Key: id.String()}
	}
	var rec ImportRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode import %s: %w", id, err)
	}
	return &rec, nil
}

func cloneAsset(a Asset) Asset {
	a.Files = append([]string(nil), a.Files...)
	return a
}

func cloneLink(l Link) Link {
	if l.ResourceID != nil {
		rid := *l.ResourceID
		l.ResourceID = &rid
	}
	if l.URL != nil {
		u := *l.URL
		l.URL = &u
	}
	return l
}
