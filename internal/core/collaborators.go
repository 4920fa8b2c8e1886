package core

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Repository is the persistence collaborator for assets, links and resources.
// Lookups that find nothing return a *NotFoundError, except FindOriginalLink,
// which returns (nil, nil) so callers can branch on absence.
type Repository interface {
	CreateAsset(ctx context.Context, asset *Asset) error
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)

	CreateLink(ctx context.Context, link *Link) error
	UpdateLink(ctx context.Context, link *Link) error
	DeleteLink(ctx context.Context, id uuid.UUID) error
	GetLink(ctx context.Context, id uuid.UUID) (*Link, error)
	FindOriginalLink(ctx context.Context, resourceID uuid.UUID) (*Link, error)
	ListLinks(ctx context.Context, resourceID uuid.UUID) ([]*Link, error)

	GetResource(ctx context.Context, id uuid.UUID) (*Resource, error)
}

// ResourceManager applies named updates to a resource, e.g. "set_style".
// attrs are operation arguments; vals are plain field assignments such as
// {"dirty_state": true}.
type ResourceManager interface {
	Exec(ctx context.Context, op string, instance *Resource, attrs map[string]any, vals map[string]any) error
}

// Resource manager operations.
const (
	OpSetStyle    = "set_style"
	OpSetMetadata = "set_metadata"
)

// ImportRecord is the stored form of one import.
type ImportRecord struct {
	Exec     *ExecutionContext `json:"exec"`
	State    ImportState       `json:"state"`
	Forward  Outcome           `json:"forward"`
	Rollback *Result           `json:"rollback,omitempty"`
	History  []Result          `json:"history"`
	Error    string            `json:"error,omitempty"`
}

// ImportStore persists import records across restarts and replicas.
// LoadImport returns a *NotFoundError for an unknown id.
type ImportStore interface {
	SaveImport(ctx context.Context, rec *ImportRecord) error
	LoadImport(ctx context.Context, id uuid.UUID) (*ImportRecord, error)
}

// Locker provides mutual exclusion per key. The returned unlock func must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// TaskRunner hands a unit of work to the surrounding execution system.
// Retries, if any, are the runner's concern.
type TaskRunner interface {
	Submit(ctx context.Context, taskID string, exec *ExecutionContext) error
}

// FileOpener resolves an upload file reference to its content.
type FileOpener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}
