package core

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LinkTypeOriginal marks the canonical association between an asset and a resource.
const LinkTypeOriginal = "original"

// OriginalLinkName is the display name given to every original link.
const OriginalLinkName = "Original"

// AssetKind identifies what a processed artifact represents.
type AssetKind string

const (
	AssetKindStyle    AssetKind = "style"
	AssetKindMetadata AssetKind = "metadata"
)

// Resource is an existing domain object (usually a dataset) that links point at.
// The core only reads it and updates it through a ResourceManager.
type Resource struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Subtype          string    `json:"subtype"`          // "vector", "raster", "remote", ...
	DownloadHref     string    `json:"downloadHref,omitempty"`
	StyleFile        string    `json:"styleFile,omitempty"`
	MetadataFile     string    `json:"metadataFile,omitempty"`
	SLDUploaded      bool      `json:"sldUploaded"`
	MetadataUploaded bool      `json:"metadataUploaded"`
	DirtyState       bool      `json:"dirtyState"`
}

// DownloadURL returns the URL an original link for this resource should carry.
func (r *Resource) DownloadURL() string {
	if r.DownloadHref != "" {
		return r.DownloadHref
	}
	return "/datasets/" + r.ID.String() + "/download"
}

// Asset is a processed artifact produced by a handler.
type Asset struct {
	ID        uuid.UUID `json:"id"`
	Kind      AssetKind `json:"kind"`
	Title     string    `json:"title"`
	Owner     string    `json:"owner,omitempty"`
	Files     []string  `json:"files"`
	CreatedAt time.Time `json:"createdAt"`
}

// AssetAttributes are the caller-supplied fields for AssetStore.Create.
type AssetAttributes struct {
	Title string
	Owner string
	Files []string
}

// Link associates an asset with a resource under a link type.
// A nil ResourceID means the link is staged and not yet assigned.
type Link struct {
	ID         uuid.UUID  `json:"id"`
	ResourceID *uuid.UUID `json:"resourceId,omitempty"`
	AssetID    uuid.UUID  `json:"assetId"`
	LinkType   string     `json:"linkType"`
	Name       string     `json:"name"`
	URL        *string    `json:"url,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Staged reports whether the link is not yet bound to a resource.
func (l *Link) Staged() bool {
	return l.ResourceID == nil
}

// User is the identity an upload is performed on behalf of.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Anonymous reports whether no identity was supplied.
func (u User) Anonymous() bool {
	return u.ID == ""
}

// File keys recognised in an upload payload.
const (
	FileKeyBase     = "base_file"
	FileKeySLD      = "sld_file"
	FileKeyMetadata = "xml_file"
)

// FileSet maps named upload slots ("base_file", "sld_file", ...) to file references.
type FileSet map[string]string

// Get returns the reference stored under key, or "" if absent.
func (f FileSet) Get(key string) string {
	if f == nil {
		return ""
	}
	return f[key]
}

// Payload is the upload request as it reaches the registry.
type Payload struct {
	BaseFile   string            `json:"base_file"`
	Action     string            `json:"action"`
	Files      map[string]string `json:"files,omitempty"`
	ResourceID string            `json:"resource_id,omitempty"`
}

// BaseName returns the file name component of BaseFile.
// Object keys ("s3://bucket/dir/style.sld") and local paths are treated alike.
func (p Payload) BaseName() string {
	if p.BaseFile == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(p.BaseFile, "\\", "/"))
}

// FileSet returns the payload's files with base_file filled in.
func (p Payload) FileSet() FileSet {
	fs := make(FileSet, len(p.Files)+1)
	for k, v := range p.Files {
		fs[k] = v
	}
	if p.BaseFile != "" {
		fs[FileKeyBase] = p.BaseFile
	}
	return fs
}

// Format describes one file format a handler accepts.
type Format struct {
	Label       string   `json:"label"`
	RequiredExt []string `json:"required_ext"`
}

// HandlerDescriptor advertises what a handler can do. Pure data.
type HandlerDescriptor struct {
	ID      string   `json:"id"`
	Formats []Format `json:"formats"`
	Actions []Action `json:"actions"`
	Type    string   `json:"type"`
}

// ExecutionContext carries the inputs of one import through validation and dispatch.
// It is not modified after Prepare returns it.
type ExecutionContext struct {
	ID         uuid.UUID  `json:"id"`
	HandlerID  string     `json:"handlerId"`
	Action     Action     `json:"action"`
	Input      Payload    `json:"input"`
	ResourceID *uuid.UUID `json:"resourceId,omitempty"`
	User       User       `json:"user"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Files returns the execution's uploaded files, base_file included.
func (e *ExecutionContext) Files() FileSet {
	return e.Input.FileSet()
}

// Outcome records what a step did. The rollback step reads the import's
// outcome to know what to compensate.
type Outcome struct {
	AssetID         uuid.UUID  `json:"assetId,omitempty"`
	LinkID          uuid.UUID  `json:"linkId,omitempty"`
	LinkCreated     bool       `json:"linkCreated"`
	PreviousAssetID *uuid.UUID `json:"previousAssetId,omitempty"`
	TaskID          string     `json:"taskId,omitempty"`
	Detail          string     `json:"detail,omitempty"`
}

// Assignment returns the outcome's link changes as an Assignment.
func (o Outcome) Assignment() Assignment {
	return Assignment{
		Link:            &Link{ID: o.LinkID, AssetID: o.AssetID},
		Created:         o.LinkCreated,
		PreviousAssetID: o.PreviousAssetID,
	}
}

// ImportState is the lifecycle position of one import.
type ImportState string

const (
	StatePending    ImportState = "pending"
	StateValidated  ImportState = "validated"
	StateDispatched ImportState = "dispatched"
	StateCompleted  ImportState = "completed"
	StateRolledBack ImportState = "rolled_back"
	StateFailed     ImportState = "failed"
)

// Result is what Dispatch returns to the caller.
type Result struct {
	ImportID uuid.UUID     `json:"importId"`
	Action   Action        `json:"action"`
	State    ImportState   `json:"state"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}
