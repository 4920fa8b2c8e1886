package core

// assets.go owns asset creation and the "original" link invariant: a resource
// has at most one link with link_type "original". Assign looks the link up
// under a per-resource lock and repoints it instead of creating a second one.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Assignment describes the link change made by Assign.
type Assignment struct {
	Link            *Link
	Created         bool       // a new link row was inserted
	PreviousAssetID *uuid.UUID // asset the link pointed at before, when it was repointed
}

// AssetStore creates assets and binds them to resources through original links.
// Construct one at startup and share it; it holds no per-request state.
type AssetStore struct {
	repo   Repository
	locker Locker
	now    func() time.Time
}

// NewAssetStore creates an AssetStore over repo, serialising per-resource
// link changes through locker.
func NewAssetStore(repo Repository, locker Locker) *AssetStore {
	return &AssetStore{
		repo:   repo,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a new asset of the given kind and returns it.
func (s *AssetStore) Create(ctx context.Context, kind AssetKind, attrs AssetAttributes) (*Asset, error) {
	files := make([]string, len(attrs.Files))
	copy(files, attrs.Files)

	asset := &Asset{
		ID:        uuid.New(),
		Kind:      kind,
		Title:     attrs.Title,
		Owner:     attrs.Owner,
		Files:     files,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateAsset(ctx, asset); err != nil {
		return nil, persistErr("create asset", err)
	}
	return asset, nil
}

// Assign binds asset to resource through the resource's original link.
//
// With a nil resource a standalone link is staged for later assignment. With a
// resource, an existing original link is repointed at asset; otherwise a new
// one is created carrying the resource's download URL.
func (s *AssetStore) Assign(ctx context.Context, asset *Asset, resource *Resource) (Assignment, error) {
	if asset == nil {
		return Assignment{}, errors.New("assign: asset is required")
	}

	if resource == nil {
		link := s.newLink(asset.ID, nil, nil)
		if err := s.repo.CreateLink(ctx, link); err != nil {
			return Assignment{}, persistErr("create staged link", err)
		}
		return Assignment{Link: link, Created: true}, nil
	}

	unlock, err := s.locker.Lock(ctx, ResourceLockKey(resource.ID))
	if err != nil {
		return Assignment{}, fmt.Errorf("lock resource %s: %w", resource.ID, err)
	}
	defer unlock()

	// The lock is advisory across replicas. The unique index on original
	// links is the authority: losing the insert race means another writer
	// created the link, so look it up again and repoint it.
	for attempt := 1; ; attempt++ {
		existing, err := s.repo.FindOriginalLink(ctx, resource.ID)
		if err != nil {
			return Assignment{}, persistErr("find original link", err)
		}

		if existing != nil {
			prev := existing.AssetID
			existing.AssetID = asset.ID
			existing.UpdatedAt = s.now()
			err := s.repo.UpdateLink(ctx, existing)
			if err == nil {
				return Assignment{Link: existing, PreviousAssetID: &prev}, nil
			}
			if !errors.Is(err, ErrNotFound) || attempt >= maxAssignAttempts {
				return Assignment{}, persistErr("update original link", err)
			}
			continue
		}

		url := resource.DownloadURL()
		rid := resource.ID
		link := s.newLink(asset.ID, &rid, &url)
		err = s.repo.CreateLink(ctx, link)
		if err == nil {
			return Assignment{Link: link, Created: true}, nil
		}
		if !errors.Is(err, ErrDuplicateOriginal) || attempt >= maxAssignAttempts {
			return Assignment{}, persistErr("create original link", err)
		}
	}
}

// maxAssignAttempts bounds the find-then-write loop in Assign.
const maxAssignAttempts = 5

// RevertStatus reports what Revert did with an Assignment.
type RevertStatus string

const (
	RevertApplied    RevertStatus = "link reverted"
	RevertSuperseded RevertStatus = "superseded"
	RevertNothing    RevertStatus = "nothing to revert"
)

// Revert undoes an Assignment: a created link is deleted, a repointed link
// goes back to its previous asset. Both happen only while the link still
// points at the asset the Assignment bound; once a later Assign has moved it,
// Revert leaves it alone and returns RevertSuperseded. Reverting twice is a
// no-op.
func (s *AssetStore) Revert(ctx context.Context, a Assignment) (RevertStatus, error) {
	if a.Link == nil || a.Link.ID == uuid.Nil {
		return RevertNothing, nil
	}
	if !a.Created && a.PreviousAssetID == nil {
		return RevertNothing, nil
	}

	link, err := s.repo.GetLink(ctx, a.Link.ID)
	if errors.Is(err, ErrNotFound) {
		return RevertNothing, nil
	}
	if err != nil {
		return "", persistErr("get link", err)
	}

	if link.ResourceID != nil {
		unlock, err := s.locker.Lock(ctx, ResourceLockKey(*link.ResourceID))
		if err != nil {
			return "", fmt.Errorf("lock resource %s: %w", *link.ResourceID, err)
		}
		defer unlock()

		// Re-read under the lock.
		if link, err = s.repo.GetLink(ctx, a.Link.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return RevertNothing, nil
			}
			return "", persistErr("get link", err)
		}
	}

	if link.AssetID != a.Link.AssetID {
		return RevertSuperseded, nil
	}

	if a.Created {
		err := s.repo.DeleteLink(ctx, link.ID)
		if errors.Is(err, ErrNotFound) {
			return RevertNothing, nil
		}
		if err != nil {
			return "", persistErr("delete link", err)
		}
		return RevertApplied, nil
	}

	link.AssetID = *a.PreviousAssetID
	link.UpdatedAt = s.now()
	if err := s.repo.UpdateLink(ctx, link); err != nil {
		return "", persistErr("restore original link", err)
	}
	return RevertApplied, nil
}

// Original returns the resource's original link, or nil if it has none.
func (s *AssetStore) Original(ctx context.Context, resourceID uuid.UUID) (*Link, error) {
	link, err := s.repo.FindOriginalLink(ctx, resourceID)
	if err != nil {
		return nil, persistErr("find original link", err)
	}
	return link, nil
}

func (s *AssetStore) newLink(assetID uuid.UUID, resourceID *uuid.UUID, url *string) *Link {
	now := s.now()
	return &Link{
		ID:         uuid.New(),
		ResourceID: resourceID,
		AssetID:    assetID,
		LinkType:   LinkTypeOriginal,
		Name:       OriginalLinkName,
		URL:        url,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ResourceLockKey is the Locker key guarding a resource's original link.
func ResourceLockKey(id uuid.UUID) string {
	return "resource:" + id.String()
}
