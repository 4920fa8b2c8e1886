package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestAssets(t *testing.T) (*AssetStore, *MemoryStore, *mutexLocker) {
	t.Helper()
	store := NewMemoryStore()
	locker := newMutexLocker()
	return NewAssetStore(store, locker), store, locker
}

func putResource(store *MemoryStore) *Resource {
	res := Resource{ID: uuid.New(), Title: "roads", Subtype: "vector"}
	store.PutResource(res)
	return &res
}

func TestAssetStore_Create(t *testing.T) {
	assets, store, _ := newTestAssets(t)
	ctx := context.Background()

	files := []string{"a.sld"}
	asset, err := assets.Create(ctx, AssetKindStyle, AssetAttributes{Title: "a.sld", Owner: "u1", Files: files})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	files[0] = "mutated"

	got, err := store.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if got.Kind != AssetKindStyle || got.Owner != "u1" || got.Files[0] != "a.sld" {
		t.Errorf("asset = %+v", got)
	}
}

func TestAssetStore_AssignFreshResourceCreatesOneLink(t *testing.T) {
	assets, store, _ := newTestAssets(t)
	ctx := context.Background()
	res := putResource(store)
	res.DownloadHref = "https://example.org/roads.zip"

	asset, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{Title: "a"})
	a, err := assets.Assign(ctx, asset, res)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !a.Created || a.PreviousAssetID != nil {
		t.Errorf("assignment = %+v, want created", a)
	}

	links, _ := store.ListLinks(ctx, res.ID)
	if len(links) != 1 {
		t.Fatalf("links = %d, want 1", len(links))
	}
	l := links[0]
	if l.LinkType != LinkTypeOriginal || l.Name != OriginalLinkName || l.AssetID != asset.ID {
		t.Errorf("link = %+v", l)
	}
	if l.URL == nil || *l.URL != "https://example.org/roads.zip" {
		t.Errorf("url = %v", l.URL)
	}
}

func TestAssetStore_ReassignKeepsLinkID(t *testing.T) {
	assets, store, _ := newTestAssets(t)
	ctx := context.Background()
	res := putResource(store)

	first, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{Title: "first"})
	a1, err := assets.Assign(ctx, first, res)
	if err != nil {
		t.Fatalf("Assign first: %v", err)
	}

	second, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{Title: "second"})
	a2, err := assets.Assign(ctx, second, res)
	if err != nil {
		t.Fatalf("Assign second: %v", err)
	}

	if a2.Created {
		t.Error("second assign created a link")
	}
	if a2.Link.ID != a1.Link.ID {
		t.Errorf("link id changed: %s -> %s", a1.Link.ID, a2.Link.ID)
	}
	if a2.PreviousAssetID == nil || *a2.PreviousAssetID != first.ID {
		t.Errorf("previous = %v, want %s", a2.PreviousAssetID, first.ID)
	}

	orig, _ := assets.Original(ctx, res.ID)
	if orig.AssetID != second.ID {
		t.Errorf("original points at %s, want %s", orig.AssetID, second.ID)
	}
}

func TestAssetStore_AssignWithoutResourceStages(t *testing.T) {
	assets, store, locker := newTestAssets(t)
	ctx := context.Background()

	asset, _ := assets.Create(ctx, AssetKindMetadata, AssetAttributes{Title: "m"})
	a, err := assets.Assign(ctx, asset, nil)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !a.Created || !a.Link.Staged() || a.Link.URL != nil {
		t.Errorf("assignment = %+v", a)
	}
	if n := len(store.StagedLinks()); n != 1 {
		t.Errorf("staged = %d, want 1", n)
	}
	if locker.Held() != 0 {
		t.Errorf("locks held = %d", locker.Held())
	}
}

func TestAssetStore_AssignNilAsset(t *testing.T) {
	assets, _, _ := newTestAssets(t)
	if _, err := assets.Assign(context.Background(), nil, nil); err == nil {
		t.Error("expected error for nil asset")
	}
}

func TestAssetStore_ConcurrentAssignCreatesOneLink(t *testing.T) {
	assets, store, _ := newTestAssets(t)
	ctx := context.Background()
	res := putResource(store)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			asset, err := assets.Create(ctx, AssetKindStyle, AssetAttributes{Title: "x"})
			if err != nil {
				errs <- err
				return
			}
			if _, err := assets.Assign(ctx, asset, res); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("assign: %v", err)
	}
	links, _ := store.ListLinks(ctx, res.ID)
	if len(links) != 1 {
		t.Errorf("links = %d, want 1", len(links))
	}
}

// failingRepo rejects link writes.
type failingRepo struct {
	*MemoryStore
	err error
}

func (f *failingRepo) CreateLink(context.Context, *Link) error { return f.err }
func (f *failingRepo) UpdateLink(context.Context, *Link) error { return f.err }

func TestAssetStore_PersistenceFailureReleasesLock(t *testing.T) {
	mem := NewMemoryStore()
	locker := newMutexLocker()
	assets := NewAssetStore(&failingRepo{MemoryStore: mem, err: errors.New("disk full")}, locker)
	ctx := context.Background()
	res := putResource(mem)

	asset, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{Title: "x"})
	_, err := assets.Assign(ctx, asset, res)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if locker.Held() != 0 {
		t.Errorf("locks held after failure = %d", locker.Held())
	}

	unlock, err := locker.Lock(ctx, ResourceLockKey(res.ID))
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	unlock()
}

func TestAssetStore_Revert(t *testing.T) {
	ctx := context.Background()

	t.Run("created link is deleted", func(t *testing.T) {
		assets, store, locker := newTestAssets(t)
		res := putResource(store)
		asset, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{})
		a, _ := assets.Assign(ctx, asset, res)

		if status, err := assets.Revert(ctx, a); err != nil || status != RevertApplied {
			t.Fatalf("Revert = %q, %v; want %q", status, err, RevertApplied)
		}
		if status, err := assets.Revert(ctx, a); err != nil || status != RevertNothing {
			t.Fatalf("second Revert = %q, %v; want %q", status, err, RevertNothing)
		}
		if links, _ := store.ListLinks(ctx, res.ID); len(links) != 0 {
			t.Errorf("links = %d, want 0", len(links))
		}
		if locker.Held() != 0 {
			t.Errorf("locks held = %d", locker.Held())
		}
	})

	t.Run("repointed link is restored", func(t *testing.T) {
		assets, store, locker := newTestAssets(t)
		res := putResource(store)
		first, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{})
		a1, _ := assets.Assign(ctx, first, res)
		second, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{})
		a2, _ := assets.Assign(ctx, second, res)

		if status, err := assets.Revert(ctx, a2); err != nil || status != RevertApplied {
			t.Fatalf("Revert = %q, %v; want %q", status, err, RevertApplied)
		}
		link, _ := store.GetLink(ctx, a1.Link.ID)
		if link.AssetID != first.ID {
			t.Errorf("asset = %s, want %s", link.AssetID, first.ID)
		}
		if status, err := assets.Revert(ctx, a2); err != nil || status == RevertApplied {
			t.Fatalf("second Revert = %q, %v", status, err)
		}
		if link, _ := store.GetLink(ctx, a1.Link.ID); link.AssetID != first.ID {
			t.Errorf("asset after second revert = %s, want %s", link.AssetID, first.ID)
		}
		if locker.Held() != 0 {
			t.Errorf("locks held = %d", locker.Held())
		}
	})

	t.Run("zero assignment is a no-op", func(t *testing.T) {
		assets, _, _ := newTestAssets(t)
		if status, err := assets.Revert(ctx, Assignment{}); err != nil || status != RevertNothing {
			t.Errorf("Revert = %q, %v", status, err)
		}
	})
}

func TestAssetStore_RevertLeavesLaterAssignment(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		// earlier assignments made before the one being reverted
		before int
	}{
		{name: "created link taken over by later asset", before: 0},
		{name: "repointed link taken over by later asset", before: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets, store, locker := newTestAssets(t)
			res := putResource(store)

			for i := 0; i < tt.before; i++ {
				asset, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{})
				if _, err := assets.Assign(ctx, asset, res); err != nil {
					t.Fatalf("Assign: %v", err)
				}
			}

			older, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{})
			reverted, err := assets.Assign(ctx, older, res)
			if err != nil {
				t.Fatalf("Assign older: %v", err)
			}
			newer, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{})
			if _, err := assets.Assign(ctx, newer, res); err != nil {
				t.Fatalf("Assign newer: %v", err)
			}

			status, err := assets.Revert(ctx, reverted)
			if err != nil {
				t.Fatalf("Revert: %v", err)
			}
			if status != RevertSuperseded {
				t.Errorf("status = %q, want %q", status, RevertSuperseded)
			}

			link, err := store.FindOriginalLink(ctx, res.ID)
			if err != nil || link == nil {
				t.Fatalf("original link = %v, %v", link, err)
			}
			if link.AssetID != newer.ID {
				t.Errorf("asset = %s, want newer %s", link.AssetID, newer.ID)
			}
			if locker.Held() != 0 {
				t.Errorf("locks held = %d", locker.Held())
			}
		})
	}
}

// openLocker grants every lock immediately, as a lock that fails to
// serialise replicas would.
type openLocker struct{}

func (openLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// slowLookupRepo widens the window between FindOriginalLink and CreateLink.
type slowLookupRepo struct {
	*MemoryStore
	delay time.Duration
}

func (r *slowLookupRepo) FindOriginalLink(ctx context.Context, id uuid.UUID) (*Link, error) {
	l, err := r.MemoryStore.FindOriginalLink(ctx, id)
	time.Sleep(r.delay)
	return l, err
}

func TestAssetStore_AssignConvergesWithoutLock(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		mem := NewMemoryStore()
		assets := NewAssetStore(&slowLookupRepo{MemoryStore: mem, delay: 5 * time.Millisecond}, openLocker{})
		res := putResource(mem)

		const writers = 2
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			asset, _ := assets.Create(ctx, AssetKindStyle, AssetAttributes{})
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := assets.Assign(ctx, asset, res); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Fatalf("round %d: assign: %v", round, err)
		}
		if links, _ := mem.ListLinks(ctx, res.ID); len(links) != 1 {
			t.Fatalf("round %d: links = %d, want 1", round, len(links))
		}
	}
}

func TestMemoryStore_RejectsSecondOriginal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rid := uuid.New()

	l1 := &Link{ID: uuid.New(), ResourceID: &rid, AssetID: uuid.New(), LinkType: LinkTypeOriginal}
	if err := store.CreateLink(ctx, l1); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	l2 := &Link{ID: uuid.New(), ResourceID: &rid, AssetID: uuid.New(), LinkType: LinkTypeOriginal}
	if err := store.CreateLink(ctx, l2); !errors.Is(err, ErrDuplicateOriginal) {
		t.Fatalf("second original link: err = %v, want ErrDuplicateOriginal", err)
	}

	staged := &Link{ID: uuid.New(), AssetID: uuid.New(), LinkType: LinkTypeOriginal}
	if err := store.CreateLink(ctx, staged); err != nil {
		t.Fatalf("staged link rejected: %v", err)
	}
}
