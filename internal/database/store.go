package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/geoimport/internal/core"
)

// Store implements core.Repository and core.ResourceManager on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ----------------------------------------------------------------------------
// Assets
// ----------------------------------------------------------------------------

func (s *Store) CreateAsset(ctx context.Context, a *core.Asset) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO assets (id, kind, title, owner, files, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ToPgUUID(a.ID), string(a.Kind), a.Title, a.Owner, a.Files, a.CreatedAt,
	)
	return err
}

func (s *Store) GetAsset(ctx context.Context, id uuid.UUID) (*core.Asset, error) {
	var (
		a         core.Asset
		pgID      pgtype.UUID
		kind      string
		createdAt pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, kind, title, owner, files, created_at
		FROM assets WHERE id = $1`, ToPgUUID(id),
	).Scan(&pgID, &kind, &a.Title, &a.Owner, &a.Files, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "asset", Key: id.String()}
	}
	if err != nil {
		return nil, err
	}
	a.ID = FromPgUUID(pgID)
	a.Kind = core.AssetKind(kind)
	a.CreatedAt = createdAt.Time
	return &a, nil
}

// ----------------------------------------------------------------------------
// Links
// ----------------------------------------------------------------------------

const linkColumns = `id, resource_id, asset_id, link_type, name, url, created_at, updated_at`

// OriginalLinkConstraint is the partial unique index allowing one original
// link per resource.
const OriginalLinkConstraint = "links_one_original_per_resource"

// linkWriteErr maps a violation of OriginalLinkConstraint to
// core.ErrDuplicateOriginal, keeping the driver error in the chain.
func linkWriteErr(err error) error {
	if IsUniqueViolation(err, OriginalLinkConstraint) {
		return fmt.Errorf("%w: %w", core.ErrDuplicateOriginal, err)
	}
	return err
}

func (s *Store) CreateLink(ctx context.Context, l *core.Link) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO links (`+linkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ToPgUUID(l.ID), ToPgUUIDPtr(l.ResourceID), ToPgUUID(l.AssetID),
		l.LinkType, l.Name, toPgText(l.URL), l.CreatedAt, l.UpdatedAt,
	)
	return linkWriteErr(err)
}

func (s *Store) UpdateLink(ctx context.Context, l *core.Link) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE links
		SET resource_id = $2, asset_id = $3, link_type = $4, name = $5, url = $6, updated_at = $7
		WHERE id = $1`,
		ToPgUUID(l.ID), ToPgUUIDPtr(l.ResourceID), ToPgUUID(l.AssetID),
		l.LinkType, l.Name, toPgText(l.URL), l.UpdatedAt,
	)
	if err != nil {
		return linkWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Kind: "link", Key: l.ID.String()}
	}
	return nil
}

func (s *Store) DeleteLink(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, ToPgUUID(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Kind: "link", Key: id.String()}
	}
	return nil
}

func (s *Store) GetLink(ctx context.Context, id uuid.UUID) (*core.Link, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE id = $1`, ToPgUUID(id))
	l, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "link", Key: id.String()}
	}
	return l, err
}

// FindOriginalLink returns (nil, nil) when the resource has no original link.
func (s *Store) FindOriginalLink(ctx context.Context, resourceID uuid.UUID) (*core.Link, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+linkColumns+` FROM links
		WHERE resource_id = $1 AND link_type = $2`,
		ToPgUUID(resourceID), core.LinkTypeOriginal,
	)
	l, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (s *Store) ListLinks(ctx context.Context, resourceID uuid.UUID) ([]*core.Link, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+linkColumns+` FROM links
		WHERE resource_id = $1
		ORDER BY created_at, id`, ToPgUUID(resourceID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*core.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func scanLink(row pgx.Row) (*core.Link, error) {
	var (
		id, resourceID, assetID pgtype.UUID
		url                     pgtype.Text
		createdAt, updatedAt    pgtype.Timestamptz
		l                       core.Link
	)
	if err := row.Scan(&id, &resourceID, &assetID, &l.LinkType, &l.Name, &url, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	l.ID = FromPgUUID(id)
	l.ResourceID = FromPgUUIDPtr(resourceID)
	l.AssetID = FromPgUUID(assetID)
	l.URL = fromPgText(url)
	l.CreatedAt = createdAt.Time
	l.UpdatedAt = updatedAt.Time
	return &l, nil
}

// ----------------------------------------------------------------------------
// Imports
// ----------------------------------------------------------------------------

// SaveImport implements core.ImportStore. The record is stored as JSON.
func (s *Store) SaveImport(ctx context.Context, rec *core.ImportRecord) error {
	if rec == nil || rec.Exec == nil {
		return errors.New("save import: execution context is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode import %s: %w", rec.Exec.ID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO imports (id, handler_id, state, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			record = EXCLUDED.record,
			updated_at = NOW()`,
		ToPgUUID(rec.Exec.ID), rec.Exec.HandlerID, string(rec.State), data, rec.Exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save import %s: %w", rec.Exec.ID, err)
	}
	return nil
}

// LoadImport implements core.ImportStore.
func (s *Store) LoadImport(ctx context.Context, id uuid.UUID) (*core.ImportRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM imports WHERE id = $1`, ToPgUUID(id)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "import", Key: id.String()}
	}
	if err != nil {
		return nil, err
	}
	var rec core.ImportRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode import %s: %w", id, err)
	}
	return &rec, nil
}

// ----------------------------------------------------------------------------
// Resources
// ----------------------------------------------------------------------------

const resourceColumns = `id, title, subtype, download_href, style_file, metadata_file,
	sld_uploaded, metadata_uploaded, dirty_state`

func (s *Store) GetResource(ctx context.Context, id uuid.UUID) (*core.Resource, error) {
	return getResource(ctx, s.pool, id, false)
}

func getResource(ctx context.Context, db DBTX, id uuid.UUID, forUpdate bool) (*core.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		pgID pgtype.UUID
		r    core.Resource
	)
	err := db.QueryRow(ctx, query, ToPgUUID(id)).Scan(
		&pgID, &r.Title, &r.Subtype, &r.DownloadHref, &r.StyleFile, &r.MetadataFile,
		&r.SLDUploaded, &r.MetadataUploaded, &r.DirtyState,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "resource", Key: id.String()}
	}
	if err != nil {
		return nil, err
	}
	r.ID = FromPgUUID(pgID)
	return &r, nil
}

// SaveResource inserts or replaces a resource row.
func (s *Store) SaveResource(ctx context.Context, r *core.Resource) error {
	return saveResource(ctx, s.pool, r)
}

func saveResource(ctx context.Context, db DBTX, r *core.Resource) error {
	_, err := db.Exec(ctx, `
		INSERT INTO resources (`+resourceColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			subtype = EXCLUDED.subtype,
			download_href = EXCLUDED.download_href,
			style_file = EXCLUDED.style_file,
			metadata_file = EXCLUDED.metadata_file,
			sld_uploaded = EXCLUDED.sld_uploaded,
			metadata_uploaded = EXCLUDED.metadata_uploaded,
			dirty_state = EXCLUDED.dirty_state,
			updated_at = NOW()`,
		ToPgUUID(r.ID), r.Title, r.Subtype, r.DownloadHref, r.StyleFile, r.MetadataFile,
		r.SLDUploaded, r.MetadataUploaded, r.DirtyState,
	)
	if err != nil {
		return fmt.Errorf("save resource %s: %w", r.ID, err)
	}
	return nil
}

// Exec implements core.ResourceManager. The row is locked, updated with
// core.ApplyResourceOp and written back in one transaction; instance is
// refreshed with the stored result.
func (s *Store) Exec(ctx context.Context, op string, instance *core.Resource, attrs map[string]any, vals map[string]any) error {
	if instance == nil {
		return fmt.Errorf("%s: resource is required", op)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		stored, err := getResource(ctx, tx, instance.ID, true)
		if err != nil {
			return err
		}
		if err := core.ApplyResourceOp(stored, op, attrs, vals); err != nil {
			return err
		}
		if err := saveResource(ctx, tx, stored); err != nil {
			return err
		}
		*instance = *stored
		return nil
	})
}
