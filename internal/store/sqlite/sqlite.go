// Package sqlite implements the store.ObjectRepository and
// store.BlobRepository ports using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/haukened/objvault/internal/domain"
	"github.com/haukened/objvault/internal/store"
)

// Ensure Store implements both repository ports.
var (
	_ store.ObjectRepository = (*Store)(nil)
	_ store.BlobRepository   = (*Store)(nil)
)

// Store implements the MetadataRepository ports using a single SQLite
// database holding both the objects and blobs tables.
type Store struct {
	db *sql.DB
}

// New returns a new Store. The caller is responsible for providing a
// configured *sql.DB (WAL, busy timeout, foreign keys). Schema creation is
// performed if necessary.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS objects (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			key TEXT,
			status TEXT NOT NULL,
			storage_class TEXT NOT NULL,
			content_hash TEXT,
			size_bytes INTEGER,
			content_type TEXT,
			metadata TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_objects_key
			ON objects(namespace, tenant_id, key)
			WHERE key IS NOT NULL AND status != 'DELETED';`,
		`CREATE INDEX IF NOT EXISTS idx_objects_status ON objects(status);`,
		`CREATE INDEX IF NOT EXISTS idx_objects_list
			ON objects(tenant_id, namespace, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_objects_hash ON objects(content_hash);`,
		`CREATE TABLE IF NOT EXISTS blobs (
			content_hash TEXT PRIMARY KEY,
			storage_class TEXT NOT NULL,
			ref_count INTEGER NOT NULL,
			size_bytes INTEGER NOT NULL,
			first_seen_at INTEGER NOT NULL,
			last_used_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_blobs_orphaned ON blobs(ref_count) WHERE ref_count = 0;`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func isUniqueConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func encodeMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := encodeJSON(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(ns sql.NullString) (map[string]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := decodeJSON([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullKey(k *domain.ObjectKey) sql.NullString {
	if k == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: k.String(), Valid: true}
}

func nullHash(h *domain.ContentHash) sql.NullString {
	if h == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: h.String(), Valid: true}
}

func nullSize(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

// Save implements store.ObjectRepository.
func (s *Store) Save(ctx context.Context, o *domain.Object) error {
	meta, err := encodeMetadata(o.Metadata)
	if err != nil {
		return domain.NewError(domain.KindRepository, err)
	}
	const q = `INSERT INTO objects
		(id, namespace, tenant_id, key, status, storage_class, content_hash, size_bytes, content_type, metadata, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			content_hash=excluded.content_hash,
			size_bytes=excluded.size_bytes,
			content_type=excluded.content_type,
			metadata=excluded.metadata,
			updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, q,
		o.ID.String(), o.Namespace.String(), o.TenantID.String(), nullKey(o.Key),
		string(o.Status), string(o.StorageClass), nullHash(o.ContentHash), nullSize(o.SizeBytes),
		o.ContentType, meta, o.CreatedAt.Unix(), o.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return domain.NewError(domain.KindConflict, err)
		}
		return domain.NewError(domain.KindRepository, err)
	}
	return nil
}

func scanObject(row interface {
	Scan(dest ...any) error
}) (*domain.Object, error) {
	var (
		id, ns, tenant, status, class, contentType string
		key, hash                                  sql.NullString
		size                                       sql.NullInt64
		meta                                       sql.NullString
		createdAt, updatedAt                       int64
	)
	if err := row.Scan(&id, &ns, &tenant, &key, &status, &class, &hash, &size, &contentType, &meta, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	o := &domain.Object{
		ID:           domain.ObjectID(id),
		Namespace:    domain.Namespace(ns),
		TenantID:     domain.TenantID(tenant),
		Status:       domain.ObjectStatus(status),
		StorageClass: domain.StorageClass(class),
		ContentType:  contentType,
		CreatedAt:    time.Unix(createdAt, 0).UTC(),
		UpdatedAt:    time.Unix(updatedAt, 0).UTC(),
	}
	if key.Valid {
		k := domain.ObjectKey(key.String)
		o.Key = &k
	}
	if hash.Valid {
		h := domain.ContentHash(hash.String)
		o.ContentHash = &h
	}
	if size.Valid {
		o.SizeBytes = &size.Int64
	}
	m, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	o.Metadata = m
	return o, nil
}

const objectColumns = `id, namespace, tenant_id, key, status, storage_class, content_hash, size_bytes, content_type, metadata, created_at, updated_at`

// FindByID implements store.ObjectRepository.
func (s *Store) FindByID(ctx context.Context, id domain.ObjectID) (*domain.Object, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM objects WHERE id=? AND status='COMMITTED'`, id.String())
	o, err := scanObject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewError(domain.KindRepository, err)
	}
	return o, nil
}

// FindByKey implements store.ObjectRepository.
func (s *Store) FindByKey(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, key domain.ObjectKey) (*domain.Object, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE namespace=? AND tenant_id=? AND key=? AND status='COMMITTED'`,
		ns.String(), tenantID.String(), key.String())
	o, err := scanObject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewError(domain.KindRepository, err)
	}
	return o, nil
}

// List implements store.ObjectRepository.
func (s *Store) List(ctx context.Context, ns domain.Namespace, tenantID domain.TenantID, limit, offset int) ([]*domain.Object, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM objects WHERE namespace=? AND tenant_id=? AND status='COMMITTED'`,
		ns.String(), tenantID.String()).Scan(&total); err != nil {
		return nil, 0, domain.NewError(domain.KindRepository, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM objects
		 WHERE namespace=? AND tenant_id=? AND status='COMMITTED'
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		ns.String(), tenantID.String(), limit, offset)
	if err != nil {
		return nil, 0, domain.NewError(domain.KindRepository, err)
	}
	defer rows.Close()

	var out []*domain.Object
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, 0, domain.NewError(domain.KindRepository, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.NewError(domain.KindRepository, err)
	}
	return out, total, nil
}

// MarkDeleting implements store.ObjectRepository.
func (s *Store) MarkDeleting(ctx context.Context, id domain.ObjectID, now time.Time) (domain.ContentHash, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", domain.NewError(domain.KindRepository, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var hash sql.NullString
	row := tx.QueryRowContext(ctx, `SELECT content_hash FROM objects WHERE id=? AND status='COMMITTED'`, id.String())
	if err = row.Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", domain.NewError(domain.KindRepository, err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE objects SET status='DELETING', updated_at=? WHERE id=? AND status='COMMITTED'`, now.Unix(), id.String()); err != nil {
		return "", domain.NewError(domain.KindRepository, err)
	}
	if err = tx.Commit(); err != nil {
		return "", domain.NewError(domain.KindRepository, err)
	}
	return domain.ContentHash(hash.String), nil
}

// FinalizeDeleted implements store.ObjectRepository.
func (s *Store) FinalizeDeleted(ctx context.Context, hash domain.ContentHash, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE objects SET status='DELETED', updated_at=? WHERE content_hash=? AND status='DELETING'`,
		now.Unix(), hash.String())
	if err != nil {
		return domain.NewError(domain.KindRepository, err)
	}
	return nil
}

// SweepStuckWriting implements store.ObjectRepository.
func (s *Store) SweepStuckWriting(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE status='WRITING' AND created_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, domain.NewError(domain.KindRepository, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.NewError(domain.KindRepository, err)
	}
	return int(n), nil
}

// GetOrCreateAndIncrement implements store.BlobRepository. If the content
// hash already has a row at RefCount 0 (e.g. GC unlinked the file but the
// row had not yet been deleted), this still increments the existing row;
// the caller (internal/app) is responsible for restoring the file via
// blobstore.Store when Exists reports it missing, per spec §4.9 Option (b).
func (s *Store) GetOrCreateAndIncrement(ctx context.Context, hash domain.ContentHash, class domain.StorageClass, size int64, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewError(domain.KindRepository, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var refCount int64
	row := tx.QueryRowContext(ctx, `SELECT ref_count FROM blobs WHERE content_hash=?`, hash.String())
	switch scanErr := row.Scan(&refCount); {
	case errors.Is(scanErr, sql.ErrNoRows):
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO blobs (content_hash, storage_class, ref_count, size_bytes, first_seen_at, last_used_at) VALUES (?,?,1,?,?,?)`,
			hash.String(), string(class), size, now.Unix(), now.Unix()); err != nil {
			return domain.NewError(domain.KindRepository, err)
		}
	case scanErr != nil:
		err = scanErr
		return domain.NewError(domain.KindRepository, err)
	default:
		if _, err = tx.ExecContext(ctx,
			`UPDATE blobs SET ref_count = ref_count + 1, last_used_at=? WHERE content_hash=?`,
			now.Unix(), hash.String()); err != nil {
			return domain.NewError(domain.KindRepository, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return domain.NewError(domain.KindRepository, err)
	}
	return nil
}

// Decrement implements store.BlobRepository.
func (s *Store) Decrement(ctx context.Context, hash domain.ContentHash) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewError(domain.KindRepository, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var refCount int64
	row := tx.QueryRowContext(ctx, `SELECT ref_count FROM blobs WHERE content_hash=?`, hash.String())
	if err = row.Scan(&refCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return domain.NewError(domain.KindRepository, err)
	}
	if refCount <= 0 {
		err = domain.ErrRefCountUnderflow
		return domain.NewError(domain.KindRepository, err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE blobs SET ref_count = ref_count - 1 WHERE content_hash=?`, hash.String()); err != nil {
		return domain.NewError(domain.KindRepository, err)
	}
	if err = tx.Commit(); err != nil {
		return domain.NewError(domain.KindRepository, err)
	}
	return nil
}

// FindOrphaned implements store.BlobRepository.
func (s *Store) FindOrphaned(ctx context.Context, batchSize int) ([]*domain.Blob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_hash, storage_class, ref_count, size_bytes, first_seen_at, last_used_at
		 FROM blobs WHERE ref_count = 0 LIMIT ?`, batchSize)
	if err != nil {
		return nil, domain.NewError(domain.KindRepository, err)
	}
	defer rows.Close()

	var out []*domain.Blob
	for rows.Next() {
		b, err := scanBlob(rows)
		if err != nil {
			return nil, domain.NewError(domain.KindRepository, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewError(domain.KindRepository, err)
	}
	return out, nil
}

// Find implements store.BlobRepository.
func (s *Store) Find(ctx context.Context, hash domain.ContentHash) (*domain.Blob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT content_hash, storage_class, ref_count, size_bytes, first_seen_at, last_used_at
		 FROM blobs WHERE content_hash=?`, hash.String())
	b, err := scanBlob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewError(domain.KindRepository, err)
	}
	return b, nil
}

// Delete implements store.BlobRepository. It re-checks RefCount == 0 inside
// the same transaction before deleting, per spec §4.4's precondition.
func (s *Store) Delete(ctx context.Context, hash domain.ContentHash) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewError(domain.KindRepository, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var refCount int64
	row := tx.QueryRowContext(ctx, `SELECT ref_count FROM blobs WHERE content_hash=?`, hash.String())
	if err = row.Scan(&refCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // already gone; deletion is idempotent
		}
		return domain.NewError(domain.KindRepository, err)
	}
	if refCount != 0 {
		err = fmt.Errorf("refusing to delete blob %s with ref_count %d", hash, refCount)
		return domain.NewError(domain.KindRepository, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM blobs WHERE content_hash=? AND ref_count=0`, hash.String()); err != nil {
		return domain.NewError(domain.KindRepository, err)
	}
	if err = tx.Commit(); err != nil {
		return domain.NewError(domain.KindRepository, err)
	}
	return nil
}

func scanBlob(row interface {
	Scan(dest ...any) error
}) (*domain.Blob, error) {
	var (
		hash, class         string
		refCount, size      int64
		firstSeen, lastUsed int64
	)
	if err := row.Scan(&hash, &class, &refCount, &size, &firstSeen, &lastUsed); err != nil {
		return nil, err
	}
	return &domain.Blob{
		ContentHash:  domain.ContentHash(hash),
		StorageClass: domain.StorageClass(class),
		RefCount:     refCount,
		SizeBytes:    size,
		FirstSeenAt:  time.Unix(firstSeen, 0).UTC(),
		LastUsedAt:   time.Unix(lastUsed, 0).UTC(),
	}, nil
}
