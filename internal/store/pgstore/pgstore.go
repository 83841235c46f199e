// Package pgstore implements store.Store on PostgreSQL tables created by the
// migrations in the top-level migrations directory.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/kinobot/internal/store"
)

// FlushObserver receives the duration of every successful write.
type FlushObserver interface {
	ObserveFlush(collection string, d time.Duration)
}

// Store is the PostgreSQL-backed store.Store.
type Store struct {
	db       *sqlx.DB
	owner    int64
	observer FlushObserver
}

var _ store.Store = (*Store)(nil)

// Open wraps db and ensures the owner row exists.
func Open(ctx context.Context, db *sqlx.DB, ownerID int64, observer FlushObserver) (*Store, error) {
	if db == nil {
		return nil, errors.New("pgstore: nil db")
	}
	if ownerID <= 0 {
		return nil, errors.New("pgstore: owner id is required")
	}
	s := &Store{db: db, owner: ownerID, observer: observer}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO admins (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, ownerID); err != nil {
		return nil, fmt.Errorf("pgstore: ensure owner: %w", err)
	}
	return s, nil
}

func (s *Store) Admins() store.Admins     { return adminRepo{s} }
func (s *Store) Media() store.Media       { return mediaRepo{s} }
func (s *Store) Channels() store.Channels { return channelRepo{s} }
func (s *Store) Users() store.Users       { return userRepo{s} }

// Close closes the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// exec runs a write and reports the affected row count.
func (s *Store) exec(ctx context.Context, collection, query string, args ...any) (int64, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("pgstore: %s: %w", collection, err)
	}
	if s.observer != nil {
		s.observer.ObserveFlush(collection, time.Since(start))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pgstore: %s rows affected: %w", collection, err)
	}
	return n, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

type adminRepo struct{ s *Store }

func (r adminRepo) List(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.s.db.SelectContext(ctx, &ids, `SELECT id FROM admins ORDER BY id`); err != nil {
		return nil, fmt.Errorf("pgstore: list admins: %w", err)
	}
	return ids, nil
}

func (r adminRepo) Contains(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.s.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM admins WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("pgstore: admin lookup: %w", err)
	}
	return ok, nil
}

func (r adminRepo) Add(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	n, err := r.s.exec(ctx, "admins", `INSERT INTO admins (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	return n > 0, err
}

func (r adminRepo) Remove(ctx context.Context, id int64) (bool, error) {
	if id == r.s.owner {
		return false, nil
	}
	n, err := r.s.exec(ctx, "admins", `DELETE FROM admins WHERE id = $1`, id)
	return n > 0, err
}

const mediaColumns = `code, media_ref, media_kind, caption, uploader_id, uploaded_at, download_count`

type mediaRepo struct{ s *Store }

func (r mediaRepo) Put(ctx context.Context, rec store.MediaRecord) error {
	start := time.Now()
	_, err := r.s.db.NamedExecContext(ctx, `
		INSERT INTO media (`+mediaColumns+`)
		VALUES (:code, :media_ref, :media_kind, :caption, :uploader_id, :uploaded_at, :download_count)
		ON CONFLICT (code) DO UPDATE SET
			media_ref = EXCLUDED.media_ref,
			media_kind = EXCLUDED.media_kind,
			caption = EXCLUDED.caption,
			uploader_id = EXCLUDED.uploader_id,
			uploaded_at = EXCLUDED.uploaded_at,
			download_count = EXCLUDED.download_count`, rec)
	if err != nil {
		return fmt.Errorf("pgstore: put media: %w", err)
	}
	if r.s.observer != nil {
		r.s.observer.ObserveFlush("media", time.Since(start))
	}
	return nil
}

func (r mediaRepo) Get(ctx context.Context, code string) (store.MediaRecord, error) {
	var rec store.MediaRecord
	err := r.s.db.GetContext(ctx, &rec, `SELECT `+mediaColumns+` FROM media WHERE code = $1`, code)
	return rec, notFound(err)
}

func (r mediaRepo) Delete(ctx context.Context, code string) (store.MediaRecord, error) {
	start := time.Now()
	var rec store.MediaRecord
	err := r.s.db.GetContext(ctx, &rec, `DELETE FROM media WHERE code = $1 RETURNING `+mediaColumns, code)
	if err != nil {
		return store.MediaRecord{}, notFound(err)
	}
	if r.s.observer != nil {
		r.s.observer.ObserveFlush("media", time.Since(start))
	}
	return rec, nil
}

func (r mediaRepo) List(ctx context.Context) ([]store.MediaRecord, error) {
	var recs []store.MediaRecord
	err := r.s.db.SelectContext(ctx, &recs, `SELECT `+mediaColumns+` FROM media ORDER BY uploaded_at, code`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list media: %w", err)
	}
	return recs, nil
}

func (r mediaRepo) IncrementDownloads(ctx context.Context, code string) (store.MediaRecord, error) {
	start := time.Now()
	var rec store.MediaRecord
	err := r.s.db.GetContext(ctx, &rec,
		`UPDATE media SET download_count = download_count + 1 WHERE code = $1 RETURNING `+mediaColumns, code)
	if err != nil {
		return store.MediaRecord{}, notFound(err)
	}
	if r.s.observer != nil {
		r.s.observer.ObserveFlush("media", time.Since(start))
	}
	return rec, nil
}

func (r mediaRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM media`); err != nil {
		return 0, fmt.Errorf("pgstore: count media: %w", err)
	}
	return n, nil
}

func (r mediaRepo) TotalDownloads(ctx context.Context) (int64, error) {
	var n int64
	if err := r.s.db.GetContext(ctx, &n, `SELECT COALESCE(SUM(download_count), 0) FROM media`); err != nil {
		return 0, fmt.Errorf("pgstore: sum downloads: %w", err)
	}
	return n, nil
}

func (r mediaRepo) Top(ctx context.Context, n int) ([]store.MediaRecord, error) {
	var recs []store.MediaRecord
	err := r.s.db.SelectContext(ctx, &recs,
		`SELECT `+mediaColumns+` FROM media ORDER BY download_count DESC, code LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("pgstore: top media: %w", err)
	}
	return recs, nil
}

const channelColumns = `id, username, display_name, added_at`

type channelRepo struct{ s *Store }

func (r channelRepo) Put(ctx context.Context, rec store.ChannelRecord) error {
	_, err := r.s.exec(ctx, "channels", `
		INSERT INTO channels (`+channelColumns+`) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			added_at = EXCLUDED.added_at`,
		rec.ID, rec.Username, rec.DisplayName, rec.AddedAt)
	return err
}

func (r channelRepo) Get(ctx context.Context, id string) (store.ChannelRecord, error) {
	var rec store.ChannelRecord
	err := r.s.db.GetContext(ctx, &rec, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, id)
	return rec, notFound(err)
}

func (r channelRepo) Delete(ctx context.Context, id string) (store.ChannelRecord, error) {
	start := time.Now()
	var rec store.ChannelRecord
	err := r.s.db.GetContext(ctx, &rec, `DELETE FROM channels WHERE id = $1 RETURNING `+channelColumns, id)
	if err != nil {
		return store.ChannelRecord{}, notFound(err)
	}
	if r.s.observer != nil {
		r.s.observer.ObserveFlush("channels", time.Since(start))
	}
	return rec, nil
}

func (r channelRepo) List(ctx context.Context) ([]store.ChannelRecord, error) {
	var recs []store.ChannelRecord
	err := r.s.db.SelectContext(ctx, &recs, `SELECT `+channelColumns+` FROM channels ORDER BY added_at, id`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list channels: %w", err)
	}
	return recs, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Touch(ctx context.Context, id int64, at time.Time) (bool, error) {
	start := time.Now()
	var inserted bool
	err := r.s.db.GetContext(ctx, &inserted, `
		INSERT INTO users (id, joined_at, last_activity_at) VALUES ($1, $2, $2)
		ON CONFLICT (id) DO UPDATE SET last_activity_at = EXCLUDED.last_activity_at
		RETURNING (xmax = 0)`, id, at)
	if err != nil {
		return false, fmt.Errorf("pgstore: touch user: %w", err)
	}
	if r.s.observer != nil {
		r.s.observer.ObserveFlush("users", time.Since(start))
	}
	return inserted, nil
}

func (r userRepo) Get(ctx context.Context, id int64) (store.UserRecord, error) {
	var rec store.UserRecord
	err := r.s.db.GetContext(ctx, &rec, `
		SELECT id, joined_at, last_activity_at, downloads_count, is_subscribed
		FROM users WHERE id = $1`, id)
	return rec, notFound(err)
}

func (r userRepo) IncrementDownloads(ctx context.Context, id int64) error {
	n, err := r.s.exec(ctx, "users", `UPDATE users SET downloads_count = downloads_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r userRepo) SetSubscribed(ctx context.Context, id int64, subscribed bool) error {
	n, err := r.s.exec(ctx, "users", `UPDATE users SET is_subscribed = $2 WHERE id = $1`, id, subscribed)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r userRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("pgstore: count users: %w", err)
	}
	return n, nil
}
