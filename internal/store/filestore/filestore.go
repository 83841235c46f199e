// Package filestore keeps each collection in its own indented JSON document
// and rewrites that document after every mutation.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/m3rciful/kinobot/internal/store"
)

const adminTimeLayout = "2006-01-02 15:04:05"

// Options configures a file-backed store.
type Options struct {
	// Dir holds the documents. An empty Dir keeps everything in memory.
	Dir          string
	AdminsFile   string
	MediaFile    string
	ChannelsFile string
	UsersFile    string

	OwnerID  int64
	Observer FlushObserver
	// Now overrides the clock used for admin last_updated stamps.
	Now func() time.Time
}

type adminDocument struct {
	AdminIDs    []int64 `json:"admin_ids"`
	LastUpdated string  `json:"last_updated"`
}

// Store is the file-backed store.Store.
type Store struct {
	owner int64
	now   func() time.Time

	admins   *collection[adminDocument]
	media    *collection[map[string]store.MediaRecord]
	channels *collection[map[string]store.ChannelRecord]
	users    *collection[map[int64]store.UserRecord]
}

var _ store.Store = (*Store)(nil)

// Open loads all four documents, creating missing ones.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.OwnerID <= 0 {
		return nil, errors.New("filestore: owner id is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	path := func(name, def string) string {
		if opts.Dir == "" {
			return ""
		}
		if name == "" {
			name = def
		}
		return filepath.Join(opts.Dir, name)
	}

	s := &Store{
		owner: opts.OwnerID,
		now:   opts.Now,
		admins: &collection[adminDocument]{
			name: "admins", path: path(opts.AdminsFile, "admins.json"), observer: opts.Observer,
			clone: func(doc adminDocument) adminDocument {
				doc.AdminIDs = slices.Clone(doc.AdminIDs)
				return doc
			},
		},
		media: &collection[map[string]store.MediaRecord]{
			name: "media", path: path(opts.MediaFile, "media.json"), observer: opts.Observer,
			clone: maps.Clone[map[string]store.MediaRecord],
		},
		channels: &collection[map[string]store.ChannelRecord]{
			name: "channels", path: path(opts.ChannelsFile, "channels.json"), observer: opts.Observer,
			clone: maps.Clone[map[string]store.ChannelRecord],
		},
		users: &collection[map[int64]store.UserRecord]{
			name: "users", path: path(opts.UsersFile, "users.json"), observer: opts.Observer,
			clone: maps.Clone[map[int64]store.UserRecord],
		},
	}

	if err := s.admins.load(ctx, s.defaultAdmins, s.fixAdmins); err != nil {
		return nil, fmt.Errorf("filestore: %w", err)
	}
	if err := s.media.load(ctx, emptyMap[string, store.MediaRecord], fixMedia); err != nil {
		return nil, fmt.Errorf("filestore: %w", err)
	}
	if err := s.channels.load(ctx, emptyMap[string, store.ChannelRecord], fixChannels); err != nil {
		return nil, fmt.Errorf("filestore: %w", err)
	}
	if err := s.users.load(ctx, emptyMap[int64, store.UserRecord], fixUsers); err != nil {
		return nil, fmt.Errorf("filestore: %w", err)
	}
	return s, nil
}

// NewMemory returns a store that never touches the disk. It fails only for
// a non-positive owner id.
func NewMemory(ownerID int64) (*Store, error) {
	return Open(context.Background(), Options{OwnerID: ownerID})
}

func (s *Store) Admins() store.Admins     { return adminRepo{s} }
func (s *Store) Media() store.Media       { return mediaRepo{s.media} }
func (s *Store) Channels() store.Channels { return channelRepo{s.channels} }
func (s *Store) Users() store.Users       { return userRepo{s.users} }

// Close is a no-op: every mutation is already on disk.
func (s *Store) Close() error { return nil }

func (s *Store) defaultAdmins() adminDocument {
	return adminDocument{
		AdminIDs:    []int64{s.owner},
		LastUpdated: s.now().Format(adminTimeLayout),
	}
}

// fixAdmins restores the owner into a hand-edited document and normalises order.
func (s *Store) fixAdmins(doc *adminDocument) {
	seen := make(map[int64]struct{}, len(doc.AdminIDs)+1)
	ids := make([]int64, 0, len(doc.AdminIDs)+1)
	for _, id := range append(doc.AdminIDs, s.owner) {
		if _, dup := seen[id]; dup || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	doc.AdminIDs = ids
}

func emptyMap[K comparable, V any]() map[K]V { return make(map[K]V) }

func fixMedia(m *map[string]store.MediaRecord) {
	if *m == nil {
		*m = make(map[string]store.MediaRecord)
	}
	for code, rec := range *m {
		rec.Code = code
		(*m)[code] = rec
	}
}

func fixChannels(m *map[string]store.ChannelRecord) {
	if *m == nil {
		*m = make(map[string]store.ChannelRecord)
	}
	for id, rec := range *m {
		rec.ID = id
		(*m)[id] = rec
	}
}

func fixUsers(m *map[int64]store.UserRecord) {
	if *m == nil {
		*m = make(map[int64]store.UserRecord)
	}
	for id, rec := range *m {
		rec.ID = id
		(*m)[id] = rec
	}
}
