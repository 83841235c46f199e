// Package store defines the record collections the bot persists: the admin set,
// the media catalog, the channel list and the user registry. Backends live in
// the filestore and pgstore subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("store: record not found")

// MediaKind enumerates attachment kinds the catalog can deliver.
type MediaKind string

const (
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaAudio    MediaKind = "audio"
)

// Valid reports whether k is one of the deliverable kinds.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaVideo, MediaDocument, MediaAudio:
		return true
	}
	return false
}

// MediaRecord is a catalog entry keyed by its code.
type MediaRecord struct {
	Code          string    `json:"-" db:"code"`
	MediaRef      string    `json:"media_ref" db:"media_ref"`
	MediaKind     MediaKind `json:"media_kind" db:"media_kind"`
	Caption       string    `json:"caption" db:"caption"`
	UploaderID    int64     `json:"uploader_id" db:"uploader_id"`
	UploadedAt    time.Time `json:"uploaded_at" db:"uploaded_at"`
	DownloadCount int64     `json:"download_count" db:"download_count"`
}

// ChannelRecord is a registered channel keyed by its canonical chat id.
type ChannelRecord struct {
	ID          string    `json:"-" db:"id"`
	Username    string    `json:"username" db:"username"`
	DisplayName string    `json:"display_name" db:"display_name"`
	AddedAt     time.Time `json:"added_at" db:"added_at"`
}

// Handle returns "@username", or an empty string for channels without one.
func (c ChannelRecord) Handle() string {
	if c.Username == "" {
		return ""
	}
	return "@" + c.Username
}

// UserRecord tracks a user who has contacted the bot.
type UserRecord struct {
	ID             int64     `json:"-" db:"id"`
	JoinedAt       time.Time `json:"joined_at" db:"joined_at"`
	LastActivityAt time.Time `json:"last_activity_at" db:"last_activity_at"`
	DownloadsCount int64     `json:"downloads_count" db:"downloads_count"`
	// IsSubscribed caches the last gate verdict. Gating never reads it.
	IsSubscribed bool `json:"is_subscribed" db:"is_subscribed"`
}

// Admins is the admin set. The configured owner is always a member.
type Admins interface {
	// List returns member ids in ascending order.
	List(ctx context.Context) ([]int64, error)
	Contains(ctx context.Context, id int64) (bool, error)
	// Add reports false when id is already a member.
	Add(ctx context.Context, id int64) (bool, error)
	// Remove reports false when id is the owner or not a member.
	Remove(ctx context.Context, id int64) (bool, error)
}

// Media is the catalog keyed by code.
type Media interface {
	// Put creates or overwrites the record under rec.Code.
	Put(ctx context.Context, rec MediaRecord) error
	Get(ctx context.Context, code string) (MediaRecord, error)
	// Delete removes the record and returns it.
	Delete(ctx context.Context, code string) (MediaRecord, error)
	// List returns records ordered by upload time, then code.
	List(ctx context.Context) ([]MediaRecord, error)
	// IncrementDownloads bumps the counter and returns the updated record.
	IncrementDownloads(ctx context.Context, code string) (MediaRecord, error)
	Count(ctx context.Context) (int, error)
	TotalDownloads(ctx context.Context) (int64, error)
	// Top returns at most n records with the highest download counts.
	Top(ctx context.Context, n int) ([]MediaRecord, error)
}

// Channels is the channel list keyed by canonical chat id.
type Channels interface {
	Put(ctx context.Context, rec ChannelRecord) error
	Get(ctx context.Context, id string) (ChannelRecord, error)
	// Delete removes the channel and returns it.
	Delete(ctx context.Context, id string) (ChannelRecord, error)
	// List returns channels ordered by AddedAt, then id.
	List(ctx context.Context) ([]ChannelRecord, error)
}

// Users is the user registry keyed by user id.
type Users interface {
	// Touch creates the record on first contact and updates LastActivityAt.
	// It reports whether the record was created.
	Touch(ctx context.Context, id int64, at time.Time) (bool, error)
	Get(ctx context.Context, id int64) (UserRecord, error)
	IncrementDownloads(ctx context.Context, id int64) error
	SetSubscribed(ctx context.Context, id int64, subscribed bool) error
	Count(ctx context.Context) (int, error)
}

// Store groups the four collections. Collections are independent: no
// operation spans more than one.
type Store interface {
	Admins() Admins
	Media() Media
	Channels() Channels
	Users() Users
	Close() error
}
