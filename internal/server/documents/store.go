// Package documents is the document entity store: schema-flexible nested
// documents, each linked to one relational row through a plain integer
// field. Content collections are keyed by that foreign id. Event collections
// (analytics, security_audit) are append-only.
package documents

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Collection names.
const (
	UsersProfile   = "users_profile"
	ArtistsProfile = "artists_profile"
	AlbumsContent  = "albums_content"
	SongsContent   = "songs_content"
	Contracts      = "contracts"
	Analytics      = "analytics"
	SecurityAudit  = "security_audit"
	RealtimeStats  = "realtime_stats"
)

// Fields maintained by the store.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// DefaultAuditTTL is how long security_audit entries are kept.
const DefaultAuditTTL = 90 * 24 * time.Hour

var foreignKeys = map[string]string{
	UsersProfile:   "user_id",
	ArtistsProfile: "artist_id",
	AlbumsContent:  "album_id",
	SongsContent:   "song_id",
	Contracts:      "contract_id",
}

var ErrUnknownCollection = errors.New("unknown document collection")

// ForeignKey returns the field that links documents in coll to their
// relational row.
func ForeignKey(coll string) (string, error) {
	key, ok := foreignKeys[coll]
	if !ok {
		return "", ErrUnknownCollection
	}
	return key, nil
}

// Query selects documents by field equality and a created_at window
// [From, To). Limit 0 means no limit.
type Query struct {
	Equals Fields
	From   *time.Time
	To     *time.Time
	Skip   int
	Limit  int
	// Newest sorts by created_at descending instead of ascending.
	Newest bool
}

type Store interface {
	// UpsertByForeignID creates the document if absent, otherwise merges the
	// top-level fields of patch. updated_at is always refreshed and
	// created_at is set on insert. It returns the stored document.
	UpsertByForeignID(ctx context.Context, coll string, foreignID int64, patch Fields) (Fields, error)
	// FindByForeignID returns an empty Fields when no document exists.
	FindByForeignID(ctx context.Context, coll string, foreignID int64) (Fields, error)
	DeleteByForeignID(ctx context.Context, coll string, foreignID int64) (bool, error)

	// Append inserts an event document stamped with created_at.
	Append(ctx context.Context, coll string, doc Fields) error
	// Find returns one page of matches and the total match count.
	Find(ctx context.Context, coll string, q Query) ([]Fields, int64, error)
	DeleteOlderThan(ctx context.Context, coll string, cutoff time.Time) (int64, error)
	// IncrementCounters adds counters (dotted paths allowed) to the document
	// matching key, creating it when absent.
	IncrementCounters(ctx context.Context, coll string, key Fields, counters map[string]float64) error

	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// MemoryURI selects the in-process store.
const MemoryURI = "memory://"

// Open connects to the store named by uri: MemoryURI or a mongodb:// URI.
func Open(ctx context.Context, uri, database string, auditTTL time.Duration) (Store, error) {
	if strings.HasPrefix(uri, MemoryURI) {
		return NewMemoryStore(), nil
	}
	return NewMongoStore(ctx, uri, database, auditTTL)
}

// contentPatch drops the store-maintained and key fields from a patch.
func contentPatch(patch Fields, key string) Fields {
	out := make(Fields, len(patch))
	for k, v := range patch {
		switch k {
		case key, FieldID, FieldCreatedAt, FieldUpdatedAt, "_id":
			continue
		}
		out[k] = v
	}
	return out
}
