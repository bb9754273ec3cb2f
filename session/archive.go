package session

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultArchiveSize = 4096
	// DefaultArchiveExpire is the conarchive_expire default: how long a
	// disconnected client's uuid → client-id binding survives.
	DefaultArchiveExpire = 15 * time.Minute
)

// ArchiveEntry preserves a client's identity across reconnects.
type ArchiveEntry struct {
	ClientID int64
	LogoutAt time.Time
}

// Archive is the in-memory connection archive: uuid keyed, bounded, and
// time-expired. Nothing is persisted. The LRU bounds memory
// and lazily drops cold entries; expiry itself is checked against the
// logout timestamp so it follows the injected clock.
type Archive struct {
	lru *expirable.LRU[string, ArchiveEntry]
	ttl time.Duration
}

func NewArchive(ttl time.Duration) *Archive {
	if ttl <= 0 {
		ttl = DefaultArchiveExpire
	}
	return &Archive{
		lru: expirable.NewLRU[string, ArchiveEntry](defaultArchiveSize, nil, 2*ttl),
		ttl: ttl,
	}
}

// Store archives a departing client's uuid binding.
func (a *Archive) Store(uuid string, cid int64, logoutAt time.Time) {
	if uuid == "" {
		return
	}
	a.lru.Add(uuid, ArchiveEntry{ClientID: cid, LogoutAt: logoutAt})
}

// Lookup returns the archived binding for uuid if it has not expired as
// of now; an expired entry is dropped on the spot.
func (a *Archive) Lookup(uuid string, now time.Time) (ArchiveEntry, bool) {
	entry, ok := a.lru.Get(uuid)
	if !ok {
		return ArchiveEntry{}, false
	}
	if now.Sub(entry.LogoutAt) > a.ttl {
		a.lru.Remove(uuid)
		return ArchiveEntry{}, false
	}
	return entry, true
}

// Remove drops the binding once it has been consumed by a reconnect.
func (a *Archive) Remove(uuid string) {
	a.lru.Remove(uuid)
}

// Len is the number of archived entries still cached.
func (a *Archive) Len() int { return a.lru.Len() }
