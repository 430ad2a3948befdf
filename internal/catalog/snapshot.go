package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/osd-exam/backend-registration/internal/examcode"
	"github.com/osd-exam/backend-registration/internal/lock"
)

const (
	snapshotCacheKey       = "catalog:snapshot"
	snapshotRefreshLockKey = "catalog:snapshot:refresh"
)

// Snapshot is an immutable, read-only view of the loaded catalog. It is
// loaded once per request path and injected into the selection and pricing
// code so nothing depends on ambient global state.
type Snapshot struct {
	Sessions []Session
	Products []Product

	byCode    map[string]int
	sessionID map[string]int
}

// NewSnapshot indexes the given rows. The input slices are not copied; the
// caller hands over ownership.
func NewSnapshot(sessions []Session, products []Product) *Snapshot {
	s := &Snapshot{
		Sessions:  sessions,
		Products:  products,
		byCode:    make(map[string]int, len(products)),
		sessionID: make(map[string]int, len(sessions)),
	}
	for i, p := range products {
		s.byCode[p.Code] = i
	}
	for i, sess := range sessions {
		s.sessionID[sess.ID] = i
	}
	return s
}

// ProductByCode resolves a product by exact code match.
func (s *Snapshot) ProductByCode(code string) (Product, bool) {
	if s == nil {
		return Product{}, false
	}
	i, ok := s.byCode[code]
	if !ok {
		return Product{}, false
	}
	return s.Products[i], true
}

// SessionByID resolves a session by its id.
func (s *Snapshot) SessionByID(id string) (Session, bool) {
	if s == nil {
		return Session{}, false
	}
	i, ok := s.sessionID[id]
	if !ok {
		return Session{}, false
	}
	return s.Sessions[i], true
}

// FullCode returns the Full-course product code for a level/location pair and
// whether such a product exists in the catalog.
func (s *Snapshot) FullCode(level, location string) (string, bool) {
	code := examcode.Encode(level, location, examcode.ModuleFull)
	_, ok := s.ProductByCode(code)
	return code, ok
}

// snapshotPayload is the cached wire form of a Snapshot.
type snapshotPayload struct {
	Sessions []Session `json:"sessions"`
	Products []Product `json:"products"`
}

// Loader fetches catalog snapshots, optionally short-circuiting through a
// Redis cache so every registration does not hammer the backing store.
type Loader struct {
	Client *Client
	Redis  *redis.Client
	Lock   *lock.Locker
	TTL    time.Duration
	Logger zerolog.Logger
}

// Load returns the current catalog snapshot. Cache failures degrade to a
// direct load; a store failure is returned to the caller, who must treat the
// catalog as unavailable rather than operate on a partial view.
func (l Loader) Load(ctx context.Context) (*Snapshot, error) {
	if cached, ok := l.fromCache(ctx); ok {
		return cached, nil
	}
	if l.Lock == nil {
		return l.refresh(ctx)
	}
	// Serialize refreshes across instances so an expired cache entry does not
	// turn every in-flight registration into a store round trip.
	var snap *Snapshot
	err := l.Lock.WithLock(ctx, snapshotRefreshLockKey, 10*time.Second, func(ctx context.Context) error {
		if cached, ok := l.fromCache(ctx); ok {
			snap = cached
			return nil
		}
		loaded, err := l.refresh(ctx)
		if err != nil {
			return err
		}
		snap = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (l Loader) refresh(ctx context.Context) (*Snapshot, error) {
	sessions, err := l.Client.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	products, err := l.Client.Products(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		// New cities can appear in the catalog before the display table
		// learns their name; the raw code is used until then.
		if !examcode.KnownLocation(p.Location) {
			l.Logger.Warn().Str("code", p.Code).Str("location", p.Location).Msg("product location not in display table")
		}
	}
	l.toCache(ctx, snapshotPayload{Sessions: sessions, Products: products})
	return NewSnapshot(sessions, products), nil
}

func (l Loader) fromCache(ctx context.Context) (*Snapshot, bool) {
	if l.Redis == nil || l.TTL <= 0 {
		return nil, false
	}
	data, err := l.Redis.Get(ctx, snapshotCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			l.Logger.Warn().Err(err).Msg("catalog snapshot cache read failed")
		}
		return nil, false
	}
	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		l.Logger.Warn().Err(err).Msg("catalog snapshot cache entry corrupt")
		return nil, false
	}
	return NewSnapshot(payload.Sessions, payload.Products), true
}

func (l Loader) toCache(ctx context.Context, payload snapshotPayload) {
	if l.Redis == nil || l.TTL <= 0 {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := l.Redis.Set(ctx, snapshotCacheKey, data, l.TTL).Err(); err != nil {
		l.Logger.Warn().Err(err).Msg("catalog snapshot cache write failed")
	}
}
