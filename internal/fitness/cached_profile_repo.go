package fitness

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/coocood/freecache"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type ProfileStore interface {
	Get(ctx context.Context, userID uuid.UUID) (*RunningFitnessProfile, error)
	Upsert(ctx context.Context, p *RunningFitnessProfile) error
}

var _ ProfileStore = (*ProfileRepo)(nil)
var _ ProfileStore = (*CachedProfileRepo)(nil)

// CachedProfileRepo keeps recently read profiles in memory. Writes go through to the
// underlying store and refresh the cached entry.
type CachedProfileRepo struct {
	store      ProfileStore
	cache      *freecache.Cache
	ttlSeconds int
}

func NewCachedProfileRepo(store ProfileStore, sizeMB, ttlSeconds int) *CachedProfileRepo {
	megabyte := 1024 * 1024
	return &CachedProfileRepo{
		store:      store,
		cache:      freecache.NewCache(sizeMB * megabyte),
		ttlSeconds: ttlSeconds,
	}
}

func (c *CachedProfileRepo) Get(ctx context.Context, userID uuid.UUID) (*RunningFitnessProfile, error) {
	key := userID[:]
	if cached, err := c.cache.Get(key); err == nil {
		p := &RunningFitnessProfile{}
		unmarshalErr := json.Unmarshal(cached, p)
		if unmarshalErr == nil {
			return p, nil
		}
		log.Errorf("unmarshal cached profile for user %s: %s", userID, unmarshalErr)
		c.cache.Del(key)
	} else if !errors.Is(err, freecache.ErrNotFound) {
		log.Warnf("profile cache get for user %s: %s", userID, err)
	}

	p, err := c.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.set(userID, p)
	return p, nil
}

func (c *CachedProfileRepo) Upsert(ctx context.Context, p *RunningFitnessProfile) error {
	if err := c.store.Upsert(ctx, p); err != nil {
		c.cache.Del(p.UserID[:])
		return err
	}
	c.set(p.UserID, p)
	return nil
}

func (c *CachedProfileRepo) Invalidate(userID uuid.UUID) {
	c.cache.Del(userID[:])
}

func (c *CachedProfileRepo) set(userID uuid.UUID, p *RunningFitnessProfile) {
	data, err := json.Marshal(p)
	if err != nil {
		log.Errorf("marshal profile for cache: %s", err)
		return
	}
	if err := c.cache.Set(userID[:], data, c.ttlSeconds); err != nil {
		log.Warnf("set profile cache for user %s: %s", userID, err)
	}
}
