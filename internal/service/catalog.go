package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/mergington-activities/internal/model"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/repository"
)

const listingKey = "activities"

// Catalog serves activity definitions and rosters. Listings are cached for
// ttl and flushed by every successful mutation made through this process.
type Catalog struct {
	store  Store
	cache  *gocache.Cache
	ttl    time.Duration
	logger zerolog.Logger

	// mu guards gen. Invalidate bumps gen so a listing read before the
	// bump is never stored after it.
	mu  sync.Mutex
	gen uint64
}

// NewCatalog constructs a Catalog. A ttl of zero disables the listing cache.
func NewCatalog(store Store, ttl time.Duration, logger zerolog.Logger) *Catalog {
	c := &Catalog{
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
	if ttl > 0 {
		c.cache = gocache.New(ttl, 2*ttl)
	}
	return c
}

// GetAll returns every activity with its current roster. The result is a
// copy and may be modified by the caller.
func (c *Catalog) GetAll(ctx context.Context) ([]model.Activity, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(listingKey); ok {
			if cached, ok := v.([]model.Activity); ok {
				c.logger.Debug().Msg("listing cache hit")
				return cloneActivities(cached), nil
			}
		}
	}

	gen := c.generation()
	activities, err := c.store.ListActivities(ctx)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.cache.Set(listingKey, cloneActivities(activities), c.ttl)
		}
		c.mu.Unlock()
	}
	return activities, nil
}

// FindByName returns one activity by name or slug. Lookups always read the
// store so the roster is current.
func (c *Catalog) FindByName(ctx context.Context, name string) (*model.Activity, error) {
	return c.store.GetActivity(ctx, name)
}

// Seed validates the dataset and inserts the entries that do not exist yet.
func (c *Catalog) Seed(ctx context.Context, seeds []model.ActivitySeed) (model.SeedResult, error) {
	names := make(map[string]string, len(seeds))
	for _, s := range seeds {
		if err := s.Validate(); err != nil {
			return model.SeedResult{}, err
		}
		key := repository.Slugify(s.Name)
		if prev, ok := names[key]; ok {
			return model.SeedResult{}, model.Invalid("name", fmt.Sprintf("activities %q and %q share the slug %q", prev, s.Name, key))
		}
		names[key] = s.Name
	}

	res, err := c.store.Seed(ctx, seeds)
	if err != nil {
		return model.SeedResult{}, fmt.Errorf("seed catalog: %w", err)
	}
	if res.ActivitiesCreated > 0 {
		c.Invalidate()
	}

	c.logger.Info().
		Int("created", res.ActivitiesCreated).
		Int("skipped", res.ActivitiesSkipped).
		Int("participants_created", res.ParticipantsCreated).
		Msg("catalog seeded")
	return res, nil
}

// Invalidate drops the cached listing and any listing read still in flight.
func (c *Catalog) Invalidate() {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	c.gen++
	c.cache.Delete(listingKey)
	c.mu.Unlock()
}

func (c *Catalog) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func cloneActivities(in []model.Activity) []model.Activity {
	out := make([]model.Activity, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
