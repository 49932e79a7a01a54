// Package acquire decides how a profile request is satisfied: registry
// hit, cache hit, or a fresh scrape.
//
// The states run strictly in order per request: CheckRegistry →
// CheckCache → Scrape → Persist → Return, with early exits on a registry
// or fresh-cache hit. Concurrent acquisitions for the same handle are
// not deduplicated; both may scrape and the last upsert wins.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/socialproof/profile-engine/internal/metrics"
	"github.com/socialproof/profile-engine/internal/profile"
)

// Orchestrator ties the registry, store and scraper together.
type Orchestrator struct {
	registry profile.Registry
	store    profile.Store
	scraper  profile.Scraper
	clock    profile.Clock
	logger   *zap.Logger
}

// New wires an Orchestrator.
func New(registry profile.Registry, store profile.Store, scraper profile.Scraper, clock profile.Clock, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		store:    store,
		scraper:  scraper,
		clock:    clock,
		logger:   logger,
	}
}

// Acquire resolves handle to a profile. With force set, cache freshness
// is ignored and a scrape always runs (the registry still wins: a
// registered binding must never be overridden by scraped data).
func (o *Orchestrator) Acquire(ctx context.Context, handle string, force bool) (profile.Result, error) {
	if res, ok := o.checkRegistry(ctx, handle); ok {
		metrics.ObserveAcquisition("registry")
		return res, nil
	}

	if !force {
		if res, ok := o.checkCache(ctx, handle); ok {
			metrics.ObserveAcquisition("cache")
			return res, nil
		}
	}

	scraped, err := o.scraper.Scrape(ctx, handle)
	if err != nil {
		metrics.ObserveAcquisition("failed")
		o.logger.Warn("scrape failed", zap.String("handle", handle), zap.Error(err))
		if errors.Is(err, profile.ErrScrapeFailed) {
			return profile.Result{}, err
		}
		return profile.Result{}, fmt.Errorf("%w: %v", profile.ErrScrapeFailed, err)
	}

	metrics.ObserveAcquisition("scrape")
	return o.persist(ctx, scraped), nil
}

// Avatar resolves just the avatar URL for handle, reusing the full
// acquisition path so freshness and registry precedence hold.
func (o *Orchestrator) Avatar(ctx context.Context, handle string) (string, error) {
	res, err := o.Acquire(ctx, handle, false)
	if err != nil {
		return "", err
	}
	if res.Profile.AvatarURL == nil {
		return "", fmt.Errorf("%w: no avatar for %s", profile.ErrNotFound, handle)
	}
	return *res.Profile.AvatarURL, nil
}

// checkRegistry returns a result when the handle has a registered,
// human-verified binding. Registry unavailability degrades to the
// cache/scrape path.
func (o *Orchestrator) checkRegistry(ctx context.Context, handle string) (profile.Result, bool) {
	user, err := o.registry.Lookup(ctx, handle)
	switch {
	case err == nil:
		metrics.ObserveRegistry("hit")
		return profile.Result{
			Profile: registryProfile(user, o.clock.Now()),
			Cached:  true,
			Source:  profile.SourceRegistry,
		}, true
	case errors.Is(err, profile.ErrNotFound):
		metrics.ObserveRegistry("miss")
	case errors.Is(err, profile.ErrRegistryUnavailable):
		metrics.ObserveRegistry("unavailable")
		o.logger.Warn("registry unavailable, falling through", zap.String("handle", handle), zap.Error(err))
	default:
		metrics.ObserveRegistry("unavailable")
		o.logger.Warn("registry lookup failed, falling through", zap.String("handle", handle), zap.Error(err))
	}
	return profile.Result{}, false
}

func (o *Orchestrator) checkCache(ctx context.Context, handle string) (profile.Result, bool) {
	rec, err := o.store.Get(ctx, handle)
	switch {
	case err == nil && o.store.IsFresh(rec):
		return profile.Result{Profile: rec, Cached: true, Source: profile.SourceCache}, true
	case err == nil:
		// stale: eligible for re-scrape
	case errors.Is(err, profile.ErrNotFound):
	default:
		// A broken cache read should not fail the request; the scrape
		// path can still produce an answer.
		o.logger.Error("cache read failed", zap.String("handle", handle), zap.Error(err))
	}
	return profile.Result{}, false
}

// persist upserts the scraped record. A write failure is logged and the
// unpersisted data is still returned: a cache-write failure must not
// block the user-visible result.
func (o *Orchestrator) persist(ctx context.Context, scraped profile.ScrapedProfile) profile.Result {
	saved, err := o.store.Upsert(ctx, scraped)
	if err != nil {
		o.logger.Error("cache write failed, returning unpersisted result",
			zap.String("handle", scraped.Handle), zap.Error(err))
		return profile.Result{Profile: scraped, Cached: false, Source: profile.SourceScrape}
	}
	return profile.Result{Profile: saved, Cached: false, Source: profile.SourceScrape}
}

// registryProfile maps a registry record onto the response shape. The
// registry has no scrape time, so the record is stamped with the lookup
// time instead of a zero timestamp.
func registryProfile(user profile.RegistryUser, at time.Time) profile.ScrapedProfile {
	return profile.ScrapedProfile{
		Handle:      user.Handle,
		FullName:    user.FullName,
		Bio:         user.Bio,
		AvatarURL:   user.AvatarURL,
		Followers:   user.Followers,
		LastScraped: at,
	}
}
