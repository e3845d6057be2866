package repository

import (
	"context"
	"errors"
	"time"

	"NiftyEdge/internal/domain/models"
	domrepo "NiftyEdge/internal/domain/repository"
	"NiftyEdge/pkg/cache"
	applogger "NiftyEdge/pkg/logger"
)

var latestArtifactsKey = cache.GenerateKey("artifacts", "latest")

// CachedArtifactStore keeps the latest snapshot in a cache in front of another store.
// Level detail rows are never cached.
type CachedArtifactStore struct {
	next  domrepo.ArtifactStore
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

// NewCachedArtifactStore wraps next. A zero ttl keeps the entry until the next Save.
func NewCachedArtifactStore(next domrepo.ArtifactStore, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedArtifactStore {
	return &CachedArtifactStore{next: next, cache: c, ttl: ttl, l: l}
}

func (s *CachedArtifactStore) Save(ctx context.Context, a *models.Artifacts) error {
	if err := s.next.Save(ctx, a); err != nil {
		return err
	}
	snap := *a
	snap.Levels = nil
	if err := s.cache.Set(ctx, latestArtifactsKey, &snap, s.ttl); err != nil {
		s.warn("artifact cache write failed", err)
	}
	return nil
}

func (s *CachedArtifactStore) Load(ctx context.Context) (*models.Artifacts, error) {
	var a models.Artifacts
	err := s.cache.Get(ctx, latestArtifactsKey, &a)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.warn("artifact cache read failed", err)
	}

	loaded, err := s.next.Load(ctx)
	if err != nil {
		return nil, err
	}
	snap := *loaded
	snap.Levels = nil
	if err := s.cache.Set(ctx, latestArtifactsKey, &snap, s.ttl); err != nil {
		s.warn("artifact cache fill failed", err)
	}
	return loaded, nil
}

func (s *CachedArtifactStore) warn(msg string, err error) {
	if s.l != nil {
		s.l.Warn(msg, applogger.String("key", latestArtifactsKey), applogger.Error(err))
	}
}

var _ domrepo.ArtifactStore = (*CachedArtifactStore)(nil)
