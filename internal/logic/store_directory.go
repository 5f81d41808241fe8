package logic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultStoreDirectoryTTL = 5 * time.Minute

// StoreDirectory caches store documents and reloads them once the TTL has passed.
type StoreDirectory struct {
	repo   repository.StoreRepository
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	stores   map[primitive.ObjectID]*models.Store
	loadedAt time.Time
	group    singleflight.Group
}

func NewStoreDirectory(repo repository.StoreRepository, cfg *conf.StoreDirectoryConfig, logger *zap.Logger) *StoreDirectory {
	ttl := defaultStoreDirectoryTTL
	if cfg != nil && cfg.TTLSeconds > 0 {
		ttl = time.Duration(cfg.TTLSeconds) * time.Second
	}
	return &StoreDirectory{
		repo:   repo,
		ttl:    ttl,
		logger: logger.Named("StoreDirectory"),
		now:    time.Now,
		stores: map[primitive.ObjectID]*models.Store{},
	}
}

// Refresh reloads all stores. Concurrent callers share one load.
func (d *StoreDirectory) Refresh(ctx context.Context) error {
	_, err, _ := d.group.Do("refresh", func() (interface{}, error) {
		list, err := d.repo.ListStores(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load stores: %w", err)
		}
		stores := make(map[primitive.ObjectID]*models.Store, len(list))
		for _, s := range list {
			stores[s.ID] = s
		}
		d.mu.Lock()
		d.stores = stores
		d.loadedAt = d.now()
		d.mu.Unlock()
		d.logger.Debug("stores reloaded", zap.Int("count", len(stores)))
		return nil, nil
	})
	return err
}

func (d *StoreDirectory) stale() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loadedAt.IsZero() || d.now().Sub(d.loadedAt) > d.ttl
}

// Get returns the store, refreshing on TTL expiry and once more on a miss.
func (d *StoreDirectory) Get(ctx context.Context, id primitive.ObjectID) (*models.Store, error) {
	if d.stale() {
		if err := d.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	if s := d.lookup(id); s != nil {
		return s, nil
	}
	// 新開的門店可能還不在快取裡
	if err := d.Refresh(ctx); err != nil {
		return nil, err
	}
	if s := d.lookup(id); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("store %s: %w", id.Hex(), repository.ErrNotFound)
}

func (d *StoreDirectory) lookup(id primitive.ObjectID) *models.Store {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stores[id]
}

// Name returns the store name, or "" when it cannot be resolved.
func (d *StoreDirectory) Name(ctx context.Context, id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	s, err := d.Get(ctx, *id)
	if err != nil {
		d.logger.Warn("Name: store lookup failed", zap.Error(err), zap.Stringer("storeID", id))
		return ""
	}
	return s.Name
}
