// Package configstore is the Config Store: per-tenant, scope-fallback
// tunables (thresholds, rule constants) backed by the configs table
// and fronted by a short-TTL redis cache. The cache is never
// authoritative — a cache miss or a redis outage falls straight
// through to the database, and a stale cached value expires on its
// own within CacheTTL rather than needing active invalidation.
package configstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/mmdatafocus/invoice-sieve/models"
)

// CacheTTL bounds how long a cached config value may be served before
// a fresh database read is forced.
const CacheTTL = 30 * time.Second

// Scale defaults, read as a fallback whenever no config row exists at
// either scope.
const (
	DefaultTHold                   = 80.0
	DefaultTReview                 = 50.0
	DefaultCandidateCap            = 200
	DefaultSamePOTotalTol          = 0.005
	DefaultSamePOWindowDays        = 30
	DefaultBankChangeLookbackMonth = 12
	DefaultColdStartInvoices       = 50
	DefaultAlpha                   = 0.7
	DefaultBeta                    = 0.2
	DefaultGamma                   = 0.1
)

// GlobalScope is the fallback scope consulted when no vendor-scoped
// row exists.
const GlobalScope = "global"

// Store resolves config values with vendor-then-global fallback.
type Store struct {
	db    *gorm.DB
	cache *redis.Client
}

func NewStore(db *gorm.DB, cache *redis.Client) *Store {
	return &Store{db: db, cache: cache}
}

// vendorScope builds the scope string for a vendor-level override.
func vendorScope(vendorID string) string {
	return fmt.Sprintf("vendor:%s", vendorID)
}

// GetString resolves key with scope order vendor:{vendorID} then
// global, returning def if neither scope has a row.
func (s *Store) GetString(ctx context.Context, tenantID, vendorID, key, def string) (string, error) {
	if vendorID != "" {
		if v, ok, err := s.lookup(ctx, tenantID, vendorScope(vendorID), key); err != nil {
			return "", err
		} else if ok {
			return v, nil
		}
	}
	if v, ok, err := s.lookup(ctx, tenantID, GlobalScope, key); err != nil {
		return "", err
	} else if ok {
		return v, nil
	}
	return def, nil
}

func (s *Store) GetFloat(ctx context.Context, tenantID, vendorID, key string, def float64) (float64, error) {
	raw, err := s.GetString(ctx, tenantID, vendorID, key, "")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, nil
	}
	return v, nil
}

func (s *Store) GetInt(ctx context.Context, tenantID, vendorID, key string, def int) (int, error) {
	raw, err := s.GetString(ctx, tenantID, vendorID, key, "")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, nil
	}
	return v, nil
}

// lookup checks the cache, then the database, for one (tenant, scope,
// key) triple. Database errors other than not-found are propagated;
// any cache error, including redis being unavailable, is treated as a
// miss so the database remains the source of truth.
func (s *Store) lookup(ctx context.Context, tenantID, scope, key string) (string, bool, error) {
	cacheKey := fmt.Sprintf("cfg:%s:%s:%s", tenantID, scope, key)
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			return v, true, nil
		}
	}

	var row models.Config
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND scope = ? AND config_key = ?", tenantID, scope, key).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, row.Value, CacheTTL)
	}
	return row.Value, true, nil
}
