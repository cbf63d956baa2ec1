package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	pkgcache "github.com/yybrother989/tesla-trading-agent-sub000/pkg/cache"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/config"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// keyspace prefixes every cached query result so Clear can drop them
// without touching unrelated keys on a shared backend.
const keyspace = "bars"

// ResultCache fronts bar queries with per-granularity TTLs. Payloads are
// stored as JSON strings so the memory, redis and layered backends all
// round-trip them identically.
type ResultCache struct {
	store pkgcache.Service
	ttls  map[models.Granularity]time.Duration
	l     *logger.Logger
}

func NewResultCache(store pkgcache.Service, cfg *config.Config, l *logger.Logger) repository.ResultCache {
	return &ResultCache{
		store: store,
		ttls: map[models.Granularity]time.Duration{
			models.Granularity1m:  cfg.Cache.TTL.OneMinute,
			models.Granularity15m: cfg.Cache.TTL.FifteenMinute,
			models.Granularity60m: cfg.Cache.TTL.SixtyMinute,
			models.Granularity1d:  cfg.Cache.TTL.Daily,
		},
		l: l,
	}
}

// Key hashes the full query shape. Two requests differing in any parameter,
// limit included, never share an entry.
func (rc *ResultCache) Key(symbol string, g models.Granularity, from, to string, limit int) string {
	params := pkgcache.GenerateKeyWithParams(keyspace, symbol, string(g), from, to, limit)
	return fmt.Sprintf("%s:%s", keyspace, pkgcache.HashKey(params))
}

func (rc *ResultCache) TTLFor(g models.Granularity) time.Duration {
	if ttl, ok := rc.ttls[g]; ok && ttl > 0 {
		return ttl
	}
	return 30 * time.Second
}

// GetOrCompute serves key from cache when fresh, otherwise runs compute and
// stores its result for ttl. Compute errors are returned as-is and nothing
// is cached for them. Cache backend failures degrade to computing.
func (rc *ResultCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest interface{}, compute func(context.Context) (interface{}, error)) (bool, error) {
	var raw string
	err := rc.store.Get(ctx, key, &raw)
	switch {
	case err == nil:
		if uerr := json.Unmarshal([]byte(raw), dest); uerr == nil {
			return true, nil
		}
		// Undecodable entry, recompute and overwrite it below.
		rc.l.Warn("dropping undecodable cache entry", logger.String("key", key))
	case !errors.Is(err, pkgcache.ErrCacheMiss):
		rc.l.Warn("cache read failed", logger.Error(err), logger.String("key", key))
	}

	val, err := compute(ctx)
	if err != nil {
		return false, err
	}

	data, err := json.Marshal(val)
	if err != nil {
		return false, fmt.Errorf("encode cache payload: %w", err)
	}
	if serr := rc.store.Set(ctx, key, string(data), ttl); serr != nil {
		rc.l.Warn("cache write failed", logger.Error(serr), logger.String("key", key))
	}
	return false, json.Unmarshal(data, dest)
}

// Clear drops every cached query result. Called after ingestion lands new
// bars so readers never see stale windows longer than one request.
func (rc *ResultCache) Clear(ctx context.Context) error {
	return rc.store.DeleteByPattern(ctx, pkgcache.BuildPattern(keyspace+":"))
}
