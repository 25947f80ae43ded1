package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/elevenvotes/consensus/internal/domain/types"
	"github.com/elevenvotes/consensus/pkg/metrics"
)

// CachedStore wraps a primary Store with a Redis read-through cache of whole
// match views. Writes go to the primary and then refresh the cached view.
// Each cached view carries the primary's revision and a write never replaces
// a higher one, so concurrent refreshes cannot leave an older view behind.
// Redis failures are counted and otherwise ignored.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around primary.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

// NewRedisClient connects to addr, which is either host:port or a redis:// URL.
func NewRedisClient(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

func (s *CachedStore) PutSection(ctx context.Context, matchID string, sec types.Section, at time.Time) (types.MatchView, error) {
	view, err := s.primary.PutSection(ctx, matchID, sec, at)
	if err != nil {
		return view, err
	}
	s.cacheView(ctx, &view)
	return view, nil
}

func (s *CachedStore) Get(ctx context.Context, matchID string) (types.MatchView, error) {
	data, err := s.rdb.HGet(ctx, viewKey(matchID), "view").Bytes()
	switch {
	case err == nil:
		var v types.MatchView
		if json.Unmarshal(data, &v) == nil {
			metrics.RecordCacheLookup("hit")
			return v, nil
		}
		metrics.RecordCacheLookup("error")
	case errors.Is(err, redis.Nil):
		metrics.RecordCacheLookup("miss")
	default:
		metrics.RecordCacheLookup("error")
		metrics.RecordErrorByComponent("cache", "get")
	}

	view, err := s.primary.Get(ctx, matchID)
	if err != nil {
		return types.MatchView{}, err
	}
	s.cacheView(ctx, &view)
	return view, nil
}

func (s *CachedStore) Count(ctx context.Context) int {
	return s.primary.Count(ctx)
}

// Close releases the Redis connection pool.
func (s *CachedStore) Close() error {
	return s.rdb.Close()
}

func (s *CachedStore) cacheView(ctx context.Context, v *types.MatchView) {
	data, err := json.Marshal(v)
	if err != nil {
		metrics.RecordErrorByComponent("cache", "marshal")
		return
	}
	err = storeIfNewer.Run(ctx, s.rdb, []string{viewKey(v.MatchID)}, v.Revision, data, s.ttl.Milliseconds()).Err()
	if err != nil {
		metrics.RecordErrorByComponent("cache", "set")
	}
}

// storeIfNewer sets the rev and view fields of KEYS[1] unless the stored rev
// is already at or above ARGV[1]. ARGV[3] is the TTL in milliseconds.
var storeIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'rev')
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'rev', ARGV[1], 'view', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

func viewKey(matchID string) string { return fmt.Sprintf("view:%s", matchID) }
