// Package cache layers a Redis read-through over the store's hot lookup
// paths. Matching hits FindPersonsByAddress and GetCompany once per
// participant address on every email, so a short TTL takes most of that
// load off the database. Redis being down never fails a call; reads fall
// through to the store and the miss is logged.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/config"
	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/store"
)

const defaultTTL = 15 * time.Minute

// KV is the slice of the Redis command set the cache needs. Get reports a
// miss as found=false, not an error.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

type redisKV struct {
	client *redis.Client
}

func (r redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r redisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r redisKV) Close() error {
	return r.client.Close()
}

// NewRedisKV connects to Redis per the config and verifies the connection
// with a ping.
func NewRedisKV(ctx context.Context, cfg config.RedisConfig) (KV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "cache: ping redis at %s", cfg.Addr)
	}
	return redisKV{client: client}, nil
}

// CachedStore decorates a Store with cached person and company lookups.
// Writes invalidate the affected keys, so entity creation mid-batch is
// visible to later emails.
type CachedStore struct {
	store.Store

	kv  KV
	ttl time.Duration
}

// New wraps st with the cache. Methods not overridden here pass straight
// through to st.
func New(st store.Store, kv KV, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedStore{Store: st, kv: kv, ttl: ttl}
}

func personsKey(workspaceID, address string) string {
	return fmt.Sprintf("attribution:persons:%s:%s", workspaceID, address)
}

func companyKey(id string) string {
	return "attribution:company:" + id
}

// FindPersonsByAddress serves from Redis when the address was looked up
// recently. Only non-empty results are cached: persons are also created by
// the sync job outside this process, and a cached empty result would mask
// such a row for a full TTL.
func (c *CachedStore) FindPersonsByAddress(ctx context.Context, workspaceID, address string) ([]model.Person, error) {
	key := personsKey(workspaceID, address)

	raw, found, err := c.kv.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: persons read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		var persons []model.Person
		if jsonErr := json.Unmarshal([]byte(raw), &persons); jsonErr == nil {
			return persons, nil
		}
		zap.L().Warn("cache: dropping corrupt persons entry", zap.String("key", key))
		c.del(ctx, key)
	}

	persons, err := c.Store.FindPersonsByAddress(ctx, workspaceID, address)
	if err != nil {
		return nil, err
	}
	if len(persons) > 0 {
		c.put(ctx, key, persons)
	}
	return persons, nil
}

// GetCompany caches by row id. Not-found stays uncached for the same
// reason empty person lookups do.
func (c *CachedStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	key := companyKey(id)

	raw, found, err := c.kv.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: company read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		var company *model.Company
		if jsonErr := json.Unmarshal([]byte(raw), &company); jsonErr == nil {
			return company, nil
		}
		zap.L().Warn("cache: dropping corrupt company entry", zap.String("key", key))
		c.del(ctx, key)
	}

	company, err := c.Store.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	if company != nil {
		c.put(ctx, key, company)
	}
	return company, nil
}

// CreatePerson writes through and invalidates every address the new person
// is reachable by, so stale entries for those addresses do not hide the row.
func (c *CachedStore) CreatePerson(ctx context.Context, p *model.Person) (bool, error) {
	created, err := c.Store.CreatePerson(ctx, p)
	if err != nil {
		return created, err
	}

	keys := make([]string, 0, 4)
	for _, addr := range p.EmailAddresses() {
		keys = append(keys, personsKey(p.WorkspaceID, strings.ToLower(addr)))
	}
	c.del(ctx, keys...)
	return created, nil
}

// CreateCompany writes through and drops the company's id entry.
func (c *CachedStore) CreateCompany(ctx context.Context, company *model.Company) (bool, error) {
	created, err := c.Store.CreateCompany(ctx, company)
	if err != nil {
		return created, err
	}
	c.del(ctx, companyKey(company.ID))
	return created, nil
}

// Close releases the Redis connection before closing the store.
func (c *CachedStore) Close() error {
	if err := c.kv.Close(); err != nil {
		zap.L().Warn("cache: redis close failed", zap.Error(err))
	}
	return c.Store.Close()
}

func (c *CachedStore) put(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		zap.L().Warn("cache: marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, key, string(data), c.ttl); err != nil {
		zap.L().Warn("cache: write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedStore) del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.kv.Del(ctx, keys...); err != nil {
		zap.L().Warn("cache: invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// --- Ensure interface compliance ---
var _ store.Store = (*CachedStore)(nil)
