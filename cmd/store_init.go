package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/attribution-cli/internal/cache"
	"github.com/sells-group/attribution-cli/internal/rules"
	"github.com/sells-group/attribution-cli/internal/store"
)

// initStore opens the configured store and, when Redis is configured,
// wraps it with the lookup cache. Redis being unreachable downgrades to the
// bare store rather than failing the command.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error

	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "attribution.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Addr == "" {
		return st, nil
	}
	kv, err := cache.NewRedisKV(ctx, cfg.Redis)
	if err != nil {
		zap.L().Warn("redis unavailable, running uncached", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		return st, nil
	}
	zap.L().Info("lookup cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Int("ttl_minutes", cfg.Redis.TTLMinutes))
	return cache.New(st, kv, time.Duration(cfg.Redis.TTLMinutes)*time.Minute), nil
}

// initRules loads the configured rule tables, folds in the seller domains
// from config, and validates the result.
func initRules() (*rules.Ruleset, error) {
	var rs *rules.Ruleset
	var err error

	if cfg.Rules.Path != "" {
		rs, err = rules.Load(cfg.Rules.Path)
		if err != nil {
			return nil, err
		}
	} else {
		rs = rules.Default()
	}

	rs.MergeSellerDomains(cfg.Seller.Domains)
	if len(rs.SellerDomains) == 0 {
		zap.L().Warn("no seller domains configured, every email will classify as inbound")
	}
	return rs, nil
}
