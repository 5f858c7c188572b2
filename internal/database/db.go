package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaiser100010/grc-system-sub002/internal/config"
)

// Open creates the pool. Connecting is lazy; the first query (or Ping)
// reaches the server.
func Open(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DBURL)
	if err != nil {
		return nil, err
	}
	pcfg.ConnConfig.ConnectTimeout = cfg.StoreTimeout
	pcfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, pcfg)
}
