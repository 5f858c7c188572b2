package cmd

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaiser100010/grc-system-sub002/internal/config"
	"github.com/kaiser100010/grc-system-sub002/internal/database"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
	"github.com/kaiser100010/grc-system-sub002/internal/repository/memory"
	"github.com/kaiser100010/grc-system-sub002/internal/repository/postgres"
	"github.com/kaiser100010/grc-system-sub002/internal/service"
)

var errNeedsPostgres = errors.New("this command needs STORE=postgres and DB_DSN")

// app holds the wired stores and authenticator shared by the commands.
type app struct {
	pool      *pgxpool.Pool // nil for the memory store
	users     repository.UserRepository
	resources repository.ResourceRepository
	auth      *service.AuthService
}

func newApp(ctx context.Context) (*app, error) {
	a := &app{}
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := database.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect failed: %w", err)
		}
		a.pool = pool
		a.users = postgres.NewUserRepo(pool)
		a.resources = postgres.NewResourceRepo(pool)
	default:
		store := memory.New()
		a.users = store.Users()
		a.resources = store.Resources()
		log.Warn().Msg("using the in-memory store; data is lost on exit")
	}
	a.users = repository.WithUserTimeout(a.users, cfg.StoreTimeout)
	a.resources = repository.WithTimeout(a.resources, cfg.StoreTimeout)

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			a.Close()
			return nil, err
		}
		log.Warn().Msg("SESSION_SECRET not set; using a random key, sessions end on restart")
	}

	sessions := service.NewMemorySessionStore(cfg.SessionCapacity, cfg.SessionTTL, log)
	auth, err := service.NewAuthService(a.users, sessions, service.NewHasher(cfg.BcryptCost), secret, cfg.SessionTTL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.auth = auth
	return a, nil
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
