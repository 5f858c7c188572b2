package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/utils"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health answers 200 while the store responds to Ping, 503 otherwise.
func Health(log zerolog.Logger, store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			fail(log, w, r, err)
			return
		}
		utils.OK(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	}
}
