package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/utils"
)

// fail writes the envelope for err. Server-side failures are logged with
// their full cause; the client only sees the generic message.
func fail(log zerolog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("req_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg("request failed")
	}
	utils.Fail(w, err)
}

func NotFound(w http.ResponseWriter) {
	utils.Error(w, http.StatusNotFound, "route not found")
}

func MethodNotAllowed(w http.ResponseWriter) {
	utils.Error(w, http.StatusMethodNotAllowed, "method not allowed")
}
