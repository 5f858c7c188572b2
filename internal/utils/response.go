package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
)

const maxBody = 1 << 20

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a success envelope around data.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, models.OK(data))
}

// Error writes a failure envelope with msg.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, models.Fail(msg))
}

// Fail writes the envelope for err using the error taxonomy.
func Fail(w http.ResponseWriter, err error) {
	Error(w, apperr.Status(err), apperr.Public(err))
}

// DecodeJSON reads a single JSON object from r into dst. Unknown fields and
// trailing data are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Validation("request body is empty")
		case errors.As(err, &syn), errors.Is(err, io.ErrUnexpectedEOF):
			return apperr.Validation("malformed JSON body")
		case errors.As(err, &typ):
			return apperr.Validation("invalid value for " + typ.Field)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return apperr.Validation("unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field "))
		}
		return apperr.Validation("malformed JSON body")
	}
	if dec.More() {
		return apperr.Validation("request body must hold a single JSON object")
	}
	return nil
}
