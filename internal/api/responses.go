package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pixeon-io/pixeon/internal/auth"
	"github.com/pixeon-io/pixeon/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps a service error to a status code. Only caller-safe
// messages reach the client; causes go to the log.
func (api *Api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusBadRequest, common.Message(err, "bad request"))
	case errors.Is(err, common.ErrAuth):
		auth.Unauthorized(w, common.Message(err, common.ErrAuth.Error()))
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, common.Message(err, "not found"))
	default:
		api.log.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSONError(w, http.StatusInternalServerError, common.Message(err, "internal server error"))
	}
}
