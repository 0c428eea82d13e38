// Package respond writes JSON bodies and maps chat errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Vasu1712/chatcore/internal/chaterr"
	"github.com/Vasu1712/chatcore/internal/logger"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Status maps an error kind to its HTTP status. Errors without a kind
// are internal.
func Status(kind chaterr.Kind) int {
	switch kind {
	case chaterr.NotFound:
		return http.StatusNotFound
	case chaterr.Unauthenticated:
		return http.StatusUnauthorized
	case chaterr.PermissionDenied:
		return http.StatusForbidden
	case chaterr.InvalidArgument:
		return http.StatusBadRequest
	case chaterr.Conflict:
		return http.StatusConflict
	case chaterr.WriteFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err with its kind attached.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := chaterr.KindOf(err)
	status := Status(kind)
	if kind == "" {
		kind = "internal"
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "kind", kind, "err", err)
	}
	JSON(w, status, ErrorBody{Error: string(kind), Message: err.Error()})
}

// Since parses the optional ?since= cursor. Absent means start of log.
func Since(r *http.Request) (uint64, error) {
	v := r.URL.Query().Get("since")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, chaterr.Errorf(chaterr.InvalidArgument, "respond.Since", "since must be a non-negative integer, got %q", v)
	}
	return n, nil
}
