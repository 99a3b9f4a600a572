package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sandwich_hub/internal/domain"
)

// clientMessages are the only texts a 4xx answer carries besides request
// errors. Refinements come before the sentinel they wrap.
var clientMessages = []struct {
	err error
	msg string
}{
	{domain.ErrEmptyBody, "message body is empty"},
	{domain.ErrSelfConversation, "cannot start a conversation with yourself"},
	{domain.ErrNotParticipant, "not a participant in this conversation"},
	{domain.ErrIncompleteTeam, "not all assignees have completed their part"},
	{domain.ErrValidation, "invalid input"},
	{domain.ErrUnauthorized, "unauthorized"},
	{domain.ErrForbidden, "forbidden"},
	{domain.ErrNotFound, "not found"},
	{domain.ErrConflict, "already exists"},
}

// publicError is an error whose text is safe to send as is.
type publicError interface {
	error
	Public() string
}

func clientMessage(err error) string {
	var pe publicError
	if errors.As(err, &pe) {
		return pe.Public()
	}
	for _, m := range clientMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "request failed"
}

// writeError maps service errors onto status codes and fixed messages.
// Unexpected errors are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrIncompleteTeam):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": clientMessage(err)})
}

// pathID parses a numeric URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &invalidParam{name: name}
	}
	return id, nil
}

type invalidParam struct{ name string }

func (e *invalidParam) Error() string { return "invalid " + e.name }

func (e *invalidParam) Public() string { return e.Error() }

func (e *invalidParam) Unwrap() error { return domain.ErrValidation }
