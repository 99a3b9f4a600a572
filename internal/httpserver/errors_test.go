package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"sandwich_hub/internal/domain"
)

func TestWriteError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found hides the lookup chain", fmt.Errorf("get user user_123_ab: %w", domain.ErrNotFound), http.StatusNotFound, "not found"},
		{"not a participant", fmt.Errorf("conversation 7: %w", domain.ErrNotParticipant), http.StatusForbidden, "not a participant in this conversation"},
		{"forbidden", fmt.Errorf("%w: only user_1_x may edit", domain.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"empty body", domain.ErrEmptyBody, http.StatusBadRequest, "message body is empty"},
		{"service validation", fmt.Errorf("%w: user_9 is not a group type", domain.ErrValidation), http.StatusBadRequest, "invalid input"},
		{"request body", &requestError{msg: "Content must satisfy required"}, http.StatusBadRequest, "Content must satisfy required"},
		{"path parameter", &invalidParam{name: "id"}, http.StatusBadRequest, "invalid id"},
		{"incomplete team", fmt.Errorf("%w: 1 of 2 done", domain.ErrIncompleteTeam), http.StatusConflict, "not all assignees have completed their part"},
		{"conflict", fmt.Errorf("email a@b.org: %w", domain.ErrConflict), http.StatusConflict, "already exists"},
		{"unexpected", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil), log, tc.err)

			req.Equal(tc.status, rec.Code)
			var body map[string]string
			req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
			req.Equal(tc.msg, body["error"])
		})
	}
}
