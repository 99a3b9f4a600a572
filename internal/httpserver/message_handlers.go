package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"sandwich_hub/internal/service"
)

type messageRequest struct {
	Content string `json:"content" validate:"required"`
}

// @Summary      List messages
// @Description  The latest messages, oldest first
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Param        limit query int false "Maximum number of messages"
// @Success      200  {array}  service.MessageResponse
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{conversationID}/messages [get]
func handleListMessages(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "conversationID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		msgs, err := msgSvc.ListMessages(r.Context(), id, CurrentUser(r).ID, limit)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// @Summary      Post a message
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Param        input body messageRequest true "Message"
// @Success      201  {object}  service.MessageResponse
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{conversationID}/messages [post]
func handleCreateMessage(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "conversationID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var req messageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		msg, err := msgSvc.PostMessage(r.Context(), id, CurrentUser(r).ID, req.Content)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

// @Summary      Edit a message
// @Description  Author or moderate_messages
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        messageID path int true "Message ID"
// @Param        input body messageRequest true "New content"
// @Success      200  {object}  service.MessageResponse
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /messages/{messageID} [patch]
func handleEditMessage(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "messageID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var req messageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		msg, err := msgSvc.EditMessage(r.Context(), id, CurrentUser(r).ID, req.Content)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// @Summary      Delete a message
// @Description  Author or moderate_messages
// @Tags         messages
// @Security     BearerAuth
// @Param        messageID path int true "Message ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /messages/{messageID} [delete]
func handleDeleteMessage(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "messageID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := msgSvc.DeleteMessage(r.Context(), id, CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
