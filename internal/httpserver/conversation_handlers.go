package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/service"
)

type conversationCreateRequest struct {
	Type           string   `json:"type" validate:"required,oneof=direct group channel"`
	Name           string   `json:"name" validate:"max=120"`
	ParticipantIDs []string `json:"participant_ids" validate:"dive,required"`
}

type participantAddRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// @Summary      Create a conversation
// @Description  A direct conversation with the same pair is returned instead of duplicated
// @Tags         conversations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body conversationCreateRequest true "Conversation"
// @Success      201  {object}  domain.Conversation
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /conversations [post]
func handleCreateConversation(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req conversationCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		conv, err := convSvc.Create(r.Context(), CurrentUser(r).ID, service.ConversationCreateInput{
			Type:           domain.ConversationType(req.Type),
			Name:           req.Name,
			ParticipantIDs: req.ParticipantIDs,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, conv)
	}
}

// @Summary      List conversations
// @Description  Conversations the caller belongs to, most recent first, with unread counts
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  service.ConversationSummary
// @Router       /conversations [get]
func handleListConversations(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convs, err := convSvc.ListForUser(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
	}
}

// @Summary      Get a conversation
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Success      200  {object}  service.ConversationSummary
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{conversationID} [get]
func handleGetConversation(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "conversationID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		conv, err := convSvc.Get(r.Context(), id, CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

// @Summary      Delete a conversation
// @Description  Removes the conversation with its participants and messages. Requires delete_conversations.
// @Tags         conversations
// @Security     BearerAuth
// @Param        conversationID path int true "Conversation ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations/{conversationID} [delete]
func handleDeleteConversation(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "conversationID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := convSvc.DeleteConversation(r.Context(), id, CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary      Mark a conversation read
// @Tags         conversations
// @Security     BearerAuth
// @Param        conversationID path int true "Conversation ID"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /conversations/{conversationID}/read [post]
func handleMarkConversationRead(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "conversationID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := convSvc.MarkRead(r.Context(), id, CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

// @Summary      List participants
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Success      200  {array}  domain.Participant
// @Router       /conversations/{conversationID}/participants [get]
func handleListParticipants(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "conversationID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		members, err := convSvc.ListParticipants(r.Context(), id, CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, members)
	}
}

// @Summary      Add a participant
// @Tags         conversations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        conversationID path int true "Conversation ID"
// @Param        input body participantAddRequest true "User to add"
// @Success      200  {object}  domain.Participant
// @Failure      403  {object}  map[string]string
// @Router       /conversations/{conversationID}/participants [post]
func handleAddParticipant(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "conversationID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var req participantAddRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		p, err := convSvc.AddParticipant(r.Context(), id, CurrentUser(r).ID, req.UserID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// @Summary      Remove a participant
// @Description  Members may remove themselves
// @Tags         conversations
// @Security     BearerAuth
// @Param        conversationID path int true "Conversation ID"
// @Param        userID path string true "User ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Router       /conversations/{conversationID}/participants/{userID} [delete]
func handleRemoveParticipant(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "conversationID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := convSvc.RemoveParticipant(r.Context(), id, CurrentUser(r).ID, chi.URLParam(r, "userID")); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
