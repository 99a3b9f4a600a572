package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sandwich_hub/internal/service"
)

type userCreateRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	DisplayName string   `json:"display_name" validate:"required,max=120"`
	Password    string   `json:"password" validate:"required,min=8,max=72"`
	Role        string   `json:"role" validate:"omitempty,oneof=super_admin admin core_team volunteer viewer"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
}

// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        offset query int false "Offset"
// @Param        limit  query int false "Limit (max 200)"
// @Success      200  {array}   domain.User
// @Router       /users [get]
func handleListUsers(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > 200 {
			limit = 100
		}
		users, err := userSvc.List(r.Context(), max(offset, 0), limit)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// @Summary      Create a user
// @Description  Requires the manage_users capability
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body userCreateRequest true "New user"
// @Success      201  {object}  domain.User
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /users [post]
func handleCreateUser(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		user, err := userSvc.Create(r.Context(), CurrentUser(r).ID, service.RegisterInput{
			Email:       req.Email,
			DisplayName: req.DisplayName,
			Password:    req.Password,
			Role:        req.Role,
			Permissions: req.Permissions,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	}
}

// @Summary      Get a user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200  {object}  domain.User
// @Failure      404  {object}  map[string]string
// @Router       /users/{userID} [get]
func handleGetUser(userSvc *service.UserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := userSvc.GetByID(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
