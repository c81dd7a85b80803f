package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/bloglist/apiserver/internal/services"
)

// UserHandler serves registration and the user directory.
type UserHandler struct {
	userService *services.UserService
	logger      logrus.FieldLogger
}

func NewUserHandler(userService *services.UserService, logger logrus.FieldLogger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler) {
	r.Get("/", handler.ListUsers)
	r.Post("/", handler.Register)
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.Register(r.Context(), req.Name, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			writeError(w, http.StatusConflict, "username must be unique")
			return
		}
		writeServiceError(w, r, h.logger, err, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=3"`
}
