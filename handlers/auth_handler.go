package handlers

import (
	"log/slog"
	"net/http"

	"github.com/openlaps/apexfantasy/middleware"
	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/services"
)

type AuthHandler struct {
	auth   *services.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := readJSON(w, r, &creds); err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	manager, err := h.auth.SignUp(r.Context(), season, creds)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, manager)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := readJSON(w, r, &creds); err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	token, manager, err := h.auth.SignIn(r.Context(), season, creds)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{
		"token":   token,
		"manager": manager,
	})
}
