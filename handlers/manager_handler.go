package handlers

import (
	"log/slog"
	"net/http"

	"github.com/openlaps/apexfantasy/middleware"
	"github.com/openlaps/apexfantasy/services"
)

type ManagerHandler struct {
	managers *services.ManagerService
	logger   *slog.Logger
}

func NewManagerHandler(managers *services.ManagerService, logger *slog.Logger) *ManagerHandler {
	return &ManagerHandler{managers: managers, logger: logger}
}

// Me returns the caller's profile with their rosters.
func (h *ManagerHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFromContext(r.Context())
	season := middleware.SeasonFromContext(r.Context())

	profile, err := h.managers.Profile(r.Context(), season, actor.ManagerID)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ManagerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	manager, err := h.managers.GetByID(r.Context(), season, id)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, manager)
}

func (h *ManagerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	season := middleware.SeasonFromContext(r.Context())
	managers, err := h.managers.Leaderboard(r.Context(), season)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, managers)
}

func (h *ManagerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	if err := h.managers.Delete(r.Context(), season, id); err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
