package handlers

import (
	"log/slog"
	"net/http"

	"github.com/openlaps/apexfantasy/middleware"
	"github.com/openlaps/apexfantasy/services"
)

type RosterHandler struct {
	rosters *services.RosterService
	logger  *slog.Logger
}

func NewRosterHandler(rosters *services.RosterService, logger *slog.Logger) *RosterHandler {
	return &RosterHandler{rosters: rosters, logger: logger}
}

type rosterUpdateRequest struct {
	DriverIDs    []int    `json:"driver_ids"`
	DeclaredCost *float64 `json:"declared_cost,omitempty"`
}

func (h *RosterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.RosterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, _ := middleware.ActorFromContext(r.Context())
	if input.ManagerID == 0 {
		input.ManagerID = actor.ManagerID
	}
	season := middleware.SeasonFromContext(r.Context())

	roster, err := h.rosters.Create(r.Context(), season, actor, input)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, roster)
}

func (h *RosterHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var req rosterUpdateRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, _ := middleware.ActorFromContext(r.Context())
	season := middleware.SeasonFromContext(r.Context())

	roster, err := h.rosters.Update(r.Context(), season, actor, id, req.DriverIDs, req.DeclaredCost)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (h *RosterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, _ := middleware.ActorFromContext(r.Context())
	season := middleware.SeasonFromContext(r.Context())

	if err := h.rosters.Delete(r.Context(), season, actor, id); err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RosterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, _ := middleware.ActorFromContext(r.Context())
	season := middleware.SeasonFromContext(r.Context())

	roster, err := h.rosters.GetByID(r.Context(), season, actor, id)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// GetOwn returns the caller's roster for the race in the path.
func (h *RosterHandler) GetOwn(w http.ResponseWriter, r *http.Request) {
	raceID, err := idParam(r, "raceID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, _ := middleware.ActorFromContext(r.Context())
	season := middleware.SeasonFromContext(r.Context())

	roster, err := h.rosters.GetOwn(r.Context(), season, actor, raceID)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (h *RosterHandler) ListByRace(w http.ResponseWriter, r *http.Request) {
	raceID, err := idParam(r, "raceID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	rosters, err := h.rosters.ListByRace(r.Context(), season, raceID)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rosters)
}

// Validate runs the composed roster checks without writing anything.
func (h *RosterHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var input services.RosterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	actor, _ := middleware.ActorFromContext(r.Context())
	if input.ManagerID == 0 {
		input.ManagerID = actor.ManagerID
	}
	season := middleware.SeasonFromContext(r.Context())

	validation, err := h.rosters.Validate(r.Context(), season, input)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, validation)
}
