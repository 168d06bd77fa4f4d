package handlers

import (
	"log/slog"
	"net/http"

	"github.com/openlaps/apexfantasy/middleware"
	"github.com/openlaps/apexfantasy/services"
)

type RaceHandler struct {
	races  *services.RaceService
	logger *slog.Logger
}

func NewRaceHandler(races *services.RaceService, logger *slog.Logger) *RaceHandler {
	return &RaceHandler{races: races, logger: logger}
}

func (h *RaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.RaceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	race, err := h.races.Create(r.Context(), season, input)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, race)
}

func (h *RaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var input services.RaceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	race, err := h.races.Update(r.Context(), season, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, race)
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

func (h *RaceHandler) SetLocked(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var req lockRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	if err := h.races.SetLocked(r.Context(), season, id, req.Locked); err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	race, err := h.races.GetByID(r.Context(), season, id)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, race)
}

func (h *RaceHandler) List(w http.ResponseWriter, r *http.Request) {
	season := middleware.SeasonFromContext(r.Context())
	races, err := h.races.List(r.Context(), season)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, races)
}

func (h *RaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	if err := h.races.Delete(r.Context(), season, id); err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
