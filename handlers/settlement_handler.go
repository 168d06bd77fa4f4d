package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/openlaps/apexfantasy/middleware"
	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/services"
)

var errInvalidLimit = errors.New("limit must be a non-negative integer")

type SettlementHandler struct {
	settlement *services.SettlementService
	logger     *slog.Logger
}

func NewSettlementHandler(settlement *services.SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{settlement: settlement, logger: logger}
}

type settleRequest struct {
	VenuePoints float64             `json:"venue_points,omitempty"`
	Results     []models.RaceResult `json:"results"`
}

// Settle runs the one-shot re-pricing for a race. Admin-only.
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	raceID, err := idParam(r, "raceID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var req settleRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	data, err := h.settlement.Settle(r.Context(), season, raceID, req.VenuePoints, req.Results)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Simulate previews the re-pricing without persisting it.
func (h *SettlementHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	raceID, err := idParam(r, "raceID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var req settleRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	data, err := h.settlement.Simulate(r.Context(), season, raceID, req.VenuePoints, req.Results)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// History lists the most recently settled races, newest round first.
func (h *SettlementHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			badRequestResponse(w, errInvalidLimit)
			return
		}
		limit = parsed
	}

	season := middleware.SeasonFromContext(r.Context())
	races, err := h.settlement.History(r.Context(), season, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, races)
}

// DriverAnalysis returns a driver's expected-vs-actual record.
func (h *SettlementHandler) DriverAnalysis(w http.ResponseWriter, r *http.Request) {
	driverID, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	analysis, err := h.settlement.DriverAnalysis(r.Context(), season, driverID)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}
