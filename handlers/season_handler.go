package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/openlaps/apexfantasy/seasons"
)

type SeasonHandler struct {
	resolver seasons.StoreResolver
	copier   *seasons.Copier
	logger   *slog.Logger
}

func NewSeasonHandler(resolver seasons.StoreResolver, copier *seasons.Copier, logger *slog.Logger) *SeasonHandler {
	return &SeasonHandler{resolver: resolver, copier: copier, logger: logger}
}

// List returns the years that already hold data, newest first.
func (h *SeasonHandler) List(w http.ResponseWriter, r *http.Request) {
	years, err := h.resolver.ListSeasons(r.Context())
	if err != nil {
		h.seasonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"seasons": years})
}

// Init provisions the storage for a season. Idempotent: re-initializing
// an existing season is a no-op.
func (h *SeasonHandler) Init(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if _, err := h.resolver.Resolve(r.Context(), year); err != nil {
		h.seasonError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, jsonResponse{"year": year})
}

// Stats reports the aggregate counts and value sums for a season.
func (h *SeasonHandler) Stats(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	stats, err := seasons.Stats(r.Context(), h.resolver, year)
	if err != nil {
		h.seasonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type copyRequest struct {
	Source      int      `json:"source"`
	Target      int      `json:"target"`
	Collections []string `json:"collections"`
}

// Copy duplicates collections from one season into another. Partial
// failures are reported in the summary, not as an HTTP error.
func (h *SeasonHandler) Copy(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}
	if len(req.Collections) == 0 {
		req.Collections = []string{seasons.CollectionDrivers, seasons.CollectionManagers, seasons.CollectionRaces}
	}

	summary, err := h.copier.Copy(r.Context(), req.Source, req.Target, req.Collections)
	if err != nil {
		h.seasonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *SeasonHandler) seasonError(w http.ResponseWriter, err error) {
	if errors.Is(err, seasons.ErrInvalidSeason) {
		badRequestResponse(w, err)
		return
	}
	mapServiceErrorToHTTP(w, h.logger, err)
}

func yearParam(r *http.Request) (int, error) {
	return idParam(r, "year")
}

// parseYearQuery reads an optional integer query parameter, falling back
// to def when absent.
func parseYearQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
