package handlers

import (
	"log/slog"
	"net/http"

	"github.com/openlaps/apexfantasy/middleware"
	"github.com/openlaps/apexfantasy/services"
)

const maxPortraitBytes = 5 << 20 // 5MB

type DriverHandler struct {
	drivers *services.DriverService
	logger  *slog.Logger
}

func NewDriverHandler(drivers *services.DriverService, logger *slog.Logger) *DriverHandler {
	return &DriverHandler{drivers: drivers, logger: logger}
}

func (h *DriverHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.DriverInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	driver, err := h.drivers.Create(r.Context(), season, input)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, driver)
}

func (h *DriverHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var input services.DriverInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	driver, err := h.drivers.Update(r.Context(), season, id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, driver)
}

func (h *DriverHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	if err := h.drivers.Delete(r.Context(), season, id); err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DriverHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	driver, err := h.drivers.GetByID(r.Context(), season, id)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, driver)
}

func (h *DriverHandler) List(w http.ResponseWriter, r *http.Request) {
	season := middleware.SeasonFromContext(r.Context())
	drivers, err := h.drivers.List(r.Context(), season)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

// UploadPortrait accepts the raw image body; content type comes from the
// request header.
func (h *DriverHandler) UploadPortrait(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		errorResponse(w, http.StatusBadRequest, "Content-Type header is required")
		return
	}

	season := middleware.SeasonFromContext(r.Context())
	body := http.MaxBytesReader(w, r.Body, maxPortraitBytes)
	driver, err := h.drivers.UploadPortrait(r.Context(), season, id, contentType, body)
	if err != nil {
		mapServiceErrorToHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, driver)
}
