package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/openlaps/apexfantasy/services"
)

type jsonResponse map[string]interface{}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	maxBytes := 1_048_576 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case err.Error() == "http: request body too large":
			return fmt.Errorf("body must not be larger than %d bytes", maxBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	js, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(js)
}

func errorResponse(w http.ResponseWriter, status int, message interface{}) {
	writeJSON(w, status, jsonResponse{"error": message})
}

func badRequestResponse(w http.ResponseWriter, err error) {
	errorResponse(w, http.StatusBadRequest, err.Error())
}

func idParam(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return id, nil
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы.
// Typed errors carry their detail payloads into the body so clients can
// render a precise message without re-querying.
func mapServiceErrorToHTTP(w http.ResponseWriter, logger *slog.Logger, err error) {
	var unknownDrivers *services.UnknownDriversError
	var budgetExceeded *services.BudgetExceededError
	var composition *services.CompositionError

	switch {
	case errors.As(err, &unknownDrivers):
		writeJSON(w, http.StatusNotFound, jsonResponse{
			"error":      unknownDrivers.Error(),
			"driver_ids": unknownDrivers.IDs,
		})
	case errors.As(err, &budgetExceeded):
		writeJSON(w, http.StatusUnprocessableEntity, jsonResponse{
			"error":   budgetExceeded.Error(),
			"budget":  budgetExceeded.Budget,
			"cost":    budgetExceeded.Cost,
			"over_by": budgetExceeded.OverBy,
		})
	case errors.As(err, &composition):
		writeJSON(w, http.StatusUnprocessableEntity, jsonResponse{
			"error":   composition.Error(),
			"missing": composition.Missing,
		})

	case errors.Is(err, services.ErrUnknownManager),
		errors.Is(err, services.ErrUnknownRace),
		errors.Is(err, services.ErrRosterNotFound),
		errors.Is(err, services.ErrDriverNotFound):
		errorResponse(w, http.StatusNotFound, err.Error())

	case errors.Is(err, services.ErrDuplicateRoster),
		errors.Is(err, services.ErrAlreadyProcessed),
		errors.Is(err, services.ErrDriverNameConflict),
		errors.Is(err, services.ErrUsernameConflict),
		errors.Is(err, services.ErrDriverStillReferenced),
		errors.Is(err, services.ErrConflict):
		errorResponse(w, http.StatusConflict, err.Error())

	case errors.Is(err, services.ErrInvalidSeason),
		errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrEmptyRoster),
		errors.Is(err, services.ErrDuplicateDrivers),
		errors.Is(err, services.ErrRosterTooLarge),
		errors.Is(err, services.ErrInvalidCategory),
		errors.Is(err, services.ErrInvalidVenuePoints),
		errors.Is(err, services.ErrEmptyDriverPool),
		errors.Is(err, services.ErrDegenerateValuation),
		errors.Is(err, services.ErrPasswordTooShort):
		errorResponse(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, services.ErrRosterLocked):
		errorResponse(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrForbiddenOperation),
		errors.Is(err, services.ErrRosterOwnershipInvalid):
		errorResponse(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		errorResponse(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrUploadsDisabled):
		errorResponse(w, http.StatusServiceUnavailable, err.Error())

	default:
		logger.Error("internal server error", slog.Any("error", err))
		errorResponse(w, http.StatusInternalServerError,
			"the server encountered a problem and could not process your request")
	}
}
