package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	reqctx "drone-flight/registry/internal/context"
	"drone-flight/registry/internal/logging"
	"drone-flight/registry/internal/models/dtos"
	"drone-flight/registry/internal/services"
	"drone-flight/registry/internal/validation"

	"github.com/go-chi/chi/v5"
)

// RegisterFlight handles POST /api/registerFlight
//
// @Summary Register a flight
// @Description Increments the ledger counter and emits a registration event.
// @Tags Flights
// @Accept json
// @Param X-Wallet-Address header string false "Registrant address"
// @Success 200 {object} dtos.RegisterFlightResponse
// @Failure 400 {object} dtos.ErrorResponse
// @Failure 500 {object} dtos.ErrorResponse
// @Router /api/registerFlight [post]
func (h *Handlers) RegisterFlight() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid registration payload")
			return
		}

		resp, err := h.deps.Services.Registration.RegisterFlight(r.Context(), body, r.Header.Get("X-Wallet-Address"))
		if err != nil {
			var verr *services.ValidationError
			if errors.As(err, &verr) {
				respondWithError(w, http.StatusBadRequest, verr.Message)
				return
			}
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}

		respondJSON(w, http.StatusOK, resp)
	}
}

// ValidateFlight handles POST /api/validate-flight
//
// @Summary Validate flight details
// @Description Runs the external compliance validator over the flight JSON.
// @Tags Flights
// @Accept json
// @Success 200 {object} dtos.ValidateFlightResponse
// @Failure 400 {object} dtos.ErrorResponse
// @Failure 429 {object} dtos.ErrorResponse
// @Failure 500 {object} dtos.ErrorResponse
// @Router /api/validate-flight [post]
func (h *Handlers) ValidateFlight() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := h.deps.Metrics

		body, err := readBody(w, r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid flight data provided.")
			return
		}

		start := time.Now()
		result, err := h.deps.Services.Validation.Validate(r.Context(), body)
		if err != nil {
			if errors.Is(err, validation.ErrInvalidInput) {
				respondWithError(w, http.StatusBadRequest, "Invalid flight data provided.")
				return
			}
			if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
				logging.Info("Client went away during validation", "request_id", reqctx.GetRequestID(r.Context()))
				return
			}

			outcome, message := validationFailure(err)
			m.ValidatorRunsTotal.WithLabelValues(outcome).Inc()
			m.ValidatorDuration.Observe(time.Since(start).Seconds())
			logging.Error("Flight validation failed",
				"request_id", reqctx.GetRequestID(r.Context()),
				"outcome", outcome,
				"error", err.Error(),
			)
			respondWithErrorDetails(w, http.StatusInternalServerError, message, err.Error())
			return
		}

		m.ValidatorRunsTotal.WithLabelValues("ok").Inc()
		m.ValidatorDuration.Observe(result.Duration.Seconds())
		respondJSON(w, http.StatusOK, dtos.ValidateFlightResponse{Result: result.Value})
	}
}

// validationFailure maps a validator error to a metrics outcome and the
// message returned to the client.
func validationFailure(err error) (string, string) {
	var reported *validation.ReportedError
	var procErr *validation.ProcessError
	switch {
	case errors.As(err, &reported):
		return "reported", reported.Message
	case errors.As(err, &procErr):
		return "exit", "Error validating flight data."
	case errors.Is(err, validation.ErrTimeout):
		return "timeout", "Validation timed out."
	case errors.Is(err, validation.ErrEmptyOutput),
		errors.Is(err, validation.ErrInvalidOutput),
		errors.Is(err, validation.ErrOutputTooLarge):
		return "bad_output", "Error validating flight data."
	default:
		return "error", "Error validating flight data."
	}
}

// GetArchivedFlight handles GET /api/flights/{cid}
//
// @Summary Fetch archived flight details
// @Tags Flights
// @Param cid path string true "Content id returned by validation"
// @Success 200 {object} object
// @Failure 404 {object} dtos.ErrorResponse
// @Failure 503 {object} dtos.ErrorResponse
// @Router /api/flights/{cid} [get]
func (h *Handlers) GetArchivedFlight() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		archive := h.deps.Services.Archive
		if archive == nil {
			respondWithError(w, http.StatusServiceUnavailable, "Flight archive is not configured")
			return
		}

		id := chi.URLParam(r, "cid")
		if err := validation.CheckContentID(id); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid content id")
			return
		}

		doc, err := archive.Fetch(r.Context(), id)
		if err != nil {
			respondWithErrorDetails(w, http.StatusNotFound, "Flight details not found", err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	}
}
