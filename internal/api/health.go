package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"drone-flight/registry/internal/models/entities"
)

// HealthCheckHandler handles GET /healthCheck
//
// @Summary Health check
// @Description Verifies the server and its configured backends are reachable.
// @Tags Misc
// @Success 200 {object} entities.HealthCheckResponse
// @Failure 503 {object} entities.HealthCheckResponse
// @Router /healthCheck [get]
func (h *Handlers) HealthCheckHandler(upSince time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		services := make(map[string]entities.ServiceStatus)

		services["ledger"] = entities.ServiceStatus{
			Status:  "ok",
			Details: h.ledgerDetails(ctx),
		}

		if repo := h.deps.Repo.Ledger; repo != nil {
			services["ledger_db"] = status(repo.Ping(ctx), "Ledger database connected")
		}
		if stream := h.deps.Services.Stream; stream != nil {
			services["redis"] = status(stream.Ping(ctx), "Redis connected")
		}
		if index := h.deps.Repo.Index; index != nil {
			services["postgres_index"] = status(index.Ping(ctx), "Postgres index connected")
		}

		overallStatus := "ok"
		for _, svc := range services {
			if svc.Status != "ok" {
				overallStatus = "down"
				break
			}
		}

		resp := entities.HealthCheckResponse{
			Services: services,
			Status:   overallStatus,
			UpSince:  upSince.UTC(),
			Uptime:   time.Since(upSince).Round(time.Second).String(),
		}

		code := http.StatusOK
		if overallStatus != "ok" {
			code = http.StatusServiceUnavailable
		}
		respondJSON(w, code, resp)
	}
}

func (h *Handlers) ledgerDetails(ctx context.Context) string {
	l := h.deps.Services.Ledger
	return "droneId " + strconv.FormatUint(l.DroneID(ctx), 10) + " at " + l.Address().Hex()
}

func status(err error, okDetails string) entities.ServiceStatus {
	if err != nil {
		return entities.ServiceStatus{Status: "down", Details: err.Error()}
	}
	return entities.ServiceStatus{Status: "ok", Details: okDetails}
}
