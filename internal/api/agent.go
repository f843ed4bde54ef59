package api

import (
	"encoding/json"
	"net/http"

	"drone-flight/registry/internal/agent"
	reqctx "drone-flight/registry/internal/context"
	"drone-flight/registry/internal/logging"
)

// AgentTurn handles POST /mcp
//
// @Summary Run one conversational registration turn
// @Tags Agent
// @Accept json
// @Success 200 {object} agent.Response
// @Failure 500 {object} agent.ErrorResponse
// @Router /mcp [post]
func (h *Handlers) AgentTurn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := h.deps.Metrics

		var req agent.Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			m.AgentTurnsTotal.WithLabelValues("bad_request").Inc()
			respondJSON(w, http.StatusInternalServerError, agent.ErrorResponse{Error: "Agent failed", Details: "invalid request body: " + err.Error()})
			return
		}

		resp, err := h.deps.Services.Agent.Run(r.Context(), req)
		if err != nil {
			m.AgentTurnsTotal.WithLabelValues("error").Inc()
			logging.Error("Agent turn failed",
				"request_id", reqctx.GetRequestID(r.Context()),
				"error", err.Error(),
			)
			respondJSON(w, http.StatusInternalServerError, agent.ErrorResponse{Error: "Agent failed", Details: err.Error()})
			return
		}

		m.AgentTurnsTotal.WithLabelValues("ok").Inc()
		respondJSON(w, http.StatusOK, resp)
	}
}
