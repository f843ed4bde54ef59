package routes

import (
	"drone-flight/registry/internal/api"
	"drone-flight/registry/internal/mcpstub"
	"drone-flight/registry/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// RegisterAPIRoutes registers the registry API and the agent gateway
func RegisterAPIRoutes(r chi.Router, deps *api.Dependencies, handlers *api.Handlers) {
	rl := deps.Config.RateLimit
	validateLimiter := middleware.NewRateLimiter(rl.RPS, rl.Burst, rl.Whitelist...)
	agentLimiter := middleware.NewRateLimiter(rl.RPS, rl.Burst, rl.Whitelist...)

	r.Route("/api", func(a chi.Router) {
		a.Post("/registerFlight", handlers.RegisterFlight())

		// validator processes are expensive; limit per client
		a.With(validateLimiter.Middleware).Post("/validate-flight", handlers.ValidateFlight())

		a.Get("/flights/{cid}", handlers.GetArchivedFlight())

		a.Route("/ledger", func(l chi.Router) {
			l.Get("/droneId", handlers.DroneID())
			l.Get("/events", handlers.LedgerEvents())
			l.Get("/tx/{hash}", handlers.Receipt())
			l.Get("/registrants/{address}/events", handlers.RegistrantEvents())
			l.Get("/ws", handlers.LedgerEventsWS())
		})
	})

	r.With(agentLimiter.Middleware).Post("/mcp", handlers.AgentTurn())
}

// RegisterToolRoutes serves the mock MCP tools the agent calls.
func RegisterToolRoutes(r chi.Router, deps *api.Dependencies) {
	r.Route("/tools", func(t chi.Router) {
		t.Post("/geocode/mcp", mcpstub.GeocodeHandler())
		t.Post("/contract/mcp", mcpstub.ContractHandler(deps.Config.Ledger.Address, deps.Config.ChainID))
	})
}
