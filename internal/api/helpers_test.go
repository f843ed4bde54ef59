package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"drone-flight/registry/internal/agent"
	"drone-flight/registry/internal/common"
	"drone-flight/registry/internal/config"
	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/metrics"
	"drone-flight/registry/internal/services"
	"drone-flight/registry/internal/validation"

	gethcommon "github.com/ethereum/go-ethereum/common"
)

var testContract = gethcommon.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// stubValidator returns a fixed document or error.
type stubValidator struct {
	doc   string
	err   error
	input []byte
}

func (s *stubValidator) Run(_ context.Context, input []byte) (json.RawMessage, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.doc), nil
}

func newTestDeps(t *testing.T, store ledger.Store, validator validation.Validator, planner agent.Planner, tools ...agent.Tool) *Dependencies {
	t.Helper()
	if store == nil {
		store = ledger.NewMemoryStore()
	}
	if validator == nil {
		validator = &stubValidator{doc: `{"answer":"ok"}`}
	}
	if planner == nil {
		planner = agent.PlannerFunc(func(context.Context, agent.PlanInput) (agent.Step, error) {
			return agent.Step{Final: "Welcome to the Drone Flight Registry."}, nil
		})
	}

	cfg := &config.Config{
		ChainID:     1337,
		ExplorerURL: "https://sepolia.etherscan.io/tx/",
		CORSOrigins: []string{"*"},
		Ledger:      config.LedgerConfig{Address: testContract, Store: "memory"},
		RateLimit:   config.RateLimitConfig{RPS: 100, Burst: 100},
	}
	m := metrics.NewMetricsRegistry()

	l, err := ledger.New(context.Background(), store, ledger.Options{ChainID: cfg.ChainID, Address: testContract})
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	hub := common.NewEventHub(16)
	l.Subscribe(hub)

	return &Dependencies{
		Config:  cfg,
		Metrics: m,
		Repo:    &Repositories{},
		Services: &Services{
			Ledger:       l,
			Registration: services.NewRegistrationService(l, cfg.ExplorerURL, m),
			Validation:   validation.NewService(validator, nil),
			Agent:        agent.NewDispatcher(planner, agent.NewRegistry(tools...), 20),
			EventHub:     hub,
		},
	}
}

func doJSON(t *testing.T, h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return out
}
