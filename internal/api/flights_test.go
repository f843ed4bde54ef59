package api

import (
	"errors"
	"net/http"
	"testing"

	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/models/dtos"
	"drone-flight/registry/internal/validation"

	gethcommon "github.com/ethereum/go-ethereum/common"
)

func TestRegisterFlight_Scenario(t *testing.T) {
	deps := newTestDeps(t, nil, nil, nil)
	h := NewHandlers(deps)
	a := "0x00000000000000000000000000000000000000A1"
	b := "0x00000000000000000000000000000000000000B2"

	if got := deps.Services.Ledger.DroneID(t.Context()); got != 0 {
		t.Fatalf("Expected droneId 0 after deploy, got %d", got)
	}

	rr := doJSON(t, h.RegisterFlight(), http.MethodPost, "/api/registerFlight", `{"droneName":"x"}`, "X-Wallet-Address", a)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	first := decodeBody[dtos.RegisterFlightResponse](t, rr)
	if first.FlightID != 1 || first.Registrant != gethcommon.HexToAddress(a).Hex() {
		t.Errorf("Expected event (1, A), got (%d, %s)", first.FlightID, first.Registrant)
	}
	if first.Message != "Flight registered successfully!" {
		t.Errorf("Unexpected message %q", first.Message)
	}

	rr = doJSON(t, h.RegisterFlight(), http.MethodPost, "/api/registerFlight", `{"droneName":"y","registrant":"`+b+`"}`)
	second := decodeBody[dtos.RegisterFlightResponse](t, rr)
	if second.FlightID != 2 || second.Registrant != gethcommon.HexToAddress(b).Hex() {
		t.Errorf("Expected event (2, B), got (%d, %s)", second.FlightID, second.Registrant)
	}

	if got := deps.Services.Ledger.DroneID(t.Context()); got != 2 {
		t.Errorf("Expected droneId 2, got %d", got)
	}
}

func TestRegisterFlight_BadRequests(t *testing.T) {
	h := NewHandlers(newTestDeps(t, nil, nil, nil))

	cases := []struct {
		body string
		want string
	}{
		{`{}`, "Drone name is required"},
		{`{"droneName":"x","droneModel":"Mavic"}`, "Serial number is required for full registration"},
		{`not json`, "Invalid registration payload"},
	}
	for _, tc := range cases {
		rr := doJSON(t, h.RegisterFlight(), http.MethodPost, "/api/registerFlight", tc.body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.body, rr.Code)
			continue
		}
		if got := decodeBody[dtos.ErrorResponse](t, rr).Error; got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.body, tc.want, got)
		}
	}
}

func TestRegisterFlight_Revert(t *testing.T) {
	store := ledger.NewMemoryStore()
	store.CommitHook = func(ledger.Event) error { return errors.New("out of gas") }
	h := NewHandlers(newTestDeps(t, store, nil, nil))

	rr := doJSON(t, h.RegisterFlight(), http.MethodPost, "/api/registerFlight", `{"droneName":"x"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rr.Code)
	}
	if decodeBody[dtos.ErrorResponse](t, rr).Error == "" {
		t.Error("Expected error message")
	}
}

func TestValidateFlight_AnswerIsUnwrapped(t *testing.T) {
	v := &stubValidator{doc: `{"answer":"ok"}`}
	h := NewHandlers(newTestDeps(t, nil, v, nil))

	rr := doJSON(t, h.ValidateFlight(), http.MethodPost, "/api/validate-flight", `{"droneName":"x"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "{\"result\":\"ok\"}\n" {
		t.Errorf("Unexpected body %q", got)
	}
	if string(v.input) != `{"droneName":"x"}` {
		t.Errorf("Validator got %q", v.input)
	}
}

func TestValidateFlight_ComplianceResult(t *testing.T) {
	v := &stubValidator{doc: `{"complianceMessages":["Altitude within limits"]}`}
	h := NewHandlers(newTestDeps(t, nil, v, nil))

	rr := doJSON(t, h.ValidateFlight(), http.MethodPost, "/api/validate-flight", `{"droneName":"x","altitude":100}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	resp := decodeBody[struct {
		Result struct {
			ComplianceMessages []string `json:"complianceMessages"`
			DataHash           string   `json:"dataHash"`
			IpfsCid            string   `json:"ipfsCid"`
		} `json:"result"`
	}](t, rr)

	if len(resp.Result.ComplianceMessages) != 1 {
		t.Errorf("Expected 1 compliance message, got %v", resp.Result.ComplianceMessages)
	}
	if len(resp.Result.DataHash) != 66 || resp.Result.IpfsCid == "" {
		t.Errorf("Expected dataHash and ipfsCid to be filled: %+v", resp.Result)
	}
}

func TestValidateFlight_Failures(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		err      error
		status   int
		contains string
	}{
		{"not an object", `["x"]`, nil, http.StatusBadRequest, "Invalid flight data provided."},
		{"invalid json", `{`, nil, http.StatusBadRequest, "Invalid flight data provided."},
		{"trailing data", `{"droneName":"x"} not json at all`, nil, http.StatusBadRequest, "Invalid flight data provided."},
		{"non-zero exit", `{"droneName":"x"}`, &validation.ProcessError{ExitCode: 1, Stderr: "Traceback"}, http.StatusInternalServerError, "Error validating flight data."},
		{"timeout", `{"droneName":"x"}`, validation.ErrTimeout, http.StatusInternalServerError, "Validation timed out."},
		{"bad output", `{"droneName":"x"}`, validation.ErrInvalidOutput, http.StatusInternalServerError, "Error validating flight data."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandlers(newTestDeps(t, nil, &stubValidator{err: tc.err}, nil))
			rr := doJSON(t, h.ValidateFlight(), http.MethodPost, "/api/validate-flight", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("Expected status %d, got %d", tc.status, rr.Code)
			}
			if got := decodeBody[dtos.ErrorResponse](t, rr).Error; got != tc.contains {
				t.Errorf("Expected error %q, got %q", tc.contains, got)
			}
		})
	}
}

func TestValidateFlight_ReportedErrorIsFailure(t *testing.T) {
	v := &stubValidator{doc: `{"error":"Flight area overlaps restricted airspace"}`}
	h := NewHandlers(newTestDeps(t, nil, v, nil))

	rr := doJSON(t, h.ValidateFlight(), http.MethodPost, "/api/validate-flight", `{"droneName":"x"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rr.Code)
	}
	if got := decodeBody[dtos.ErrorResponse](t, rr).Error; got != "Flight area overlaps restricted airspace" {
		t.Errorf("Expected reported message, got %q", got)
	}
}

func TestGetArchivedFlight_NotConfigured(t *testing.T) {
	h := NewHandlers(newTestDeps(t, nil, nil, nil))
	rr := doJSON(t, h.GetArchivedFlight(), http.MethodGet, "/api/flights/x", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rr.Code)
	}
}
