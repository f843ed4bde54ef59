package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/logging"
	"drone-flight/registry/internal/metrics"
	"drone-flight/registry/internal/models/dtos"
	"drone-flight/registry/internal/validation"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const RegisteredMessage = "Flight registered successfully!"

// ValidationError is a client error in the registration payload.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// RegistrationService turns registration payloads into ledger calls
type RegistrationService struct {
	ledger      *ledger.Ledger
	explorerURL string
	metrics     *metrics.MetricsRegistry
}

// NewRegistrationService creates a registration service. metrics may be nil.
func NewRegistrationService(l *ledger.Ledger, explorerURL string, m *metrics.MetricsRegistry) *RegistrationService {
	return &RegistrationService{ledger: l, explorerURL: explorerURL, metrics: m}
}

// RegisterFlight validates body and registers one flight. walletHeader is
// the X-Wallet-Address header, used when the body names no registrant.
func (svc *RegistrationService) RegisterFlight(ctx context.Context, body []byte, walletHeader string) (*dtos.RegisterFlightResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, &ValidationError{Message: "Invalid registration payload"}
	}
	var req dtos.RegisterFlightRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &ValidationError{Message: "Invalid registration payload"}
	}

	if !truthy(req.DroneName) {
		return nil, &ValidationError{Message: "Drone name is required"}
	}
	full := truthy(req.DroneModel)
	if full && !truthy(req.SerialNumber) {
		return nil, &ValidationError{Message: "Serial number is required for full registration"}
	}

	registrant, err := resolveRegistrant(req.Registrant, walletHeader)
	if err != nil {
		return nil, err
	}

	dataHash, err := resolveDataHash(req.DataHash, fields, full)
	if err != nil {
		return nil, err
	}

	ev, err := svc.ledger.RegisterFlight(ctx, registrant, dataHash)
	if err != nil {
		if svc.metrics != nil {
			svc.metrics.RegistrationReverts.Inc()
		}
		logging.Error("Flight registration failed",
			"registrant", registrant.Hex(),
			"error", err.Error(),
		)
		return nil, err
	}

	logging.Info("Flight registered",
		"flight_id", ev.FlightID,
		"registrant", ev.Registrant.Hex(),
		"tx_hash", ev.TxHash.Hex(),
		"event", ev.Name,
	)

	resp := &dtos.RegisterFlightResponse{
		Message:     RegisteredMessage,
		FlightID:    ev.FlightID,
		TxHash:      ev.TxHash.Hex(),
		Registrant:  ev.Registrant.Hex(),
		Event:       ev.Name,
		ExplorerURL: svc.explorerURL + ev.TxHash.Hex(),
	}
	if ev.DataHash != nil {
		h := ev.DataHash.Hex()
		resp.DataHash = &h
	}
	return resp, nil
}

func resolveRegistrant(fromBody, fromHeader string) (common.Address, error) {
	raw := strings.TrimSpace(fromBody)
	if raw == "" {
		raw = strings.TrimSpace(fromHeader)
	}
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, &ValidationError{Message: "Invalid registrant address"}
	}
	return common.HexToAddress(raw), nil
}

// resolveDataHash prefers a hash the client got from validation. Otherwise
// full registrations hash their own canonical payload and basic ones carry
// no hash.
func resolveDataHash(provided string, fields map[string]json.RawMessage, full bool) (*common.Hash, error) {
	if provided = strings.TrimSpace(provided); provided != "" {
		b, err := decodeHash(provided)
		if err != nil {
			return nil, &ValidationError{Message: "Invalid data hash"}
		}
		h := common.BytesToHash(b)
		return &h, nil
	}
	if !full {
		return nil, nil
	}

	details := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if k == "registrant" || k == "dataHash" {
			continue
		}
		details[k] = v
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode flight details: %w", err)
	}
	canonical, err := validation.Canonicalize(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize flight details: %w", err)
	}
	h := validation.DataHash(canonical)
	return &h, nil
}

func decodeHash(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*common.HashLength {
		return nil, fmt.Errorf("expected %d hex characters", 2*common.HashLength)
	}
	return hexutil.Decode("0x" + s)
}

// truthy mirrors the presence checks of the web form: missing, null, false,
// 0 and "" all count as absent.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false", `""`, "0":
		return false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0
	}
	return true
}
