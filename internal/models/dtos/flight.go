package dtos

import (
	"encoding/json"

	"drone-flight/registry/internal/ledger"
)

// RegisterFlightRequest is the registration payload. A basic registration
// only carries droneName; a full one adds the flight details.
type RegisterFlightRequest struct {
	DroneName         json.RawMessage `json:"droneName"`
	DroneModel        json.RawMessage `json:"droneModel,omitempty"`
	SerialNumber      json.RawMessage `json:"serialNumber,omitempty"`
	Weight            json.RawMessage `json:"weight,omitempty"`
	FlightPurpose     json.RawMessage `json:"flightPurpose,omitempty"`
	FlightDescription json.RawMessage `json:"flightDescription,omitempty"`
	FlightDate        json.RawMessage `json:"flightDate,omitempty"`
	StartTime         json.RawMessage `json:"startTime,omitempty"`
	EndTime           json.RawMessage `json:"endTime,omitempty"`
	Location          json.RawMessage `json:"location,omitempty"`
	Altitude          json.RawMessage `json:"altitude,omitempty"`

	Registrant string `json:"registrant,omitempty"`
	DataHash   string `json:"dataHash,omitempty"`
}

type RegisterFlightResponse struct {
	Message     string  `json:"message"`
	FlightID    uint64  `json:"flightId"`
	TxHash      string  `json:"txHash"`
	Registrant  string  `json:"registrant"`
	DataHash    *string `json:"dataHash,omitempty"`
	Event       string  `json:"event"`
	ExplorerURL string  `json:"explorerUrl"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ValidateFlightResponse struct {
	Result json.RawMessage `json:"result"`
}

type DroneIDResponse struct {
	DroneID  uint64 `json:"droneId"`
	Contract string `json:"contract"`
	ChainID  uint64 `json:"chainId"`
}

type LedgerEventsResponse struct {
	Events []ledger.Event `json:"events"`
	Next   uint64         `json:"next,omitempty"`
}
