// Package mcpstub serves the two mock MCP tools the agent gateway talks to:
// geocoding and registerFlight transaction preparation.
package mcpstub

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/logging"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type Request struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type GeocodeResult struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	FormattedAddress string  `json:"formatted_address"`
}

type PreparedTx struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	ChainID uint64 `json:"chainId"`
}

type FlightParams struct {
	DroneID uint64  `json:"droneId"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

var gazetteer = map[string]GeocodeResult{
	"madrid":        {40.4168, -3.7038, "Madrid, Spain"},
	"barcelona":     {41.3874, 2.1686, "Barcelona, Spain"},
	"lisbon":        {38.7223, -9.1393, "Lisbon, Portugal"},
	"london":        {51.5072, -0.1276, "London, UK"},
	"new york":      {40.7128, -74.0060, "New York, NY, USA"},
	"san francisco": {37.7749, -122.4194, "San Francisco, CA, USA"},
	"buenos aires":  {-34.6037, -58.3816, "Buenos Aires, Argentina"},
	"mexico city":   {19.4326, -99.1332, "Mexico City, Mexico"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode tool response", "error", err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request) (Request, bool) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return req, false
	}
	if strings.TrimSpace(req.Input) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input is required"})
		return req, false
	}
	return req, true
}

// GeocodeHandler resolves a place name from a small gazetteer. Unknown
// names get a stable coordinate derived from the name.
func GeocodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decode(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": Geocode(req.Input)})
	}
}

func Geocode(place string) GeocodeResult {
	key := strings.ToLower(strings.Join(strings.Fields(place), " "))
	if res, ok := gazetteer[key]; ok {
		return res
	}

	h := crypto.Keccak256([]byte(key))
	lat := float64(binary.BigEndian.Uint32(h[0:4]))/math.MaxUint32*180 - 90
	lng := float64(binary.BigEndian.Uint32(h[4:8]))/math.MaxUint32*360 - 180
	return GeocodeResult{
		Lat:              math.Round(lat*1e4) / 1e4,
		Lng:              math.Round(lng*1e4) / 1e4,
		FormattedAddress: strings.TrimSpace(place),
	}
}

// ContractHandler prepares registerFlight(bytes32) calldata for the
// configured ledger from "ID, LAT, LON" or a JSON FlightParams input.
func ContractHandler(contract common.Address, chainID uint64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decode(w, r)
		if !ok {
			return
		}

		params, err := ParseFlightParams(req.Input)
		if err != nil {
			logging.Debug("Could not parse flight parameters", "input", req.Input, "error", err.Error())
			writeJSON(w, http.StatusOK, map[string]any{
				"result": `Could not parse flight parameters (` + err.Error() + `). Expected "ID, LAT, LON".`,
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"result": PrepareTx(contract, chainID, params)})
	}
}

func PrepareTx(contract common.Address, chainID uint64, params FlightParams) PreparedTx {
	hash := params.Hash()
	return PreparedTx{
		To:      contract.Hex(),
		Data:    hexutil.Encode(ledger.EncodeRegisterFlight(&hash)),
		ChainID: chainID,
	}
}

// Hash is the keccak256 of the canonical JSON of the parameters.
func (p FlightParams) Hash() common.Hash {
	b, _ := json.Marshal(p)
	return crypto.Keccak256Hash(b)
}

func ParseFlightParams(input string) (FlightParams, error) {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "registerFlight(")
	input = strings.TrimSuffix(input, ")")

	var p FlightParams
	if strings.HasPrefix(input, "{") {
		if err := json.Unmarshal([]byte(input), &p); err != nil {
			return p, fmt.Errorf("invalid JSON: %w", err)
		}
	} else {
		parts := strings.Split(input, ",")
		if len(parts) != 3 {
			return p, fmt.Errorf("expected 3 values, got %d", len(parts))
		}
		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return p, fmt.Errorf("invalid drone id %q", strings.TrimSpace(parts[0]))
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return p, fmt.Errorf("invalid latitude %q", strings.TrimSpace(parts[1]))
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return p, fmt.Errorf("invalid longitude %q", strings.TrimSpace(parts[2]))
		}
		p = FlightParams{DroneID: id, Lat: lat, Lon: lon}
	}

	if p.Lat < -90 || p.Lat > 90 {
		return p, fmt.Errorf("latitude %g out of range", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return p, fmt.Errorf("longitude %g out of range", p.Lon)
	}
	return p, nil
}
