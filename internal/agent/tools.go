package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"drone-flight/registry/internal/common"
)

const (
	GeocodeToolName  = "google-maps"
	ContractToolName = "evm-smart-contract"
)

// Tool is a capability the planner may invoke once per turn. Call returns
// the observation fed back to the planner; on failure the observation
// describes the failure and err is set as well.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// HTTPTool posts {model, input} to an MCP-style endpoint and decodes the
// "result" member of the reply.
type HTTPTool struct {
	url    string
	model  string
	client *http.Client
}

func NewHTTPTool(url, model string, timeout time.Duration) *HTTPTool {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPTool{url: url, model: model, client: &http.Client{Timeout: timeout}}
}

type toolRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type toolResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

func (t *HTTPTool) post(ctx context.Context, input string) (json.RawMessage, error) {
	body, err := json.Marshal(toolRequest{Model: t.model, Input: input})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out toolResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	if len(out.Result) == 0 {
		return nil, fmt.Errorf("response has no result")
	}
	return out.Result, nil
}

// GeocodeTool resolves place names to coordinates.
type GeocodeTool struct {
	http  *HTTPTool
	cache *common.CacheService
}

// NewGeocodeTool creates the google-maps tool. cache may be nil.
func NewGeocodeTool(url string, timeout time.Duration, cache *common.CacheService) *GeocodeTool {
	return &GeocodeTool{http: NewHTTPTool(url, "geocode", timeout), cache: cache}
}

func (g *GeocodeTool) Name() string { return GeocodeToolName }

func (g *GeocodeTool) Description() string {
	return "Use this tool when the user provides a location name that needs to be converted to coordinates (lat/lon). Input: the location name."
}

type geocodeResult struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	FormattedAddress string  `json:"formatted_address"`
}

func (g *GeocodeTool) Call(ctx context.Context, input string) (string, error) {
	location := strings.TrimSpace(input)
	if location == "" {
		err := fmt.Errorf("empty location")
		return "Google Maps MCP failed: " + err.Error(), err
	}

	load := func(ctx context.Context) (any, error) {
		raw, err := g.http.post(ctx, location)
		if err != nil {
			return nil, err
		}
		var res geocodeResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode geocode result: %w", err)
		}
		return fmt.Sprintf("Lat: %g, Lng: %g, Address: %s", res.Lat, res.Lng, res.FormattedAddress), nil
	}

	var (
		out any
		err error
	)
	if g.cache != nil {
		out, err = g.cache.GetOrLoad(ctx, location, load)
	} else {
		out, err = load(ctx)
	}
	if err != nil {
		return "Google Maps MCP failed: " + err.Error(), err
	}
	return out.(string), nil
}

// ContractTool prepares registerFlight transaction parameters.
type ContractTool struct {
	http *HTTPTool
}

func NewContractTool(url string, timeout time.Duration) *ContractTool {
	return &ContractTool{http: NewHTTPTool(url, "contract", timeout)}
}

func (c *ContractTool) Name() string { return ContractToolName }

func (c *ContractTool) Description() string {
	return "Use this tool to prepare a smart contract transaction when you have the drone ID and a valid lat/lon pair. Input: \"ID, LAT, LON\"."
}

type preparedTx struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	ChainID uint64 `json:"chainId"`
}

func (c *ContractTool) Call(ctx context.Context, input string) (string, error) {
	raw, err := c.http.post(ctx, strings.TrimSpace(input))
	if err != nil {
		return "EVM MCP fetch failed: " + err.Error(), err
	}

	var tx preparedTx
	if err := json.Unmarshal(raw, &tx); err == nil && tx.To != "" && tx.Data != "" && tx.ChainID != 0 {
		return fmt.Sprintf("Prepared transaction:\nTo: %s\nData: %s\nChain ID: %d", tx.To, tx.Data, tx.ChainID), nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil && text != "" {
		return text, nil
	}
	return "EVM MCP did not return valid transaction data.", nil
}

// Registry is the fixed, ordered set of tools offered to the planner.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{index: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.index[t.Name()]; dup {
			continue
		}
		r.tools = append(r.tools, t)
		r.index[t.Name()] = t
	}
	return r
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

func (r *Registry) Len() int { return len(r.tools) }

// Specs describes the tools not in exclude.
func (r *Registry) Specs(exclude map[string]bool) []ToolSpec {
	specs := make([]ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		if exclude[t.Name()] {
			continue
		}
		specs = append(specs, ToolSpec{Name: t.Name(), Description: t.Description()})
	}
	return specs
}
