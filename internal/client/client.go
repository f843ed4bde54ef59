// Package client is a small HTTP client for the registry API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"drone-flight/registry/internal/agent"
	"drone-flight/registry/internal/models/dtos"
)

// APIError is a non-2xx response from the registry.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("registry returned %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("registry returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// RegisterFlight posts a registration payload. wallet may be empty.
func (c *Client) RegisterFlight(ctx context.Context, payload json.RawMessage, wallet string) (*dtos.RegisterFlightResponse, error) {
	var out dtos.RegisterFlightResponse
	headers := map[string]string{}
	if wallet != "" {
		headers["X-Wallet-Address"] = wallet
	}
	if err := c.do(ctx, http.MethodPost, "/api/registerFlight", payload, headers, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateFlight returns the validator's result value.
func (c *Client) ValidateFlight(ctx context.Context, flight json.RawMessage) (json.RawMessage, error) {
	var out dtos.ValidateFlightResponse
	if err := c.do(ctx, http.MethodPost, "/api/validate-flight", flight, nil, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (c *Client) DroneID(ctx context.Context) (*dtos.DroneIDResponse, error) {
	var out dtos.DroneIDResponse
	if err := c.do(ctx, http.MethodGet, "/api/ledger/droneId", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Events(ctx context.Context, from uint64, limit int) (*dtos.LedgerEventsResponse, error) {
	q := url.Values{}
	q.Set("from", strconv.FormatUint(from, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out dtos.LedgerEventsResponse
	if err := c.do(ctx, http.MethodGet, "/api/ledger/events?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask runs one agent turn.
func (c *Client) Ask(ctx context.Context, req agent.Request) (*agent.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out agent.Response
	if err := c.do(ctx, http.MethodPost, "/mcp", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e dtos.ErrorResponse
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error, Details: e.Details}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
