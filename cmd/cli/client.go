package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/finance-assistant/internal/resolver"
)

// apiClient talks to the API server, which owns the pending-duplicate table.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return resp.StatusCode, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// ListDuplicates fetches the pending duplicates, oldest first.
func (c *apiClient) ListDuplicates(ctx context.Context) ([]resolver.Entry, error) {
	var out struct {
		Duplicates []resolver.Entry `json:"duplicates"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/duplicates", nil, &out); err != nil {
		return nil, err
	}
	return out.Duplicates, nil
}

// Resolve applies action to a pending duplicate and returns the outcome.
func (c *apiClient) Resolve(ctx context.Context, pendingID, action string) (string, error) {
	var out struct {
		Result string `json:"result"`
	}
	body := map[string]string{"pending_id": pendingID, "action": action}
	if _, err := c.do(ctx, http.MethodPost, "/api/duplicates/resolve", body, &out); err != nil {
		return "", err
	}
	return out.Result, nil
}
