package analyzer

// Client for the external fault explanation service. The service lives in
// its own failure domain: timeouts, refusals, and non-200 responses all
// degrade to a fixed fallback result and never propagate as fatal errors
// into the telemetry core.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/canlink/ecubridge/internal/dtc"
	"github.com/canlink/ecubridge/internal/logging"
)

// Analysis is the structured explanation for one trouble code.
type Analysis struct {
	Title       string   `json:"title"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Causes      []string `json:"causes"`
	Fixes       []string `json:"fixes"`
}

// Client talks to the lookup service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
}

// New creates a lookup client. timeout bounds every request.
func New(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Fallback returns the degraded result used when the service is
// unreachable. The local catalog still supplies a one-line description for
// known codes.
func Fallback(code string) Analysis {
	title := "Unknown Fault"
	if desc, ok := dtc.Descriptions[code]; ok {
		title = desc
	}
	return Analysis{
		Title:       title,
		Severity:    "-",
		Description: "No analysis available: the lookup service could not be reached.",
	}
}

// Analyze asks the service to explain a rendered code (e.g. "P0420").
// The second return reports whether the result came from the service or is
// the fallback.
func (c *Client) Analyze(ctx context.Context, code string) (Analysis, bool) {
	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return Fallback(code), false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return Fallback(code), false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Verbose("Analyze %s failed: %v", code, err)
		return Fallback(code), false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Verbose("Analyze %s: service returned %s", code, resp.Status)
		return Fallback(code), false
	}

	var out Analysis
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Verbose("Analyze %s: bad response body: %v", code, err)
		return Fallback(code), false
	}
	if out.Title == "" {
		out.Title = Fallback(code).Title
	}
	return out, true
}

// LatestDTC asks the service which code it saw last on the response
// stream. An empty string means none (or the service was unreachable).
func (c *Client) LatestDTC(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest_dtc", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lookup service returned %s", resp.Status)
	}

	var out struct {
		Code *string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Code == nil {
		return "", nil
	}
	return *out.Code, nil
}
