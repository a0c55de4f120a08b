package loadapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

// Client talks to the load-management API: load submission, internal load ID
// lookup, and the agent-events service. One client is shared across all rows
// in a batch.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	eventsURL    string
	brokerageKey string
	apiKey       string
	bearerToken  string
	log          *logger.Logger
}

// LookupResult is the outcome of an internal load ID lookup. StatusCode is
// the raw HTTP status; the load ID mapper classifies it.
type LookupResult struct {
	InternalLoadID string
	Details        map[string]interface{}
	StatusCode     int
}

// NewClient creates a new load API client
func NewClient(cfg config.APIConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		baseURL:      cfg.BaseURL,
		eventsURL:    cfg.EventsURL,
		brokerageKey: cfg.BrokerageKey,
		apiKey:       cfg.APIKey,
		bearerToken:  cfg.BearerToken,
		log:          log,
	}
}

// ensureToken exchanges the configured API key for a bearer token if none is
// held yet
func (c *Client) ensureToken(ctx context.Context) error {
	if c.bearerToken != "" {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("no API authentication configured")
	}

	payload, err := json.Marshal(map[string]string{"refreshToken": c.apiKey})
	if err != nil {
		return fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token/refresh", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("token refresh returned status %d", res.StatusCode)
	}

	var tokenResponse struct {
		AccessToken string `json:"accessToken"`
		Token       string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&tokenResponse); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}

	if tokenResponse.AccessToken != "" {
		c.bearerToken = tokenResponse.AccessToken
	} else {
		c.bearerToken = tokenResponse.Token
	}
	if c.bearerToken == "" {
		return fmt.Errorf("token refresh response contained no token")
	}

	c.log.Debug("Obtained bearer token from token refresh endpoint")
	return nil
}

// doAuthorized executes an authenticated request. A 401 response with an API
// key configured triggers one token re-refresh and one retry; the retried
// response is returned as-is.
func (c *Client) doAuthorized(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	res, err := c.send(build)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusUnauthorized && c.apiKey != "" {
		io.Copy(io.Discard, res.Body)
		res.Body.Close()

		c.log.Warn("Bearer token rejected, refreshing token and retrying once")
		c.bearerToken = ""
		if err := c.ensureToken(ctx); err != nil {
			return nil, err
		}
		return c.send(build)
	}

	return res, nil
}

func (c *Client) send(build func() (*http.Request, error)) (*http.Response, error) {
	req, err := build()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	return c.httpClient.Do(req)
}

// CreateLoad submits one mapped row as a load via POST /v2/loads and returns
// the decoded response body
func (c *Client) CreateLoad(ctx context.Context, row common.Row) (map[string]interface{}, error) {
	payload, err := json.Marshal(buildLoadPayload(row))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal load payload: %w", err)
	}

	res, err := c.doAuthorized(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/loads", bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("load submission failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read load response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("load API returned status %d: %s", res.StatusCode, string(body))
	}

	response := make(map[string]interface{})
	if len(body) > 0 {
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("failed to decode load response: %w", err)
		}
	}

	return response, nil
}

// GetInternalLoadID looks up the internal load ID for a brokerage load number.
// Transport failures return an error; HTTP failures return a LookupResult
// carrying the status code.
func (c *Client) GetInternalLoadID(ctx context.Context, loadNumber string) (*LookupResult, error) {
	lookupURL := fmt.Sprintf("%s/brokerage-key/%s/brokerage-load-id/%s",
		c.baseURL, url.PathEscape(c.brokerageKey), url.PathEscape(loadNumber))

	res, err := c.doAuthorized(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	result := &LookupResult{StatusCode: res.StatusCode}
	if res.StatusCode != http.StatusOK {
		return result, nil
	}

	var details map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	result.Details = details

	// The ID field name is not stable across API versions
	for _, key := range []string{"load_id", "id", "internal_load_id", "loadId"} {
		if id, ok := details[key]; ok && id != nil {
			result.InternalLoadID = common.Stringify(id)
			break
		}
	}

	return result, nil
}

// GetAgentEvents fetches up to limit agent event records for an internal load
// ID from the events service
func (c *Client) GetAgentEvents(ctx context.Context, loadID string, limit int) ([]common.AgentEvent, error) {
	eventsURL := fmt.Sprintf("%s/unstable/events?loadId=%s&limit=%s",
		c.eventsURL, url.QueryEscape(loadID), strconv.Itoa(limit))

	res, err := c.doAuthorized(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, eventsURL, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("events request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("events service returned status %d", res.StatusCode)
	}

	var eventsResponse struct {
		Records []common.AgentEvent `json:"records"`
	}
	if err := json.NewDecoder(res.Body).Decode(&eventsResponse); err != nil {
		return nil, fmt.Errorf("failed to decode events response: %w", err)
	}

	return eventsResponse.Records, nil
}

// buildLoadPayload assembles the nested /v2/loads body from a mapped row
func buildLoadPayload(row common.Row) map[string]interface{} {
	load := map[string]interface{}{
		"loadNumber": row.GetString("load_number"),
		"mode":       row.GetString("mode"),
		"rateType":   row.GetString("rate_type"),
		"status":     row.GetString("status"),
	}

	if equipment := row.GetString("equipment"); equipment != "" {
		load["equipment"] = map[string]interface{}{"equipmentType": equipment}
	}
	if items, ok := row["items"]; ok {
		load["items"] = items
	}
	if refs, ok := row["referenceNumbers"]; ok {
		load["referenceNumbers"] = refs
	}
	if route, ok := row["route"]; ok {
		load["route"] = route
	}

	customer := map[string]interface{}{}
	if name := row.GetString("customer_name"); name != "" {
		customer["name"] = name
	}
	if code := row.GetString("customer_code"); code != "" {
		customer["customerId"] = code
	}

	return map[string]interface{}{
		"load":      load,
		"customer":  customer,
		"brokerage": map[string]interface{}{"contacts": []interface{}{}},
	}
}
