package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

// Field aliases checked when locating the PRO number and carrier in a row.
// API-sourced fields take priority over raw input columns.
var (
	apiProFields     = []string{"ff2api_pro_number", "PRO"}
	csvProFields     = []string{"pro_number", "ProNumber", "tracking_number"}
	apiCarrierFields = []string{"ff2api_carrier_name", "carrier"}
	csvCarrierFields = []string{"Carrier Name", "carrier_name", "scac_code"}
)

// TrackingAPISource enriches rows with live carrier tracking data from the
// track-and-trace service. Lookups are cached by (carrier, pro) for the
// lifetime of the source, including negative results.
type TrackingAPISource struct {
	endpoint      string
	brokerageKey  string
	apiKey        string
	bearerToken   string
	proColumn     string
	carrierColumn string
	maxRetries    int
	retryDelay    time.Duration
	httpClient    *http.Client
	cache         map[string]map[string]interface{}
	log           *logger.Logger
}

// NewTrackingAPISource creates a new tracking API source
func NewTrackingAPISource(cfg config.SourceConfig, log *logger.Logger) *TrackingAPISource {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 15
	}

	return &TrackingAPISource{
		endpoint:      cfg.Endpoint,
		brokerageKey:  cfg.BrokerageKey,
		apiKey:        cfg.APIKey,
		bearerToken:   cfg.BearerToken,
		proColumn:     cfg.ProColumn,
		carrierColumn: cfg.CarrierColumn,
		maxRetries:    maxRetries,
		retryDelay:    time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		cache: make(map[string]map[string]interface{}),
		log:   log,
	}
}

// Name returns the source type tag
func (s *TrackingAPISource) Name() string { return "tracking_api" }

// ValidateConfig checks required configuration without network I/O
func (s *TrackingAPISource) ValidateConfig() error {
	if s.brokerageKey == "" {
		return fmt.Errorf("no brokerage key configured for tracking API")
	}
	if s.endpoint == "" {
		return fmt.Errorf("no tracking API endpoint configured")
	}
	if s.apiKey == "" && s.bearerToken == "" {
		return fmt.Errorf("no API authentication configured for tracking")
	}
	return nil
}

// IsApplicable reports whether the row carries both a carrier and a PRO
func (s *TrackingAPISource) IsApplicable(row common.Row) bool {
	pro, carrier := s.extractRowData(row)
	return pro != "" && carrier != ""
}

// Enrich adds tracking fields from the tracking API to a copy of the row
func (s *TrackingAPISource) Enrich(ctx context.Context, row common.Row) (common.Row, error) {
	enriched := row.Copy()
	enriched["tracking_status"] = nil
	enriched["tracking_location"] = nil
	enriched["tracking_date"] = nil

	pro, carrier := s.extractRowData(row)
	if pro == "" || carrier == "" {
		s.log.Debug("Missing PRO number or carrier for tracking enrichment")
		return enriched, nil
	}

	result := s.callTrackingAPI(ctx, pro, carrier)
	if result == nil {
		s.log.Debugf("No tracking data available for PRO %s", pro)
		return enriched, nil
	}

	for key, value := range extractTrackingFields(result) {
		enriched[key] = value
	}

	s.log.Debugf("Enriched PRO %s with tracking data", pro)
	return enriched, nil
}

// extractRowData finds the PRO number and carrier in a row, preferring
// API-sourced fields over raw input columns
func (s *TrackingAPISource) extractRowData(row common.Row) (string, string) {
	proFields := append(append([]string{}, apiProFields...), s.proColumn)
	proFields = append(proFields, csvProFields...)

	var pro string
	for _, field := range proFields {
		if v := strings.TrimSpace(row.GetString(field)); v != "" {
			pro = v
			break
		}
	}
	if pro == "" {
		return "", ""
	}

	carrierFields := append(append([]string{}, apiCarrierFields...), s.carrierColumn)
	carrierFields = append(carrierFields, csvCarrierFields...)

	var carrier string
	for _, field := range carrierFields {
		if v := strings.TrimSpace(row.GetString(field)); v != "" {
			carrier = strings.ToUpper(v)
			break
		}
	}
	if carrier == "" {
		return "", ""
	}

	return pro, carrier
}

// callTrackingAPI performs one cached lookup with bounded retries. A nil
// return means no data; that outcome is cached so repeated rows with the same
// (carrier, pro) make no further calls.
func (s *TrackingAPISource) callTrackingAPI(ctx context.Context, pro, carrier string) map[string]interface{} {
	cacheKey := carrier + ":" + pro
	if cached, ok := s.cache[cacheKey]; ok {
		s.log.Debugf("Using cached tracking data for %s PRO %s", carrier, pro)
		return cached
	}

	payload, err := json.Marshal(map[string]interface{}{
		"browserTask": carrier,
		"params":      map[string]interface{}{"proNumber": pro},
	})
	if err != nil {
		s.cache[cacheKey] = nil
		return nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				s.cache[cacheKey] = nil
				return nil
			case <-time.After(s.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			s.cache[cacheKey] = nil
			return nil
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.authToken())

		res, err := s.httpClient.Do(req)
		if err != nil {
			// Timeout or transport error: retry
			s.log.Warnf("Tracking API error for PRO %s on attempt %d: %v", pro, attempt+1, err)
			continue
		}

		switch {
		case res.StatusCode == http.StatusOK:
			var body map[string]interface{}
			decodeErr := json.NewDecoder(res.Body).Decode(&body)
			res.Body.Close()
			if decodeErr != nil {
				s.log.Warnf("Failed to decode tracking response for PRO %s: %v", pro, decodeErr)
				continue
			}

			result := extractCompletedTask(body)
			if result == nil {
				// Successful response with no data is terminal
				s.log.Infof("Tracking returned no data for PRO %s with carrier %s", pro, carrier)
				s.cache[cacheKey] = nil
				return nil
			}
			s.cache[cacheKey] = result
			return result

		case res.StatusCode == http.StatusNotFound:
			res.Body.Close()
			s.log.Infof("Tracking not found for PRO %s with carrier %s", pro, carrier)
			s.cache[cacheKey] = nil
			return nil

		case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
			res.Body.Close()
			s.log.Errorf("Authentication failed for tracking API: %d", res.StatusCode)
			s.cache[cacheKey] = nil
			return nil

		default:
			res.Body.Close()
			s.log.Warnf("Tracking API returned %d for PRO %s", res.StatusCode, pro)
		}
	}

	s.log.Warnf("Tracking API failed after %d attempts for PRO %s", s.maxRetries, pro)
	s.cache[cacheKey] = nil
	return nil
}

func (s *TrackingAPISource) authToken() string {
	if s.bearerToken != "" {
		return s.bearerToken
	}
	return s.apiKey
}

// extractCompletedTask unwraps the completedBrowserTask.result object, or nil
// if the payload carries no result
func extractCompletedTask(body map[string]interface{}) map[string]interface{} {
	task, ok := body["completedBrowserTask"].(map[string]interface{})
	if !ok {
		return nil
	}
	result, ok := task["result"].(map[string]interface{})
	if !ok || len(result) == 0 {
		return nil
	}
	return result
}

// extractTrackingFields normalizes a tracking result into row fields,
// dropping empties
func extractTrackingFields(result map[string]interface{}) map[string]interface{} {
	status, _ := result["detailedStatus"].(string)
	if status == "" {
		status, _ = result["status"].(string)
	}
	city, _ := result["city"].(string)
	state, _ := result["state"].(string)
	country, _ := result["country"].(string)
	date, _ := result["date"].(string)

	locationParts := []string{}
	if city != "" {
		locationParts = append(locationParts, city)
	}
	if state != "" {
		locationParts = append(locationParts, state)
	}
	if country != "" && country != "US" {
		locationParts = append(locationParts, country)
	}

	fields := make(map[string]interface{})
	if status != "" {
		fields["tracking_status"] = status
	}
	if len(locationParts) > 0 {
		fields["tracking_location"] = strings.Join(locationParts, ", ")
	}
	if date != "" {
		fields["tracking_date"] = date
	}
	return fields
}
