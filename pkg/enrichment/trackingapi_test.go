package enrichment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

func newTrackingSource(endpoint string) *TrackingAPISource {
	cfg := config.SourceConfig{
		Type:         "tracking_api",
		Endpoint:     endpoint,
		BrokerageKey: "test-brokerage",
		BearerToken:  "test-token",
		MaxRetries:   3,
		RetryDelayMs: 1,
	}
	return NewTrackingAPISource(cfg, logger.New())
}

func trackingRow() common.Row {
	return common.Row{"pro_number": "1234567890", "carrier_name": "ESTES"}
}

func TestTrackingAPIEnrichSuccess(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"completedBrowserTask": map[string]interface{}{
				"result": map[string]interface{}{
					"detailedStatus": "In Transit",
					"city":           "Memphis",
					"state":          "TN",
					"country":        "US",
					"date":           "2026-01-10",
				},
			},
		})
	}))
	defer server.Close()

	source := newTrackingSource(server.URL)
	enriched, err := source.Enrich(context.Background(), trackingRow())
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}

	if enriched["tracking_status"] != "In Transit" {
		t.Errorf("tracking_status = %v, want In Transit", enriched["tracking_status"])
	}
	if enriched["tracking_location"] != "Memphis, TN" {
		t.Errorf("tracking_location = %v, want Memphis, TN (US dropped)", enriched["tracking_location"])
	}
	if enriched["tracking_date"] != "2026-01-10" {
		t.Errorf("tracking_date = %v, want 2026-01-10", enriched["tracking_date"])
	}

	if gotBody["browserTask"] != "ESTES" {
		t.Errorf("request browserTask = %v, want ESTES", gotBody["browserTask"])
	}
	params, _ := gotBody["params"].(map[string]interface{})
	if params["proNumber"] != "1234567890" {
		t.Errorf("request proNumber = %v, want 1234567890", params["proNumber"])
	}
}

func TestTrackingAPIDefaultsApplyAtConstruction(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	// Zero retry and timeout settings take the constructor defaults.
	source := NewTrackingAPISource(config.SourceConfig{
		Type:         "tracking_api",
		Endpoint:     server.URL,
		BrokerageKey: "test-brokerage",
		BearerToken:  "test-token",
		RetryDelayMs: 1,
	}, logger.New())

	if source.maxRetries != 3 {
		t.Fatalf("maxRetries = %d, want default 3", source.maxRetries)
	}

	if _, err := source.Enrich(context.Background(), trackingRow()); err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("server hit %d times, want 3 (attempts are made, not skipped)", calls)
	}
}

func TestTrackingAPIRetriesThenCachesNegative(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := newTrackingSource(server.URL)
	enriched, err := source.Enrich(context.Background(), trackingRow())
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("server hit %d times, want 3 (max retries)", calls)
	}
	if enriched["tracking_status"] != nil {
		t.Errorf("tracking_status = %v, want nil after exhausted retries", enriched["tracking_status"])
	}

	// Second row with the same (carrier, pro): negative result is cached
	if _, err := source.Enrich(context.Background(), trackingRow()); err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("server hit %d times after cached lookup, want still 3", calls)
	}
}

func TestTrackingAPINotFoundIsTerminal(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	source := newTrackingSource(server.URL)
	if _, err := source.Enrich(context.Background(), trackingRow()); err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("server hit %d times for a 404, want 1 (no retry)", calls)
	}
}

func TestTrackingAPIEmptyResultIsTerminal(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{"completedBrowserTask": map[string]interface{}{}})
	}))
	defer server.Close()

	source := newTrackingSource(server.URL)
	enriched, err := source.Enrich(context.Background(), trackingRow())
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("server hit %d times for an empty result, want 1", calls)
	}
	if enriched["tracking_status"] != nil {
		t.Errorf("tracking_status = %v, want nil for no data", enriched["tracking_status"])
	}
}

func TestTrackingAPIIsApplicable(t *testing.T) {
	source := newTrackingSource("http://example.test")

	if !source.IsApplicable(trackingRow()) {
		t.Error("row with carrier and PRO should be applicable")
	}
	if source.IsApplicable(common.Row{"pro_number": "1234567890"}) {
		t.Error("row without a carrier should not be applicable")
	}
	if source.IsApplicable(common.Row{"carrier_name": "ESTES"}) {
		t.Error("row without a PRO should not be applicable")
	}
}

func TestTrackingAPIValidateConfig(t *testing.T) {
	source := NewTrackingAPISource(config.SourceConfig{Type: "tracking_api"}, logger.New())
	if err := source.ValidateConfig(); err == nil {
		t.Error("expected an error for missing endpoint and credentials")
	}

	if err := newTrackingSource("http://example.test").ValidateConfig(); err != nil {
		t.Errorf("valid configuration rejected: %v", err)
	}
}
