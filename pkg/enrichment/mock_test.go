package enrichment

import (
	"context"
	"testing"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

func TestMockTrackingIsApplicable(t *testing.T) {
	source := NewMockTrackingSource(config.SourceConfig{Type: "mock_tracking"}, logger.New())

	if !source.IsApplicable(common.Row{"carrier": "ESTES", "PRO": "1234567890"}) {
		t.Error("row with carrier and PRO should be applicable")
	}
	if source.IsApplicable(common.Row{"carrier": "ESTES"}) {
		t.Error("row without a PRO should not be applicable")
	}
}

func TestMockTrackingEnrichGeneratesEvents(t *testing.T) {
	source := NewMockTrackingSource(config.SourceConfig{Type: "mock_tracking", MaxEvents: 4}, logger.New())

	row := common.Row{"carrier": "ESTES", "PRO": "1234567890", "load_number": "L1"}
	enriched, err := source.Enrich(context.Background(), row)
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}

	count, ok := enriched["tracking_events_count"].(int)
	if !ok || count < 2 || count > 4 {
		t.Errorf("tracking_events_count = %v, want between 2 and 4", enriched["tracking_events_count"])
	}

	events, ok := enriched["tracking_events"].([]map[string]interface{})
	if !ok || len(events) != count {
		t.Fatalf("tracking_events length %d does not match count %d", len(events), count)
	}

	// Events are time-ordered and the status reflects the newest one
	for i := 1; i < len(events); i++ {
		if events[i]["timestamp"].(string) < events[i-1]["timestamp"].(string) {
			t.Error("events not sorted by timestamp")
		}
	}
	if enriched["tracking_status"] != events[len(events)-1]["status"] {
		t.Error("tracking_status does not match the latest event")
	}

	if enriched.GetString("enrichment_source") != "mock_tracking" {
		t.Error("missing enrichment_source tag")
	}
	if enriched.GetString("load_number") != "L1" {
		t.Error("original fields lost")
	}
}

func TestMockTrackingEnrichWithoutGeneration(t *testing.T) {
	off := false
	source := NewMockTrackingSource(config.SourceConfig{Type: "mock_tracking", GenerateEvents: &off}, logger.New())

	enriched, err := source.Enrich(context.Background(), common.Row{"carrier": "ESTES", "PRO": "1234567890"})
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if enriched["tracking_status"] != "No Data Available" {
		t.Errorf("tracking_status = %v, want No Data Available", enriched["tracking_status"])
	}
	if enriched["tracking_events_count"] != 0 {
		t.Errorf("tracking_events_count = %v, want 0", enriched["tracking_events_count"])
	}
}
