package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/es"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

type fakeEventSearcher struct {
	summaries map[string]*es.EventSummary
	err       error
	lastQuery string
}

func (f *fakeEventSearcher) SearchLoadEvents(ctx context.Context, loadNumber string) (*es.EventSummary, error) {
	f.lastQuery = loadNumber
	if f.err != nil {
		return nil, f.err
	}
	if summary, ok := f.summaries[loadNumber]; ok {
		return summary, nil
	}
	return &es.EventSummary{}, nil
}

func TestEventSearchEnrich(t *testing.T) {
	searcher := &fakeEventSearcher{
		summaries: map[string]*es.EventSummary{
			"L1": {Count: 12, LatestCode: "NEW_EMAIL", LatestAt: "2026-01-10T08:00:00Z"},
		},
	}
	source := &EventSearchSource{searcher: searcher, log: logger.New()}

	enriched, err := source.Enrich(context.Background(), common.Row{"load_number": "L1"})
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}

	if enriched["agent_events_count"] != int64(12) {
		t.Errorf("agent_events_count = %v, want 12", enriched["agent_events_count"])
	}
	if enriched["latest_event_code"] != "NEW_EMAIL" {
		t.Errorf("latest_event_code = %v, want NEW_EMAIL", enriched["latest_event_code"])
	}
	if searcher.lastQuery != "L1" {
		t.Errorf("searched for %q, want L1", searcher.lastQuery)
	}
}

func TestEventSearchEnrichNoHistory(t *testing.T) {
	source := &EventSearchSource{searcher: &fakeEventSearcher{}, log: logger.New()}

	enriched, err := source.Enrich(context.Background(), common.Row{"load_number": "L9"})
	if err != nil {
		t.Fatalf("Enrich returned error: %v", err)
	}
	if enriched["agent_events_count"] != int64(0) {
		t.Errorf("agent_events_count = %v, want 0", enriched["agent_events_count"])
	}
	if _, ok := enriched["latest_event_code"]; ok {
		t.Error("latest_event_code should be absent when there is no history")
	}
}

func TestEventSearchEnrichErrorPropagates(t *testing.T) {
	source := &EventSearchSource{searcher: &fakeEventSearcher{err: errors.New("cluster unavailable")}, log: logger.New()}

	if _, err := source.Enrich(context.Background(), common.Row{"load_number": "L1"}); err == nil {
		t.Error("expected the search error to propagate for manager-level isolation")
	}
}

func TestEventSearchIsApplicable(t *testing.T) {
	source := &EventSearchSource{searcher: &fakeEventSearcher{}, log: logger.New()}

	if !source.IsApplicable(common.Row{"load_number": "L1"}) {
		t.Error("row with a load number should be applicable")
	}
	if !source.IsApplicable(common.Row{"Load #": "L1"}) {
		t.Error("row with an aliased load number should be applicable")
	}
	if source.IsApplicable(common.Row{"pro_number": "1234567890"}) {
		t.Error("row without a load number should not be applicable")
	}
}
