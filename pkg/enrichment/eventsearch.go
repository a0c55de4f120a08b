package enrichment

import (
	"context"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/es"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

// eventSearcher is the slice of es.EventArchiveClient the source needs
type eventSearcher interface {
	SearchLoadEvents(ctx context.Context, loadNumber string) (*es.EventSummary, error)
}

// Row field aliases that carry the brokerage load number
var eventSearchLoadFields = []string{"load_number", "load_id", "Load #", "BOL #"}

// EventSearchSource enriches rows with a summary of the load's archived
// communication events: how many exist and the latest one
type EventSearchSource struct {
	searcher eventSearcher
	log      *logger.Logger
}

// NewEventSearchSource connects to the event archive and creates the source
func NewEventSearchSource(cfg config.SourceConfig, log *logger.Logger) (*EventSearchSource, error) {
	client, err := es.NewEventArchiveClient(cfg.Addresses, cfg.Username, cfg.Password, cfg.Index, log)
	if err != nil {
		return nil, err
	}
	return &EventSearchSource{searcher: client, log: log}, nil
}

// Name returns the source type tag
func (s *EventSearchSource) Name() string { return "eventsearch" }

// ValidateConfig succeeds once the connection is established
func (s *EventSearchSource) ValidateConfig() error { return nil }

// IsApplicable reports whether the row carries a load number to search on
func (s *EventSearchSource) IsApplicable(row common.Row) bool {
	return firstValue(row, eventSearchLoadFields) != ""
}

// Enrich adds agent_events_count, latest_event_code and latest_event_at to a
// copy of the row
func (s *EventSearchSource) Enrich(ctx context.Context, row common.Row) (common.Row, error) {
	enriched := row.Copy()

	loadNumber := firstValue(row, eventSearchLoadFields)
	summary, err := s.searcher.SearchLoadEvents(ctx, loadNumber)
	if err != nil {
		return nil, err
	}

	enriched["agent_events_count"] = summary.Count
	if summary.LatestCode != "" {
		enriched["latest_event_code"] = summary.LatestCode
	}
	if summary.LatestAt != "" {
		enriched["latest_event_at"] = summary.LatestAt
	}

	return enriched, nil
}
