package enrichment

import (
	"context"
	"fmt"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

// Manager holds the ordered list of enrichment sources and applies them to
// data rows with per-source and per-row error isolation
type Manager struct {
	sources []Source
	log     *logger.Logger
}

// NewManager constructs sources from configuration in order. Unknown source
// types and sources with invalid configuration are logged and skipped, not
// fatal.
func NewManager(sourceConfigs []config.SourceConfig, log *logger.Logger) *Manager {
	m := &Manager{log: log}

	for _, cfg := range sourceConfigs {
		var source Source
		var err error

		switch cfg.Type {
		case "mock_tracking":
			source = NewMockTrackingSource(cfg, log)
		case "tracking_api":
			source = NewTrackingAPISource(cfg, log)
		case "warehouse":
			source, err = NewWarehouseSource(cfg, log)
		case "eventsearch":
			source, err = NewEventSearchSource(cfg, log)
		default:
			log.Errorf("Unknown enrichment source type: %s", cfg.Type)
			continue
		}

		if err != nil {
			log.Errorf("Failed to initialize %s enrichment source: %v", cfg.Type, err)
			continue
		}

		if validateErr := source.ValidateConfig(); validateErr != nil {
			log.Errorf("Invalid configuration for %s enrichment source: %v", cfg.Type, validateErr)
			continue
		}

		m.sources = append(m.sources, source)
		log.Infof("Initialized %s enrichment source", cfg.Type)
	}

	return m
}

// NewManagerFromSources builds a manager from pre-constructed sources,
// preserving order
func NewManagerFromSources(sources []Source, log *logger.Logger) *Manager {
	return &Manager{sources: sources, log: log}
}

// EnrichRow applies every applicable source to a row in configured order. A
// source failure annotates the row with "<name>_error" and processing
// continues with the next source.
func (m *Manager) EnrichRow(ctx context.Context, row common.Row) common.Row {
	enriched := row.Copy()

	for _, source := range m.sources {
		result, err := m.enrichWithRecover(ctx, source, enriched)
		if err != nil {
			m.log.Errorf("Error in %s enrichment: %v", source.Name(), err)
			enriched[source.Name()+"_error"] = err.Error()
			continue
		}
		enriched = result
	}

	return enriched
}

// EnrichRows enriches rows independently and sequentially. A failure on one
// row never aborts the batch: the original row is kept with an
// "enrichment_error" annotation. Output length always equals input length.
func (m *Manager) EnrichRows(ctx context.Context, rows []common.Row) []common.Row {
	if len(rows) == 0 {
		m.log.Warn("No rows to enrich")
		return rows
	}

	m.log.Infof("Enriching %d rows with %d sources", len(rows), len(m.sources))

	enriched := make([]common.Row, 0, len(rows))
	for i, row := range rows {
		enriched = append(enriched, m.EnrichRow(ctx, row))

		if (i+1)%100 == 0 {
			m.log.Infof("Enriched %d/%d rows", i+1, len(rows))
		}
	}

	return enriched
}

// enrichWithRecover applies one source to a row, shielding the batch from a
// panic in either the applicability check or the enrichment itself. Rows the
// source does not apply to are returned unchanged.
func (m *Manager) enrichWithRecover(ctx context.Context, source Source, row common.Row) (result common.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &panicError{source: source.Name(), value: r}
		}
	}()
	if !source.IsApplicable(row) {
		return row, nil
	}
	return source.Enrich(ctx, row)
}

// SourceCount returns the number of active enrichment sources
func (m *Manager) SourceCount() int {
	return len(m.sources)
}

// SourceNames returns the names of active sources in configured order
func (m *Manager) SourceNames() []string {
	names := make([]string, 0, len(m.sources))
	for _, source := range m.sources {
		names = append(names, source.Name())
	}
	return names
}

type panicError struct {
	source string
	value  interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic in %s enrichment: %v", e.source, e.value)
}
