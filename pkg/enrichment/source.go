package enrichment

import (
	"context"

	"github.com/augmentac/ff2api-postback/pkg/common"
)

// Source augments one data row with additional fields from an external data
// source. Implementations must return a copy of the row and never remove
// existing fields.
type Source interface {
	// Name is the type tag used for error annotations and result reporting
	Name() string

	// ValidateConfig sanity-checks required configuration. It must not
	// perform network I/O except where connectivity is itself the check
	// (database-backed sources).
	ValidateConfig() error

	// IsApplicable reports whether this source applies to the row. It is a
	// pure predicate: no mutation, no I/O.
	IsApplicable(row common.Row) bool

	// Enrich returns a copy of the row with additional fields. A returned
	// error isolates the failure to this source; the manager annotates the
	// row and continues.
	Enrich(ctx context.Context, row common.Row) (common.Row, error)
}
