package postback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/augmentac/ff2api-postback/pkg/common"
)

// Handler delivers a finished batch of rows to one destination. Handlers must
// not mutate the rows they receive.
type Handler interface {
	// Name returns the handler type tag used in configuration and results
	Name() string

	// ValidateConfig checks the handler configuration before any delivery
	ValidateConfig() error

	// Post delivers the batch. A nil error means the whole batch was
	// delivered.
	Post(ctx context.Context, rows []common.Row) error
}

// columnSet builds a stable column order for tabular output: the union of all
// row keys, sorted
func columnSet(rows []common.Row) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

// ensureOutputDir creates the directory the output file will be written to
func ensureOutputDir(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}
