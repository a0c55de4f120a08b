package postback

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

// JSONHandler writes the batch to a JSON file as an array of objects. In
// append mode an existing array is extended; a non-array file is replaced.
type JSONHandler struct {
	outputPath string
	appendMode bool
	log        *logger.Logger
}

// NewJSONHandler creates a new JSON file handler
func NewJSONHandler(cfg config.HandlerConfig, log *logger.Logger) *JSONHandler {
	return &JSONHandler{
		outputPath: cfg.OutputPath,
		appendMode: cfg.AppendMode,
		log:        log,
	}
}

// Name returns the handler type tag
func (h *JSONHandler) Name() string { return "json" }

// ValidateConfig checks that an output path is configured
func (h *JSONHandler) ValidateConfig() error {
	if h.outputPath == "" {
		return fmt.Errorf("json handler requires an output path")
	}
	return nil
}

// Post writes the rows to the configured file
func (h *JSONHandler) Post(ctx context.Context, rows []common.Row) error {
	if len(rows) == 0 {
		h.log.Info("No rows to write, skipping JSON output")
		return nil
	}

	if err := ensureOutputDir(h.outputPath); err != nil {
		return err
	}

	var output []common.Row
	if h.appendMode {
		existing, err := h.readExisting()
		if err != nil {
			return err
		}
		output = existing
	}
	output = append(output, rows...)

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON output: %w", err)
	}

	if err := os.WriteFile(h.outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON output file: %w", err)
	}

	h.log.Infof("Wrote %d rows to %s", len(rows), h.outputPath)
	return nil
}

func (h *JSONHandler) readExisting() ([]common.Row, error) {
	data, err := os.ReadFile(h.outputPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read existing JSON file: %w", err)
	}

	var existing []common.Row
	if err := json.Unmarshal(data, &existing); err != nil {
		// Not an array of objects, start over
		h.log.Warnf("Existing file %s is not a JSON array, replacing it", h.outputPath)
		return nil, nil
	}
	return existing, nil
}
