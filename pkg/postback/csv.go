package postback

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

// CSVHandler writes the batch to a CSV file. In append mode an existing
// file's header decides the column order and new columns are dropped; a fresh
// file gets a header row first.
type CSVHandler struct {
	outputPath string
	appendMode bool
	log        *logger.Logger
}

// NewCSVHandler creates a new CSV file handler
func NewCSVHandler(cfg config.HandlerConfig, log *logger.Logger) *CSVHandler {
	return &CSVHandler{
		outputPath: cfg.OutputPath,
		appendMode: cfg.AppendMode,
		log:        log,
	}
}

// Name returns the handler type tag
func (h *CSVHandler) Name() string { return "csv" }

// ValidateConfig checks that an output path is configured
func (h *CSVHandler) ValidateConfig() error {
	if h.outputPath == "" {
		return fmt.Errorf("csv handler requires an output path")
	}
	return nil
}

// Post writes the rows to the configured file
func (h *CSVHandler) Post(ctx context.Context, rows []common.Row) error {
	if len(rows) == 0 {
		h.log.Info("No rows to write, skipping CSV output")
		return nil
	}

	if err := ensureOutputDir(h.outputPath); err != nil {
		return err
	}

	columns, writeHeader, err := h.resolveColumns(rows)
	if err != nil {
		return err
	}

	flags := os.O_CREATE | os.O_WRONLY
	if h.appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(h.outputPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open CSV output file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if writeHeader {
		if err := writer.Write(columns); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, column := range columns {
			record[i] = common.Stringify(row[column])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV output: %w", err)
	}

	h.log.Infof("Wrote %d rows to %s", len(rows), h.outputPath)
	return nil
}

// resolveColumns decides the column order and whether a header is needed. An
// existing file in append mode keeps its own header.
func (h *CSVHandler) resolveColumns(rows []common.Row) ([]string, bool, error) {
	if h.appendMode {
		if existing, err := h.readExistingHeader(); err != nil {
			return nil, false, err
		} else if existing != nil {
			return existing, false, nil
		}
	}
	return columnSet(rows), true, nil
}

func (h *CSVHandler) readExistingHeader() ([]string, error) {
	file, err := os.Open(h.outputPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open existing CSV file: %w", err)
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if err != nil {
		// Empty or unreadable file, start fresh with a header
		return nil, nil
	}
	return header, nil
}
