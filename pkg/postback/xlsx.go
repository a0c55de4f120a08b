package postback

import (
	"context"
	"fmt"
	"os"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// XLSXHandler writes the batch to an Excel workbook. In append mode rows are
// added after the last used row of an existing sheet, keeping that sheet's
// header order.
type XLSXHandler struct {
	outputPath string
	sheetName  string
	appendMode bool
	log        *logger.Logger
}

// NewXLSXHandler creates a new Excel file handler
func NewXLSXHandler(cfg config.HandlerConfig, log *logger.Logger) *XLSXHandler {
	return &XLSXHandler{
		outputPath: cfg.OutputPath,
		sheetName:  cfg.SheetName,
		appendMode: cfg.AppendMode,
		log:        log,
	}
}

// Name returns the handler type tag
func (h *XLSXHandler) Name() string { return "xlsx" }

// ValidateConfig checks that an output path is configured
func (h *XLSXHandler) ValidateConfig() error {
	if h.outputPath == "" {
		return fmt.Errorf("xlsx handler requires an output path")
	}
	return nil
}

// Post writes the rows to the configured workbook
func (h *XLSXHandler) Post(ctx context.Context, rows []common.Row) error {
	if len(rows) == 0 {
		h.log.Info("No rows to write, skipping Excel output")
		return nil
	}

	if err := ensureOutputDir(h.outputPath); err != nil {
		return err
	}

	workbook, columns, startRow, err := h.openWorkbook(rows)
	if err != nil {
		return err
	}
	defer workbook.Close()

	for i, row := range rows {
		for j, column := range columns {
			cell, err := excelize.CoordinatesToCellName(j+1, startRow+i)
			if err != nil {
				return fmt.Errorf("failed to compute cell coordinates: %w", err)
			}
			if err := workbook.SetCellValue(h.sheetName, cell, common.Stringify(row[column])); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	if err := workbook.SaveAs(h.outputPath); err != nil {
		return fmt.Errorf("failed to save Excel workbook: %w", err)
	}

	h.log.Infof("Wrote %d rows to %s (sheet %s)", len(rows), h.outputPath, h.sheetName)
	return nil
}

// openWorkbook prepares the target workbook and sheet. It returns the column
// order and the first row index to write data at (1-based).
func (h *XLSXHandler) openWorkbook(rows []common.Row) (*excelize.File, []string, int, error) {
	if h.appendMode {
		if _, err := os.Stat(h.outputPath); err == nil {
			return h.openExisting(rows)
		}
	}
	return h.newWorkbook(rows)
}

func (h *XLSXHandler) newWorkbook(rows []common.Row) (*excelize.File, []string, int, error) {
	workbook := excelize.NewFile()
	index, err := workbook.NewSheet(h.sheetName)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to create sheet %s: %w", h.sheetName, err)
	}
	workbook.SetActiveSheet(index)
	if h.sheetName != "Sheet1" {
		workbook.DeleteSheet("Sheet1")
	}

	columns := columnSet(rows)
	for j, column := range columns {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("failed to compute header coordinates: %w", err)
		}
		if err := workbook.SetCellValue(h.sheetName, cell, column); err != nil {
			return nil, nil, 0, fmt.Errorf("failed to write header cell %s: %w", cell, err)
		}
	}

	return workbook, columns, 2, nil
}

func (h *XLSXHandler) openExisting(rows []common.Row) (*excelize.File, []string, int, error) {
	workbook, err := excelize.OpenFile(h.outputPath)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to open existing workbook: %w", err)
	}

	sheetRows, err := workbook.GetRows(h.sheetName)
	if err != nil || len(sheetRows) == 0 {
		// Missing or empty sheet, rebuild it with a header
		workbook.Close()
		return h.newWorkbook(rows)
	}

	return workbook, sheetRows[0], len(sheetRows) + 1, nil
}
