package workflow

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/augmentac/ff2api-postback/pkg/common"
)

// ReadInputFile loads freight rows from a CSV or JSON file, chosen by
// extension
func ReadInputFile(path string) ([]common.Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVFile(path)
	case ".json":
		return readJSONFile(path)
	default:
		return nil, fmt.Errorf("unsupported input file type: %s", filepath.Ext(path))
	}
}

// readCSVFile reads a CSV file with a header row into rows
func readCSVFile(path string) ([]common.Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV input: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("input file %s is empty", path)
	}

	header := records[0]
	rows := make([]common.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(common.Row, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// readJSONFile reads a JSON file holding a list of objects into rows
func readJSONFile(path string) ([]common.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	var rows []common.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse JSON input: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("input file %s contains no rows", path)
	}

	return rows, nil
}
