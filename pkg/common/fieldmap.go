package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldMapping represents a field mapping configuration
type FieldMapping struct {
	SourceField string `json:"sourceField" yaml:"sourceField"`
	TargetField string `json:"targetField" yaml:"targetField"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
}

// MappingConfig represents a row mapping configuration
type MappingConfig struct {
	FieldMappings []FieldMapping `json:"fieldMappings" yaml:"fieldMappings"`
	ExcludeFields []string       `json:"excludeFields" yaml:"excludeFields"`
}

// RowMapper maps input record fields to the load API's schema
type RowMapper struct {
	config        MappingConfig
	fieldMappings map[string]*FieldMapping
}

// NewRowMapper creates a new row mapper
func NewRowMapper(config MappingConfig) *RowMapper {
	// Create field mappings map for quick lookup
	fieldMappings := make(map[string]*FieldMapping)
	for i := range config.FieldMappings {
		mapping := &config.FieldMappings[i]
		fieldMappings[mapping.SourceField] = mapping
	}

	return &RowMapper{
		config:        config,
		fieldMappings: fieldMappings,
	}
}

// MapRow maps a raw input row to an API-schema row. Unmapped fields pass
// through under their original names; excluded fields are dropped.
func (m *RowMapper) MapRow(row Row) (Row, error) {
	mapped := make(Row, len(row))

	for key, value := range row {
		if m.shouldSkipField(key) {
			continue
		}

		if mapping, ok := m.fieldMappings[key]; ok {
			converted, err := m.applyMapping(mapping, value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			mapped[mapping.TargetField] = converted
		} else {
			mapped[key] = value
		}
	}

	return mapped, nil
}

// shouldSkipField checks if a field should be skipped
func (m *RowMapper) shouldSkipField(field string) bool {
	for _, excludeField := range m.config.ExcludeFields {
		if field == excludeField {
			return true
		}
	}
	return false
}

// applyMapping applies a field mapping to a value
func (m *RowMapper) applyMapping(mapping *FieldMapping, value interface{}) (interface{}, error) {
	switch mapping.Type {
	case "number":
		return convertNumber(value)
	case "date":
		return convertDate(value), nil
	case "string":
		return Stringify(value), nil
	default:
		return value, nil
	}
}

// convertNumber coerces a value to float64
func convertNumber(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %q to number: %w", v, err)
		}
		return n, nil
	default:
		return value, nil
	}
}

// convertDate normalizes common date formats to RFC 3339
func convertDate(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		"01/02/2006",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format(time.RFC3339)
		}
	}

	// Not a date
	return s
}

// Stringify renders a value the way file handlers and the API payload expect
func Stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// Avoid trailing zeros from CSV numerics
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
