package postback

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

// XMLHandler writes the batch to an XML file. Column names are sanitized into
// valid element names; the root and row element names are configurable.
type XMLHandler struct {
	outputPath  string
	rootElement string
	rowElement  string
	log         *logger.Logger
}

// NewXMLHandler creates a new XML file handler
func NewXMLHandler(cfg config.HandlerConfig, log *logger.Logger) *XMLHandler {
	return &XMLHandler{
		outputPath:  cfg.OutputPath,
		rootElement: cfg.RootElement,
		rowElement:  cfg.RowElement,
		log:         log,
	}
}

// Name returns the handler type tag
func (h *XMLHandler) Name() string { return "xml" }

// ValidateConfig checks that an output path is configured
func (h *XMLHandler) ValidateConfig() error {
	if h.outputPath == "" {
		return fmt.Errorf("xml handler requires an output path")
	}
	return nil
}

// Post writes the rows to the configured file
func (h *XMLHandler) Post(ctx context.Context, rows []common.Row) error {
	if len(rows) == 0 {
		h.log.Info("No rows to write, skipping XML output")
		return nil
	}

	if err := ensureOutputDir(h.outputPath); err != nil {
		return err
	}

	var buf strings.Builder
	buf.WriteString(xml.Header)
	fmt.Fprintf(&buf, "<%s>\n", h.rootElement)

	columns := columnSet(rows)
	for _, row := range rows {
		fmt.Fprintf(&buf, "  <%s>\n", h.rowElement)
		for _, column := range columns {
			value, ok := row[column]
			if !ok {
				continue
			}
			element := sanitizeElementName(column)
			var escaped strings.Builder
			if err := xml.EscapeText(&escaped, []byte(common.Stringify(value))); err != nil {
				return fmt.Errorf("failed to escape XML value: %w", err)
			}
			fmt.Fprintf(&buf, "    <%s>%s</%s>\n", element, escaped.String(), element)
		}
		fmt.Fprintf(&buf, "  </%s>\n", h.rowElement)
	}

	fmt.Fprintf(&buf, "</%s>\n", h.rootElement)

	if err := os.WriteFile(h.outputPath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write XML output file: %w", err)
	}

	h.log.Infof("Wrote %d rows to %s", len(rows), h.outputPath)
	return nil
}

// sanitizeElementName makes a column name usable as an XML element name:
// non-alphanumeric characters become underscores and a leading digit gets an
// underscore prefix
func sanitizeElementName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	sanitized := b.String()
	if sanitized == "" {
		return "field"
	}
	if sanitized[0] >= '0' && sanitized[0] <= '9' {
		sanitized = "_" + sanitized
	}
	return sanitized
}
