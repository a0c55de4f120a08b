package postback

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
	"gopkg.in/gomail.v2"
)

// EmailHandler mails the batch as a CSV attachment with a short summary
// body. Delivery is not retried: SMTP failures are usually configuration
// problems.
type EmailHandler struct {
	smtpServer string
	smtpPort   int
	smtpUser   string
	smtpPass   string
	recipient  string
	subject    string
	senderName string
	log        *logger.Logger

	// send is swappable for tests
	send func(m *gomail.Message) error
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(cfg config.HandlerConfig, log *logger.Logger) *EmailHandler {
	h := &EmailHandler{
		smtpServer: cfg.SMTPServer,
		smtpPort:   cfg.SMTPPort,
		smtpUser:   cfg.SMTPUser,
		smtpPass:   cfg.SMTPPass,
		recipient:  cfg.Recipient,
		subject:    cfg.Subject,
		senderName: cfg.SenderName,
		log:        log,
	}
	h.send = func(m *gomail.Message) error {
		dialer := gomail.NewDialer(h.smtpServer, h.smtpPort, h.smtpUser, h.smtpPass)
		return dialer.DialAndSend(m)
	}
	return h
}

// Name returns the handler type tag
func (h *EmailHandler) Name() string { return "email" }

// ValidateConfig checks the SMTP settings and recipient
func (h *EmailHandler) ValidateConfig() error {
	if h.recipient == "" {
		return fmt.Errorf("email handler requires a recipient")
	}
	if h.smtpUser == "" || h.smtpPass == "" {
		return fmt.Errorf("email handler requires SMTP credentials")
	}
	return nil
}

// Post mails the rows as a CSV attachment
func (h *EmailHandler) Post(ctx context.Context, rows []common.Row) error {
	if len(rows) == 0 {
		h.log.Info("No rows to deliver, skipping email")
		return nil
	}

	attachment, err := buildCSVAttachment(rows)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", h.smtpUser, h.senderName)
	m.SetHeader("To", h.recipient)
	m.SetHeader("Subject", h.subject)
	m.SetBody("text/plain", buildSummaryBody(rows))

	filename := fmt.Sprintf("freight_data_%s.csv", time.Now().Format("20060102_150405"))
	m.Attach(filename, gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(attachment)
		return err
	}))

	if err := h.send(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", h.recipient, err)
	}

	h.log.Infof("Emailed %d rows to %s", len(rows), h.recipient)
	return nil
}

func buildCSVAttachment(rows []common.Row) ([]byte, error) {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	columns := columnSet(rows)
	if err := writer.Write(columns); err != nil {
		return nil, fmt.Errorf("failed to write attachment header: %w", err)
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, column := range columns {
			record[i] = common.Stringify(row[column])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write attachment row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to build attachment: %w", err)
	}
	return []byte(buf.String()), nil
}

func buildSummaryBody(rows []common.Row) string {
	enriched := 0
	tracked := 0
	for _, row := range rows {
		if row.GetString("enrichment_source") != "" || row.GetString("wh_enrichment_source") != "" {
			enriched++
		}
		if row.GetString("tracking_status") != "" {
			tracked++
		}
	}

	var b strings.Builder
	b.WriteString("Freight data processing results attached.\n\n")
	fmt.Fprintf(&b, "Total rows: %d\n", len(rows))
	fmt.Fprintf(&b, "Enriched rows: %d\n", enriched)
	fmt.Fprintf(&b, "Rows with tracking data: %d\n", tracked)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format(time.RFC1123))
	return b.String()
}
