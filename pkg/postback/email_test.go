package postback

import (
	"context"
	"strings"
	"testing"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
	"gopkg.in/gomail.v2"
)

func newTestEmailHandler() *EmailHandler {
	return NewEmailHandler(config.HandlerConfig{
		Type:       "email",
		SMTPServer: "smtp.example.test",
		SMTPPort:   587,
		SMTPUser:   "pipeline@example.test",
		SMTPPass:   "secret",
		Recipient:  "ops@example.test",
		Subject:    "Freight Data Results",
		SenderName: "FF2API System",
	}, logger.New())
}

func TestEmailHandlerSendsMessage(t *testing.T) {
	h := newTestEmailHandler()

	var sent *gomail.Message
	h.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	rows := []common.Row{
		{"load_number": "L1", "enrichment_source": "mock_tracking", "tracking_status": "In Transit"},
		{"load_number": "L2"},
	}
	if err := h.Post(context.Background(), rows); err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if sent == nil {
		t.Fatal("no message was sent")
	}

	if got := sent.GetHeader("To"); len(got) != 1 || got[0] != "ops@example.test" {
		t.Errorf("To = %v, want ops@example.test", got)
	}
	if got := sent.GetHeader("Subject"); len(got) != 1 || got[0] != "Freight Data Results" {
		t.Errorf("Subject = %v", got)
	}
}

func TestEmailHandlerValidateConfig(t *testing.T) {
	h := NewEmailHandler(config.HandlerConfig{Type: "email"}, logger.New())
	if err := h.ValidateConfig(); err == nil {
		t.Error("expected an error for missing recipient and credentials")
	}

	if err := newTestEmailHandler().ValidateConfig(); err != nil {
		t.Errorf("valid configuration rejected: %v", err)
	}
}

func TestBuildSummaryBody(t *testing.T) {
	rows := []common.Row{
		{"load_number": "L1", "enrichment_source": "mock_tracking", "tracking_status": "Delivered"},
		{"load_number": "L2", "wh_enrichment_source": "warehouse"},
		{"load_number": "L3"},
	}

	body := buildSummaryBody(rows)
	if !strings.Contains(body, "Total rows: 3") {
		t.Errorf("body missing total count: %s", body)
	}
	if !strings.Contains(body, "Enriched rows: 2") {
		t.Errorf("body missing enriched count: %s", body)
	}
	if !strings.Contains(body, "Rows with tracking data: 1") {
		t.Errorf("body missing tracking count: %s", body)
	}
}

func TestBuildCSVAttachment(t *testing.T) {
	rows := []common.Row{{"load_number": "L1", "carrier": "ESTES"}}

	data, err := buildCSVAttachment(rows)
	if err != nil {
		t.Fatalf("buildCSVAttachment returned error: %v", err)
	}

	content := string(data)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row", len(lines))
	}
	if lines[0] != "carrier,load_number" {
		t.Errorf("header = %q, want sorted columns", lines[0])
	}
	if lines[1] != "ESTES,L1" {
		t.Errorf("row = %q, want ESTES,L1", lines[1])
	}
}
