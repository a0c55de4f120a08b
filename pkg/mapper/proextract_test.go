package mapper

import (
	"strings"
	"testing"

	"github.com/augmentac/ff2api-postback/pkg/common"
)

func TestValidatePRO(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"ten digits", "1234567890", true},
		{"twelve digits", "123456789012", true},
		{"ten digits with separator", "PRO-1234567890", true},
		{"too short", "12345", false},
		{"nine digits", "123456789", false},
		{"thirteen digits", "1234567890123", false},
		{"empty", "", false},
		{"letters only", "not a number", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidatePRO(tt.value); got != tt.want {
				t.Errorf("ValidatePRO(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestExtractPROFromEmailBody(t *testing.T) {
	events := []common.AgentEvent{
		{
			ID:        "evt-1",
			Code:      "NEW_EMAIL",
			CreatedAt: "2026-01-10T08:00:00Z",
			Data: map[string]interface{}{
				"subject": "Shipment update",
				"body":    "Your freight was picked up. Pro number: 9876543210 for reference.",
			},
		},
	}

	extraction, found := ExtractPRO(events, "L2")
	if !found {
		t.Fatalf("expected a PRO number, got none (context: %s)", extraction.Context)
	}
	if extraction.ProNumber != "9876543210" {
		t.Errorf("ProNumber = %q, want %q", extraction.ProNumber, "9876543210")
	}
	if extraction.Source != common.ProSourceEmail {
		t.Errorf("Source = %q, want %q", extraction.Source, common.ProSourceEmail)
	}
	if extraction.Confidence != common.ConfidenceHigh {
		t.Errorf("Confidence = %q, want %q", extraction.Confidence, common.ConfidenceHigh)
	}
	if !strings.Contains(extraction.Context, "evt-1") {
		t.Errorf("Context %q does not name the event ID", extraction.Context)
	}
}

func TestExtractPROPriorityBeatsTimestamp(t *testing.T) {
	// The SEND_CALL event is newer but carries a lower priority; the email
	// must be examined first
	events := []common.AgentEvent{
		{
			ID:        "call-1",
			Code:      "SEND_CALL",
			CreatedAt: "2026-01-10T12:00:00Z",
			Data: map[string]interface{}{
				"summary": "Carrier called about PRO 1111111111 today",
			},
		},
		{
			ID:        "email-1",
			Code:      "NEW_EMAIL",
			CreatedAt: "2026-01-10T08:00:00Z",
			Data: map[string]interface{}{
				"body": "Load tendered under PRO 2222222222 this morning",
			},
		},
	}

	extraction, found := ExtractPRO(events, "L9")
	if !found {
		t.Fatal("expected a PRO number, got none")
	}
	if extraction.ProNumber != "2222222222" {
		t.Errorf("ProNumber = %q, want the email's %q", extraction.ProNumber, "2222222222")
	}
	if extraction.Source != common.ProSourceEmail {
		t.Errorf("Source = %q, want %q", extraction.Source, common.ProSourceEmail)
	}
}

func TestExtractPROExcludesLoadNumber(t *testing.T) {
	events := []common.AgentEvent{
		{
			ID:        "evt-1",
			Code:      "NEW_EMAIL",
			CreatedAt: "2026-01-10T08:00:00Z",
			Data: map[string]interface{}{
				"body": "Booking confirmed, PRO 9998887776 assigned.",
			},
		},
	}

	// The candidate matches the load number exactly, so extraction must fail
	if _, found := ExtractPRO(events, "9998887776"); found {
		t.Error("expected the load number to be excluded as a PRO candidate")
	}

	// A different load number leaves the candidate valid
	extraction, found := ExtractPRO(events, "L123")
	if !found || extraction.ProNumber != "9998887776" {
		t.Errorf("expected PRO 9998887776, got %q (found=%v)", extraction.ProNumber, found)
	}
}

func TestExtractPROSubstringExclusion(t *testing.T) {
	events := []common.AgentEvent{
		{
			ID:        "evt-1",
			Code:      "NEW_EMAIL",
			CreatedAt: "2026-01-10T08:00:00Z",
			Data: map[string]interface{}{
				"body": "Reference PRO 1234567890 attached.",
			},
		},
	}

	// The candidate is a substring of the load number, so it is treated as an
	// internal ID
	if _, found := ExtractPRO(events, "00123456789099"); found {
		t.Error("expected a candidate contained in the load number to be excluded")
	}
}

func TestExtractPROPatternPhrasings(t *testing.T) {
	phrasings := []struct {
		name string
		text string
	}{
		{"bare pro", "Carrier assigned PRO 1234567890 to this load"},
		{"pro hash", "PRO# 1234567890 confirmed"},
		{"pro number colon", "Pro number: 1234567890"},
		{"picked up under", "Freight was picked up under Pro 1234567890 yesterday"},
		{"tracking hash", "See tracking #1234567890 for status"},
		{"shipment hash", "Your shipment #1234567890 is in transit"},
	}

	for _, tt := range phrasings {
		t.Run(tt.name, func(t *testing.T) {
			events := []common.AgentEvent{{
				ID:        "evt-1",
				Code:      "NEW_EMAIL",
				CreatedAt: "2026-01-10T08:00:00Z",
				Data:      map[string]interface{}{"body": tt.text},
			}}

			extraction, found := ExtractPRO(events, "L1")
			if !found {
				t.Fatalf("no PRO extracted from %q", tt.text)
			}
			if extraction.ProNumber != "1234567890" {
				t.Errorf("ProNumber = %q, want %q", extraction.ProNumber, "1234567890")
			}
		})
	}
}

func TestExtractPROFallbackTextFields(t *testing.T) {
	// An unclassified event type with a long free-text field still gets
	// searched, at low confidence
	events := []common.AgentEvent{
		{
			ID:        "evt-1",
			Code:      "CUSTOM_NOTE",
			CreatedAt: "2026-01-10T08:00:00Z",
			Data: map[string]interface{}{
				"note": "Dispatcher left a note with tracking #5556667778 attached",
			},
		},
	}

	extraction, found := ExtractPRO(events, "L1")
	if !found {
		t.Fatal("expected the fallback field scan to find a PRO")
	}
	if extraction.ProNumber != "5556667778" {
		t.Errorf("ProNumber = %q, want %q", extraction.ProNumber, "5556667778")
	}
	if extraction.Source != common.ProSourceOther {
		t.Errorf("Source = %q, want %q", extraction.Source, common.ProSourceOther)
	}
	if extraction.Confidence != common.ConfidenceLow {
		t.Errorf("Confidence = %q, want %q", extraction.Confidence, common.ConfidenceLow)
	}
}

func TestExtractPRONoMatch(t *testing.T) {
	events := []common.AgentEvent{
		{
			ID:        "evt-1",
			Code:      "NEW_EMAIL",
			CreatedAt: "2026-01-10T08:00:00Z",
			Data:      map[string]interface{}{"body": "No tracking information available yet."},
		},
	}

	extraction, found := ExtractPRO(events, "L1")
	if found {
		t.Fatalf("expected no PRO, got %q", extraction.ProNumber)
	}
	if extraction.Source != common.ProSourceNone || extraction.Confidence != common.ConfidenceNone {
		t.Errorf("got (%s, %s), want (none, none)", extraction.Source, extraction.Confidence)
	}
	if extraction.Context == "" {
		t.Error("expected an explanatory context string")
	}
}

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		code       string
		source     common.ProSource
		confidence common.ProConfidence
	}{
		{"NEW_EMAIL", common.ProSourceEmail, common.ConfidenceHigh},
		{"SENT_EMAIL", common.ProSourceEmail, common.ConfidenceHigh},
		{"COMPLETED_CALL", common.ProSourceCall, common.ConfidenceMedium},
		{"WORKFLOW_STATUS_UPDATE", common.ProSourceSystem, common.ConfidenceHigh},
		{"INBOUND_SMS", common.ProSourceText, common.ConfidenceHigh},
		{"TEXT_RECEIVED", common.ProSourceText, common.ConfidenceHigh},
		{"SCHEDULE_EVENT", common.ProSourceOther, common.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			source, confidence := classifyEvent(tt.code)
			if source != tt.source || confidence != tt.confidence {
				t.Errorf("classifyEvent(%q) = (%s, %s), want (%s, %s)",
					tt.code, source, confidence, tt.source, tt.confidence)
			}
		})
	}
}
