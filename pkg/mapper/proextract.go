package mapper

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/augmentac/ff2api-postback/pkg/common"
)

// EventTypePriorities ranks agent event codes for PRO extraction. Higher
// values are examined first; structured system events and emails beat
// call and SMS events. The values are tuned to observed production data
// and can be adjusted without touching the extraction logic.
var EventTypePriorities = map[string]int{
	"WORKFLOW_STATUS_UPDATE": 5,
	"NEW_EMAIL":              5,
	"SENT_EMAIL":             4,
	"COMPLETED_CALL":         4,
	"SCHEDULE_EVENT":         2,
	"SEND_CALL":              1,
}

// ProPatterns are the phrasings a PRO number is recovered from, applied in
// order against each candidate text. Each captures a 10-12 digit number.
var ProPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bpro\s*#?\s*:?\s*(\d{10,12})\b`),
	regexp.MustCompile(`(?i)\bpro\s+number\s*:?\s*(\d{10,12})\b`),
	regexp.MustCompile(`(?i)picked\s+up\s+under\s+pro\s*#?\s*:?\s*(\d{10,12})\b`),
	regexp.MustCompile(`(?i)tracking\s*#\s*(\d{10,12})\b`),
	regexp.MustCompile(`(?i)shipment\s*#\s*(\d{10,12})\b`),
}

// Ordered field lists searched per event class, before the generic fallback
// over long string fields
var (
	emailTextFields  = []string{"content", "body", "preview", "subject", "analysis_summary", "analysis_text"}
	callTextFields   = []string{"analysis_summary", "summary"}
	systemTextFields = []string{"context", "status"}
)

var nonDigits = regexp.MustCompile(`\D`)

// Extraction is a recovered PRO number with its provenance
type Extraction struct {
	ProNumber  string
	Source     common.ProSource
	Confidence common.ProConfidence
	Context    string
}

// candidateText is one searchable string pulled from an event, labelled with
// where it came from
type candidateText struct {
	label string
	text  string
}

// ExtractPRO scans a load's agent events for a PRO number. Events are
// examined in priority order and the first valid match wins; loadNumber is
// excluded so internal IDs are never mistaken for PRO numbers.
func ExtractPRO(events []common.AgentEvent, loadNumber string) (Extraction, bool) {
	prioritized := prioritizeEvents(events)

	for _, event := range prioritized {
		source, confidence := classifyEvent(event.Code)

		for _, candidate := range searchableTexts(event) {
			pro, ok := matchPRO(candidate.text, loadNumber)
			if !ok {
				continue
			}
			return Extraction{
				ProNumber:  pro,
				Source:     source,
				Confidence: confidence,
				Context:    fmt.Sprintf("extracted from %s of event %s (%s)", candidate.label, event.ID, event.Code),
			}, true
		}
	}

	return Extraction{
		Source:     common.ProSourceNone,
		Confidence: common.ConfidenceNone,
		Context:    fmt.Sprintf("no PRO number found in %d agent events", len(events)),
	}, false
}

// prioritizeEvents sorts events descending by (type priority, creation
// timestamp) without mutating the input
func prioritizeEvents(events []common.AgentEvent) []common.AgentEvent {
	sorted := make([]common.AgentEvent, len(events))
	copy(sorted, events)

	sort.SliceStable(sorted, func(i, j int) bool {
		pi := EventTypePriorities[sorted[i].Code]
		pj := EventTypePriorities[sorted[j].Code]
		if pi != pj {
			return pi > pj
		}
		return sorted[i].CreatedAt > sorted[j].CreatedAt
	})

	return sorted
}

// classifyEvent maps an event code to the source type and confidence a PRO
// number found in it would carry
func classifyEvent(code string) (common.ProSource, common.ProConfidence) {
	switch code {
	case "NEW_EMAIL", "SENT_EMAIL":
		return common.ProSourceEmail, common.ConfidenceHigh
	case "COMPLETED_CALL":
		return common.ProSourceCall, common.ConfidenceMedium
	case "WORKFLOW_STATUS_UPDATE":
		return common.ProSourceSystem, common.ConfidenceHigh
	}
	if strings.Contains(code, "SMS") || strings.Contains(code, "TEXT") {
		return common.ProSourceText, common.ConfidenceHigh
	}
	return common.ProSourceOther, common.ConfidenceLow
}

// searchableTexts extracts the candidate texts for one event: the class-typed
// fields first, then any other long string field as a fallback
func searchableTexts(event common.AgentEvent) []candidateText {
	var fields []string
	switch event.Code {
	case "NEW_EMAIL", "SENT_EMAIL":
		fields = emailTextFields
	case "COMPLETED_CALL":
		fields = callTextFields
	case "WORKFLOW_STATUS_UPDATE":
		fields = systemTextFields
	}

	var candidates []candidateText
	visited := make(map[string]bool)

	for _, field := range fields {
		if text, ok := event.Data[field].(string); ok && text != "" {
			candidates = append(candidates, candidateText{label: field, text: text})
			visited[field] = true
		}
	}

	// Fallback: any remaining string field long enough to hold a phrase
	fallbackKeys := make([]string, 0, len(event.Data))
	for key := range event.Data {
		if !visited[key] {
			fallbackKeys = append(fallbackKeys, key)
		}
	}
	sort.Strings(fallbackKeys)
	for _, key := range fallbackKeys {
		if text, ok := event.Data[key].(string); ok && len(text) > 10 {
			candidates = append(candidates, candidateText{label: key, text: text})
		}
	}

	return candidates
}

// matchPRO applies the patterns in order and returns the first capture that
// validates and is not the load number in disguise
func matchPRO(text, loadNumber string) (string, bool) {
	for _, pattern := range ProPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		candidate := match[1]
		if !ValidatePRO(candidate) {
			continue
		}
		if isInternalLoadNumber(candidate, loadNumber) {
			continue
		}
		return nonDigits.ReplaceAllString(candidate, ""), true
	}
	return "", false
}

// ValidatePRO reports whether a string is PRO-shaped: 10 to 12 digits after
// stripping everything else
func ValidatePRO(value string) bool {
	digits := nonDigits.ReplaceAllString(value, "")
	return len(digits) >= 10 && len(digits) <= 12
}

// isInternalLoadNumber excludes candidates that are the load number or
// overlap it by containment in either direction. The bidirectional check can
// reject a legitimately short PRO that happens to sit inside a long load
// number; kept for compatibility with observed behavior.
func isInternalLoadNumber(candidate, loadNumber string) bool {
	if loadNumber == "" {
		return false
	}
	digits := nonDigits.ReplaceAllString(candidate, "")
	return digits == loadNumber ||
		strings.Contains(loadNumber, digits) ||
		strings.Contains(digits, loadNumber)
}
