package mapper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/loadapi"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

// loadAPI is the slice of loadapi.Client the mapper needs
type loadAPI interface {
	GetInternalLoadID(ctx context.Context, loadNumber string) (*loadapi.LookupResult, error)
	GetAgentEvents(ctx context.Context, loadID string, limit int) ([]common.AgentEvent, error)
}

// Input row field aliases recognized as a PRO number or carrier name
var (
	csvProFields     = []string{"PRO", "pro_number", "ProNumber", "tracking_number", "carrier_pro"}
	csvCarrierFields = []string{"carrier", "Carrier Name", "carrier_name"}

	// Reference-number names that identify a PRO, matched case-insensitively
	// as substrings
	referenceNameAliases = []string{
		"carrier pro#", "pro_number", "pro #", "pro", "tracking_number",
		"carrier_pro", "pronumber", "tracking", "waybill",
	}
)

// LoadIDMapper resolves submitted loads to internal load IDs and recovers a
// PRO number for each: directly from the input row or load details when
// present, otherwise by scanning the load's agent events.
type LoadIDMapper struct {
	client      loadAPI
	retryCount  int
	retryDelay  time.Duration
	eventsLimit int
	log         *logger.Logger
}

// NewLoadIDMapper creates a new load ID mapper
func NewLoadIDMapper(client loadAPI, apiCfg config.APIConfig, workflowCfg config.WorkflowConfig, log *logger.Logger) *LoadIDMapper {
	return &LoadIDMapper{
		client:      client,
		retryCount:  apiCfg.RetryCount,
		retryDelay:  time.Duration(apiCfg.RetryDelayMs) * time.Millisecond,
		eventsLimit: workflowCfg.EventsLimit,
		log:         log,
	}
}

// MapLoads resolves every processed row to a LoadIDMapping, in row order.
// Rows whose submission failed are mapped without any API calls.
func (m *LoadIDMapper) MapLoads(ctx context.Context, rows []common.Row, results []common.LoadProcessingResult) []common.LoadIDMapping {
	mappings := make([]common.LoadIDMapping, 0, len(results))

	for _, result := range results {
		var row common.Row
		if result.RowIndex >= 0 && result.RowIndex < len(rows) {
			row = rows[result.RowIndex]
		}

		mapping := m.mapLoad(ctx, row, result)
		mappings = append(mappings, mapping)
	}

	return mappings
}

func (m *LoadIDMapper) mapLoad(ctx context.Context, row common.Row, result common.LoadProcessingResult) common.LoadIDMapping {
	mapping := common.LoadIDMapping{
		RowIndex:      result.RowIndex,
		LoadNumber:    result.LoadNumber,
		ProSourceType: common.ProSourceNone,
		ProConfidence: common.ConfidenceNone,
	}
	if row != nil {
		mapping.CarrierName = firstRowValue(row, csvCarrierFields)
	}

	if !result.Success {
		mapping.APIStatus = common.StatusLoadProcessingFailed
		mapping.ErrorMessage = result.ErrorMessage
		mapping.WorkflowPath = common.PathLoadProcessingFailed
		return mapping
	}

	m.lookupInternalID(ctx, &mapping)
	if mapping.APIStatus != common.StatusSuccess {
		mapping.WorkflowPath = common.PathAPIFailed
		return mapping
	}

	m.resolvePRO(ctx, row, &mapping)
	return mapping
}

// lookupInternalID runs the bounded-retry internal ID lookup. 4xx responses
// are terminal; only timeouts, connection errors and 5xx responses are
// retried.
func (m *LoadIDMapper) lookupInternalID(ctx context.Context, mapping *common.LoadIDMapping) {
	lastStatus := common.StatusFailed
	lastMessage := ""

	for attempt := 0; attempt < m.retryCount; attempt++ {
		if attempt > 0 {
			m.log.Warnf("Retrying load ID lookup for %s (attempt %d/%d)", mapping.LoadNumber, attempt+1, m.retryCount)
			select {
			case <-time.After(m.retryDelay):
			case <-ctx.Done():
				mapping.APIStatus = lastStatus
				mapping.ErrorMessage = ctx.Err().Error()
				return
			}
		}

		result, err := m.client.GetInternalLoadID(ctx, mapping.LoadNumber)
		if err != nil {
			lastStatus = classifyTransportError(err)
			lastMessage = err.Error()
			continue
		}

		switch {
		case result.StatusCode == http.StatusOK:
			if result.InternalLoadID == "" {
				mapping.APIStatus = common.StatusNoIDInResponse
				mapping.ErrorMessage = "lookup response contained no load ID field"
				return
			}
			mapping.APIStatus = common.StatusSuccess
			mapping.InternalLoadID = result.InternalLoadID
			mapping.LoadDetails = result.Details
			return
		case result.StatusCode == http.StatusNotFound:
			mapping.APIStatus = common.StatusNotFound
			return
		case result.StatusCode == http.StatusUnauthorized:
			mapping.APIStatus = common.StatusAuthFailed
			return
		case result.StatusCode == http.StatusForbidden:
			mapping.APIStatus = common.StatusAccessForbidden
			return
		case result.StatusCode >= 400 && result.StatusCode < 500:
			mapping.APIStatus = common.StatusClientError
			return
		default:
			// 5xx, retry
			lastStatus = common.StatusError
			lastMessage = "lookup returned status " + http.StatusText(result.StatusCode)
		}
	}

	mapping.APIStatus = lastStatus
	mapping.ErrorMessage = lastMessage
}

// resolvePRO picks the workflow path: a PRO already in the input row, one in
// the load details reference numbers, or the full event-scanning workflow
func (m *LoadIDMapper) resolvePRO(ctx context.Context, row common.Row, mapping *common.LoadIDMapping) {
	if row != nil {
		if pro := firstRowValue(row, csvProFields); pro != "" {
			mapping.WorkflowPath = common.PathDirectTracking
			mapping.ProNumber = pro
			mapping.ProSourceType = common.ProSourceCSV
			mapping.ProConfidence = common.ConfidenceHigh
			mapping.ProContext = "PRO number present in input data"
			return
		}
	}

	if pro, name := proFromReferenceNumbers(mapping.LoadDetails); pro != "" {
		mapping.WorkflowPath = common.PathDirectTracking
		mapping.ProNumber = pro
		mapping.ProSourceType = common.ProSourceReferenceNumbers
		mapping.ProConfidence = common.ConfidenceHigh
		mapping.ProContext = "PRO number found in load reference number " + name
		return
	}

	mapping.WorkflowPath = common.PathFullWorkflow
	events, err := m.client.GetAgentEvents(ctx, mapping.InternalLoadID, m.eventsLimit)
	if err != nil {
		m.log.Errorf("Failed to fetch agent events for load %s: %v", mapping.LoadNumber, err)
		mapping.ProContext = "agent events fetch failed: " + err.Error()
		return
	}
	if len(events) == 0 {
		mapping.ProContext = "load has no agent events"
		return
	}
	mapping.AgentEvents = events

	extraction, found := ExtractPRO(events, mapping.LoadNumber)
	mapping.ProSourceType = extraction.Source
	mapping.ProConfidence = extraction.Confidence
	mapping.ProContext = extraction.Context
	if found {
		mapping.ProNumber = extraction.ProNumber
	}
}

// proFromReferenceNumbers scans the reference numbers in the load details for
// an entry whose name looks PRO-like and whose value validates
func proFromReferenceNumbers(details map[string]interface{}) (pro, name string) {
	for _, ref := range referenceNumberEntries(details) {
		refName, _ := ref["name"].(string)
		value := common.Row(ref).GetString("value")
		if refName == "" || value == "" {
			continue
		}
		if !matchesReferenceAlias(refName) {
			continue
		}
		if ValidatePRO(value) {
			return nonDigits.ReplaceAllString(value, ""), refName
		}
	}
	return "", ""
}

func referenceNumberEntries(details map[string]interface{}) []map[string]interface{} {
	if details == nil {
		return nil
	}

	raw, ok := details["referenceNumbers"]
	if !ok {
		if load, isMap := details["load"].(map[string]interface{}); isMap {
			raw = load["referenceNumbers"]
		}
	}

	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	entries := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if entry, isMap := item.(map[string]interface{}); isMap {
			entries = append(entries, entry)
		}
	}
	return entries
}

func matchesReferenceAlias(name string) bool {
	lowered := strings.ToLower(name)
	for _, alias := range referenceNameAliases {
		if strings.Contains(lowered, alias) {
			return true
		}
	}
	return false
}

// classifyTransportError splits lookup failures into timeouts and connection
// errors
func classifyTransportError(err error) common.APIStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.StatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return common.StatusTimeout
	}
	return common.StatusConnectionError
}

// firstRowValue returns the first non-empty row value among the given fields
func firstRowValue(row common.Row, fields []string) string {
	for _, field := range fields {
		if v := row.GetString(field); v != "" {
			return v
		}
	}
	return ""
}
