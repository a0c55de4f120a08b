package common

// Row represents one freight load record as a mapping from field name to value.
// Rows are copied before mutation; processing is sequential, so rows are never
// shared between concurrent operations.
type Row map[string]interface{}

// Copy returns a shallow copy of the row
func (r Row) Copy() Row {
	copied := make(Row, len(r))
	for k, v := range r {
		copied[k] = v
	}
	return copied
}

// GetString returns the string form of a field value, or "" if absent or nil
func (r Row) GetString(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return Stringify(v)
}

// APIStatus classifies the outcome of a load-API lookup
type APIStatus string

const (
	StatusSuccess              APIStatus = "success"
	StatusNoIDInResponse       APIStatus = "no_id_in_response"
	StatusNotFound             APIStatus = "not_found"
	StatusAuthFailed           APIStatus = "auth_failed"
	StatusAccessForbidden      APIStatus = "access_forbidden"
	StatusClientError          APIStatus = "client_error"
	StatusTimeout              APIStatus = "timeout"
	StatusConnectionError      APIStatus = "connection_error"
	StatusError                APIStatus = "error"
	StatusFailed               APIStatus = "failed"
	StatusLoadProcessingFailed APIStatus = "load_processing_failed"
)

// ProSource identifies where a PRO number was recovered from
type ProSource string

const (
	ProSourceCSV              ProSource = "csv"
	ProSourceReferenceNumbers ProSource = "reference_numbers"
	ProSourceEmail            ProSource = "email"
	ProSourceCall             ProSource = "call"
	ProSourceText             ProSource = "text"
	ProSourceSystem           ProSource = "system"
	ProSourceOther            ProSource = "other"
	ProSourceNone             ProSource = "none"
)

// ProConfidence grades how trustworthy a recovered PRO number is
type ProConfidence string

const (
	ConfidenceHigh   ProConfidence = "high"
	ConfidenceMedium ProConfidence = "medium"
	ConfidenceLow    ProConfidence = "low"
	ConfidenceNone   ProConfidence = "none"
)

// WorkflowPath records which resolution path produced a mapping
type WorkflowPath string

const (
	PathDirectTracking       WorkflowPath = "direct_tracking"
	PathFullWorkflow         WorkflowPath = "full_workflow"
	PathAPIFailed            WorkflowPath = "api_failed"
	PathLoadProcessingFailed WorkflowPath = "load_processing_failed"
)

// LoadProcessingResult is produced once per row after submission to the load API
type LoadProcessingResult struct {
	RowIndex     int                    `json:"rowIndex"`
	LoadNumber   string                 `json:"loadNumber,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	ResponseData map[string]interface{} `json:"responseData,omitempty"`
}

// AgentEvent is one timestamped record of an automated or human interaction
// associated with a load (email, call, system status change)
type AgentEvent struct {
	ID        string                 `json:"id"`
	Code      string                 `json:"code"`
	CreatedAt string                 `json:"createdAt"`
	Data      map[string]interface{} `json:"data"`
}

// LoadIDMapping records the resolution of one submitted load: its internal
// load ID, PRO number, and the provenance of both
type LoadIDMapping struct {
	RowIndex       int                    `json:"rowIndex"`
	LoadNumber     string                 `json:"loadNumber"`
	InternalLoadID string                 `json:"internalLoadId,omitempty"`
	APIStatus      APIStatus              `json:"apiStatus"`
	ErrorMessage   string                 `json:"errorMessage,omitempty"`
	ProNumber      string                 `json:"proNumber,omitempty"`
	CarrierName    string                 `json:"carrierName,omitempty"`
	LoadDetails    map[string]interface{} `json:"loadDetails,omitempty"`
	AgentEvents    []AgentEvent           `json:"agentEvents,omitempty"`
	ProSourceType  ProSource              `json:"proSourceType"`
	ProConfidence  ProConfidence          `json:"proConfidence"`
	ProContext     string                 `json:"proContext,omitempty"`
	WorkflowPath   WorkflowPath           `json:"workflowPath"`
}

// MappingSummary tallies mapping outcomes per API status
type MappingSummary struct {
	Total                int `json:"total"`
	Success              int `json:"success"`
	Failed               int `json:"failed"`
	NotFound             int `json:"not_found"`
	LoadProcessingFailed int `json:"load_processing_failed"`
	AuthFailed           int `json:"auth_failed"`
	Timeout              int `json:"timeout"`
	ConnectionError      int `json:"connection_error"`
	OtherError           int `json:"other_error"`
}
