package workflow

import (
	"context"
	"fmt"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/enrichment"
	"github.com/augmentac/ff2api-postback/pkg/loadapi"
	"github.com/augmentac/ff2api-postback/pkg/logger"
	"github.com/augmentac/ff2api-postback/pkg/mapper"
	"github.com/augmentac/ff2api-postback/pkg/postback"
	"github.com/google/uuid"
)

// Step statuses
const (
	StepPending   = "pending"
	StepRunning   = "running"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// Step tracks the state of one pipeline stage
type Step struct {
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Progress float64                `json:"progress"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// ProgressFunc receives step updates as the pipeline advances
type ProgressFunc func(step Step)

// Summary reports the outcome of one pipeline run
type Summary struct {
	RunID            string                `json:"runId"`
	WorkflowType     string                `json:"workflowType"`
	TotalRows        int                   `json:"totalRows"`
	Submitted        int                   `json:"submitted"`
	SubmissionFailed int                   `json:"submissionFailed"`
	Mapping          common.MappingSummary `json:"mapping"`
	ProResolved      int                   `json:"proResolved"`
	PostbackResults  map[string]bool       `json:"postbackResults"`
	Steps            []Step                `json:"steps"`
}

// Narrow views of the pipeline stages, swappable for tests
type (
	loadSubmitter interface {
		CreateLoad(ctx context.Context, row common.Row) (map[string]interface{}, error)
	}
	idMapper interface {
		MapLoads(ctx context.Context, rows []common.Row, results []common.LoadProcessingResult) []common.LoadIDMapping
	}
	enricher interface {
		EnrichRows(ctx context.Context, rows []common.Row) []common.Row
	}
	poster interface {
		PostAll(ctx context.Context, rows []common.Row) map[string]bool
	}
)

// Row field aliases accepted as the brokerage load number
var loadNumberFields = []string{"load_number", "load_id", "Load #", "BOL #"}

// Row field aliases accepted as any load identifier for postback-only runs
var identifierFields = []string{
	"load_number", "load_id", "Load #", "BOL #",
	"PRO", "pro_number", "ProNumber", "tracking_number", "carrier_pro",
}

// Processor runs the pipeline: validate, submit, map IDs, enrich, post back.
// Execution is sequential; rows are never dropped once submitted and output
// order matches input order.
type Processor struct {
	workflowType string
	rowMapper    *common.RowMapper
	submitter    loadSubmitter
	idMapper     idMapper
	enricher     enricher
	poster       poster
	onProgress   ProgressFunc
	log          *logger.Logger

	steps []Step
}

// NewProcessor wires a processor from configuration
func NewProcessor(cfg *config.Config, log *logger.Logger) *Processor {
	client := loadapi.NewClient(cfg.API, log)

	return &Processor{
		workflowType: cfg.Workflow.Type,
		rowMapper:    common.NewRowMapper(cfg.Mapping),
		submitter:    client,
		idMapper:     mapper.NewLoadIDMapper(client, cfg.API, cfg.Workflow, log),
		enricher:     enrichment.NewManager(cfg.Enrichment.Sources, log),
		poster:       postback.NewRouter(cfg.Postback.Handlers, log),
		log:          log,
	}
}

// NewProcessorWithDeps wires a processor from pre-built stages, bypassing
// configuration
func NewProcessorWithDeps(workflowType string, rowMapper *common.RowMapper, submitter loadSubmitter, idMapper idMapper, enricher enricher, poster poster, log *logger.Logger) *Processor {
	return &Processor{
		workflowType: workflowType,
		rowMapper:    rowMapper,
		submitter:    submitter,
		idMapper:     idMapper,
		enricher:     enricher,
		poster:       poster,
		log:          log,
	}
}

// OnProgress registers a callback for step updates
func (p *Processor) OnProgress(fn ProgressFunc) {
	p.onProgress = fn
}

// Run executes the pipeline over the input rows. The returned rows are the
// final enriched batch, in input order.
func (p *Processor) Run(ctx context.Context, rows []common.Row) (*Summary, []common.Row, error) {
	summary := &Summary{
		RunID:        uuid.NewString(),
		WorkflowType: p.workflowType,
		TotalRows:    len(rows),
	}
	p.steps = nil
	p.log.Infof("Starting %s workflow run %s with %d rows", p.workflowType, summary.RunID, len(rows))

	// Step 1: validate the input
	if err := p.runStep("upload", func(step *Step) error {
		if err := p.validateRows(rows); err != nil {
			return err
		}
		step.Message = fmt.Sprintf("Validated %d rows", len(rows))
		return nil
	}); err != nil {
		summary.Steps = p.steps
		return summary, nil, err
	}

	working := rows

	if p.workflowType == "endtoend" {
		// Step 2: submit every row to the load API
		var results []common.LoadProcessingResult
		p.runStep("ff2api", func(step *Step) error {
			results = p.submitRows(ctx, rows, step)
			for _, r := range results {
				if r.Success {
					summary.Submitted++
				} else {
					summary.SubmissionFailed++
				}
			}
			step.Message = fmt.Sprintf("Submitted %d of %d loads", summary.Submitted, len(rows))
			return nil
		})

		// Step 3: resolve internal load IDs and PRO numbers
		var mappings []common.LoadIDMapping
		p.runStep("mapping", func(step *Step) error {
			mappings = p.idMapper.MapLoads(ctx, rows, results)
			summary.Mapping = mapper.Summarize(mappings)
			for _, m := range mappings {
				if m.ProNumber != "" {
					summary.ProResolved++
				}
			}
			step.Message = fmt.Sprintf("Resolved %d of %d internal load IDs, %d PRO numbers",
				summary.Mapping.Success, summary.Mapping.Total, summary.ProResolved)
			return nil
		})

		working = mergeMappings(rows, mappings)
	}

	// Enrich the batch
	p.runStep("enrichment", func(step *Step) error {
		working = p.enricher.EnrichRows(ctx, working)
		step.Message = fmt.Sprintf("Enriched %d rows", len(working))
		return nil
	})

	// Deliver to every configured destination
	p.runStep("postback", func(step *Step) error {
		summary.PostbackResults = p.poster.PostAll(ctx, working)
		delivered := 0
		for _, ok := range summary.PostbackResults {
			if ok {
				delivered++
			}
		}
		step.Message = fmt.Sprintf("Delivered to %d of %d destinations", delivered, len(summary.PostbackResults))
		if delivered < len(summary.PostbackResults) {
			return fmt.Errorf("%d postback destinations failed", len(summary.PostbackResults)-delivered)
		}
		return nil
	})

	summary.Steps = p.steps
	p.log.Infof("Workflow run %s finished", summary.RunID)
	return summary, working, nil
}

// runStep executes one pipeline stage, tracking its status and reporting
// progress. A stage error marks the step failed but only validation aborts
// the run.
func (p *Processor) runStep(name string, fn func(step *Step) error) error {
	step := Step{Name: name, Status: StepRunning}
	p.emit(step)

	err := fn(&step)
	step.Progress = 1.0
	if err != nil {
		step.Status = StepFailed
		step.Message = err.Error()
		p.log.Errorf("Step %s failed: %v", name, err)
	} else {
		step.Status = StepCompleted
	}

	p.steps = append(p.steps, step)
	p.emit(step)
	return err
}

func (p *Processor) emit(step Step) {
	if p.onProgress != nil {
		p.onProgress(step)
	}
}

// validateRows enforces the identifier requirements of the workflow type:
// endtoend rows must carry a load number, postback rows any load identifier
func (p *Processor) validateRows(rows []common.Row) error {
	if len(rows) == 0 {
		return fmt.Errorf("no input rows to process")
	}

	required := loadNumberFields
	if p.workflowType == "postback" {
		required = identifierFields
	}

	for i, row := range rows {
		if firstRowValue(row, required) == "" {
			return fmt.Errorf("row %d has no load identifier (expected one of %v)", i, required)
		}
	}
	return nil
}

// submitRows sends every row to the load API, isolating per-row failures
func (p *Processor) submitRows(ctx context.Context, rows []common.Row, step *Step) []common.LoadProcessingResult {
	results := make([]common.LoadProcessingResult, 0, len(rows))

	for i, row := range rows {
		result := common.LoadProcessingResult{
			RowIndex:   i,
			LoadNumber: firstRowValue(row, loadNumberFields),
		}

		mapped, err := p.rowMapper.MapRow(row)
		if err == nil {
			if mappedNumber := mapped.GetString("load_number"); mappedNumber != "" {
				result.LoadNumber = mappedNumber
			}
			result.ResponseData, err = p.submitter.CreateLoad(ctx, mapped)
		}

		if err != nil {
			result.ErrorMessage = err.Error()
			p.log.Errorf("Failed to submit load %s: %v", result.LoadNumber, err)
		} else {
			result.Success = true
		}

		results = append(results, result)
		step.Progress = float64(i+1) / float64(len(rows))
	}

	return results
}

// mergeMappings annotates each row with its resolution outcome. Rows without
// a mapping pass through unchanged.
func mergeMappings(rows []common.Row, mappings []common.LoadIDMapping) []common.Row {
	byIndex := make(map[int]common.LoadIDMapping, len(mappings))
	for _, m := range mappings {
		byIndex[m.RowIndex] = m
	}

	merged := make([]common.Row, 0, len(rows))
	for i, row := range rows {
		out := row.Copy()
		if m, ok := byIndex[i]; ok {
			out["load_number"] = m.LoadNumber
			out["load_id_status"] = string(m.APIStatus)
			out["workflow_path"] = string(m.WorkflowPath)
			out["pro_source_type"] = string(m.ProSourceType)
			out["pro_confidence"] = string(m.ProConfidence)
			if m.InternalLoadID != "" {
				out["internal_load_id"] = m.InternalLoadID
			}
			if m.ProNumber != "" {
				out["PRO"] = m.ProNumber
				out["pro_number"] = m.ProNumber
			}
			if m.CarrierName != "" {
				out["carrier"] = m.CarrierName
			}
			if m.ProContext != "" {
				out["pro_context"] = m.ProContext
			}
			if m.ErrorMessage != "" {
				out["load_id_error"] = m.ErrorMessage
			}
		}
		merged = append(merged, out)
	}
	return merged
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
