package axonflow

import (
	"encoding/json"
	"time"

	"github.com/getaxonflow/axonflow-go/internal/timeparse"
)

// Time is a timestamp field as emitted by the agent and orchestrator. The
// services mix sub-second precision freely (none, milliseconds, micro- or
// nanoseconds), so decoding goes through a normalizer instead of the fixed
// RFC 3339 layout.
type Time struct {
	time.Time
}

// UnmarshalJSON decodes a JSON string timestamp; null yields the zero time.
func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := timeparse.Normalize(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON renders the timestamp at microsecond precision.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format("2006-01-02T15:04:05.999999Z07:00"))
}

// clientRequest is the wire form of a governed request to the agent.
type clientRequest struct {
	Query       string         `json:"query"`
	UserToken   string         `json:"user_token"`
	ClientID    string         `json:"client_id,omitempty"`
	RequestType string         `json:"request_type"`
	Context     map[string]any `json:"context,omitempty"`
}

// CodeArtifact describes code detected in an LLM response, included in
// policy info for audit purposes.
type CodeArtifact struct {
	IsCodeOutput    bool     `json:"is_code_output"`
	Language        string   `json:"language"`
	CodeType        string   `json:"code_type"`
	SizeBytes       int      `json:"size_bytes"`
	LineCount       int      `json:"line_count"`
	SecretsDetected int      `json:"secrets_detected"`
	UnsafePatterns  int      `json:"unsafe_patterns"`
	PoliciesChecked []string `json:"policies_checked,omitempty"`
}

// PolicyEvaluationInfo carries policy evaluation metadata for a response.
type PolicyEvaluationInfo struct {
	PoliciesEvaluated []string      `json:"policies_evaluated,omitempty"`
	StaticChecks      []string      `json:"static_checks,omitempty"`
	ProcessingTime    string        `json:"processing_time,omitempty"`
	TenantID          string        `json:"tenant_id,omitempty"`
	CodeArtifact      *CodeArtifact `json:"code_artifact,omitempty"`
}

// ClientResponse is the agent's answer to a governed request.
type ClientResponse struct {
	Success     bool                  `json:"success"`
	Data        any                   `json:"data,omitempty"`
	Result      string                `json:"result,omitempty"`
	PlanID      string                `json:"plan_id,omitempty"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
	Error       string                `json:"error,omitempty"`
	Blocked     bool                  `json:"blocked"`
	BlockReason string                `json:"block_reason,omitempty"`
	PolicyInfo  *PolicyEvaluationInfo `json:"policy_info,omitempty"`
}

// ConnectorMetadata describes an MCP connector known to the agent.
type ConnectorMetadata struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Version      string         `json:"version,omitempty"`
	Description  string         `json:"description,omitempty"`
	Category     string         `json:"category,omitempty"`
	Icon         string         `json:"icon,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	ConfigSchema map[string]any `json:"config_schema,omitempty"`
	Installed    bool           `json:"installed"`
	Healthy      bool           `json:"healthy"`
}

// ConnectorInstallRequest asks the agent to install an MCP connector.
type ConnectorInstallRequest struct {
	ConnectorID string            `json:"connector_id"`
	Name        string            `json:"name"`
	TenantID    string            `json:"tenant_id"`
	Options     map[string]any    `json:"options,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

// ConnectorResponse is the result of a connector query.
type ConnectorResponse struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// PlanStep is one step of a multi-agent plan.
type PlanStep struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Agent       string         `json:"agent,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// PlanResponse is a generated multi-agent plan.
type PlanResponse struct {
	PlanID     string         `json:"plan_id"`
	Steps      []PlanStep     `json:"steps,omitempty"`
	Domain     string         `json:"domain,omitempty"`
	Complexity int            `json:"complexity,omitempty"`
	Parallel   bool           `json:"parallel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Plan execution statuses.
const (
	PlanStatusRunning   = "running"
	PlanStatusCompleted = "completed"
	PlanStatusFailed    = "failed"
)

// PlanExecutionResponse is the state or result of a plan execution.
type PlanExecutionResponse struct {
	PlanID      string         `json:"plan_id"`
	Status      string         `json:"status"`
	Result      string         `json:"result,omitempty"`
	StepResults map[string]any `json:"step_results,omitempty"`
	Error       string         `json:"error,omitempty"`
	Duration    string         `json:"duration,omitempty"`
}

// RateLimitInfo reports rate limiting state alongside a pre-check.
type RateLimitInfo struct {
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	ResetAt   Time `json:"reset_at"`
}

// PolicyApprovalResult is the outcome of a gateway-mode pre-check. A denial
// is data, not an error: callers inspect Approved and BlockReason.
type PolicyApprovalResult struct {
	ContextID     string         `json:"context_id"`
	Approved      bool           `json:"approved"`
	ApprovedData  map[string]any `json:"approved_data,omitempty"`
	Policies      []string       `json:"policies,omitempty"`
	RateLimitInfo *RateLimitInfo `json:"rate_limit,omitempty"`
	ExpiresAt     Time           `json:"expires_at"`
	BlockReason   string         `json:"block_reason,omitempty"`
}

// TokenUsage tracks LLM token consumption for audit submission.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AuditResult confirms an audit submission.
type AuditResult struct {
	Success bool   `json:"success"`
	AuditID string `json:"audit_id"`
}

// ExecutionSummary is a workflow execution overview from the orchestrator.
type ExecutionSummary struct {
	RequestID      string  `json:"request_id"`
	WorkflowName   string  `json:"workflow_name,omitempty"`
	Status         string  `json:"status"`
	TotalSteps     int     `json:"total_steps"`
	CompletedSteps int     `json:"completed_steps"`
	StartedAt      Time    `json:"started_at"`
	CompletedAt    *Time   `json:"completed_at,omitempty"`
	DurationMS     int64   `json:"duration_ms,omitempty"`
	TotalTokens    int     `json:"total_tokens,omitempty"`
	TotalCostUSD   float64 `json:"total_cost_usd,omitempty"`
	OrgID          string  `json:"org_id,omitempty"`
	TenantID       string  `json:"tenant_id,omitempty"`
	UserID         string  `json:"user_id,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	InputSummary   any     `json:"input_summary,omitempty"`
	OutputSummary  any     `json:"output_summary,omitempty"`
}

// ExecutionSnapshot is one recorded step of a workflow execution.
type ExecutionSnapshot struct {
	RequestID         string   `json:"request_id"`
	StepIndex         int      `json:"step_index"`
	StepName          string   `json:"step_name"`
	Status            string   `json:"status"`
	StartedAt         Time     `json:"started_at"`
	CompletedAt       *Time    `json:"completed_at,omitempty"`
	DurationMS        int64    `json:"duration_ms,omitempty"`
	Provider          string   `json:"provider,omitempty"`
	Model             string   `json:"model,omitempty"`
	TokensIn          int      `json:"tokens_in,omitempty"`
	TokensOut         int      `json:"tokens_out,omitempty"`
	CostUSD           float64  `json:"cost_usd,omitempty"`
	Input             any      `json:"input,omitempty"`
	Output            any      `json:"output,omitempty"`
	ErrorMessage      string   `json:"error_message,omitempty"`
	PoliciesChecked   []string `json:"policies_checked,omitempty"`
	PoliciesTriggered []string `json:"policies_triggered,omitempty"`
	ApprovalRequired  bool     `json:"approval_required,omitempty"`
	ApprovedBy        string   `json:"approved_by,omitempty"`
	ApprovedAt        string   `json:"approved_at,omitempty"`
}

// TimelineEntry is a step in the execution timeline visualization.
type TimelineEntry struct {
	StepIndex   int    `json:"step_index"`
	StepName    string `json:"step_name"`
	Status      string `json:"status"`
	StartedAt   Time   `json:"started_at"`
	CompletedAt *Time  `json:"completed_at,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	HasError    bool   `json:"has_error"`
	HasApproval bool   `json:"has_approval"`
}

// ListExecutionsResponse is one page of executions.
type ListExecutionsResponse struct {
	Executions []ExecutionSummary `json:"executions"`
	Total      int                `json:"total"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// ExecutionDetail is a full execution: summary plus ordered steps.
type ExecutionDetail struct {
	Summary ExecutionSummary    `json:"summary"`
	Steps   []ExecutionSnapshot `json:"steps,omitempty"`
}

// ListExecutionsOptions filters and paginates execution listings.
type ListExecutionsOptions struct {
	Limit      int
	Offset     int
	Status     string
	WorkflowID string
	StartTime  time.Time
	EndTime    time.Time
}

// ExecutionExportOptions controls execution export content.
type ExecutionExportOptions struct {
	Format          string
	IncludeInput    bool
	IncludeOutput   bool
	IncludePolicies bool
}

// DefaultExportOptions matches the server-side export defaults.
func DefaultExportOptions() ExecutionExportOptions {
	return ExecutionExportOptions{
		Format:          "json",
		IncludeInput:    true,
		IncludeOutput:   true,
		IncludePolicies: true,
	}
}
