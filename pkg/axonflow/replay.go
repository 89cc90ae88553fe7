package axonflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Execution replay reads hit the orchestrator, not the agent. They are plain
// reads: retried, never cached, and a 404 maps to a typed not-found error.

func (c *Client) executionsURL(parts ...string) string {
	u := c.cfg.OrchestratorURL + "/api/v1/executions"
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

// ListExecutions returns one page of recorded workflow executions. A nil
// opts lists with the orchestrator's defaults.
func (c *Client) ListExecutions(ctx context.Context, opts *ListExecutionsOptions) (*ListExecutionsResponse, error) {
	target := c.executionsURL()
	if opts != nil {
		params := url.Values{}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
		if opts.Status != "" {
			params.Set("status", opts.Status)
		}
		if opts.WorkflowID != "" {
			params.Set("workflow_id", opts.WorkflowID)
		}
		if !opts.StartTime.IsZero() {
			params.Set("start_time", opts.StartTime.UTC().Format(time.RFC3339))
		}
		if !opts.EndTime.IsZero() {
			params.Set("end_time", opts.EndTime.UTC().Format(time.RFC3339))
		}
		if encoded := params.Encode(); encoded != "" {
			target += "?" + encoded
		}
	}

	payload, err := c.do(ctx, operation{
		name:         "list_executions",
		method:       http.MethodGet,
		url:          target,
		retry:        true,
		allowBlocked: true,
		timeout:      c.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var page ListExecutionsResponse
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, fmt.Errorf("decode executions page: %w", err)
	}
	return &page, nil
}

// GetExecution returns the summary and recorded steps of one execution.
func (c *Client) GetExecution(ctx context.Context, requestID string) (*ExecutionDetail, error) {
	payload, err := c.do(ctx, operation{
		name:         "get_execution",
		method:       http.MethodGet,
		url:          c.executionsURL(requestID),
		retry:        true,
		allowBlocked: true,
		timeout:      c.cfg.Timeout,
		notFound:     &NotFoundError{Resource: "execution", ID: requestID},
	})
	if err != nil {
		return nil, err
	}

	var detail ExecutionDetail
	if err := json.Unmarshal(payload, &detail); err != nil {
		return nil, fmt.Errorf("decode execution detail: %w", err)
	}
	return &detail, nil
}

// GetExecutionSteps returns the ordered step snapshots of an execution.
func (c *Client) GetExecutionSteps(ctx context.Context, requestID string) ([]ExecutionSnapshot, error) {
	payload, err := c.do(ctx, operation{
		name:         "get_execution_steps",
		method:       http.MethodGet,
		url:          c.executionsURL(requestID, "steps"),
		retry:        true,
		allowBlocked: true,
		timeout:      c.cfg.Timeout,
		notFound:     &NotFoundError{Resource: "execution", ID: requestID},
	})
	if err != nil {
		return nil, err
	}

	var steps []ExecutionSnapshot
	if err := json.Unmarshal(payload, &steps); err != nil {
		return nil, fmt.Errorf("decode execution steps: %w", err)
	}
	return steps, nil
}

// GetExecutionTimeline returns the condensed per-step timeline used for
// visualizing an execution.
func (c *Client) GetExecutionTimeline(ctx context.Context, requestID string) ([]TimelineEntry, error) {
	payload, err := c.do(ctx, operation{
		name:         "get_execution_timeline",
		method:       http.MethodGet,
		url:          c.executionsURL(requestID, "timeline"),
		retry:        true,
		allowBlocked: true,
		timeout:      c.cfg.Timeout,
		notFound:     &NotFoundError{Resource: "execution", ID: requestID},
	})
	if err != nil {
		return nil, err
	}

	var timeline []TimelineEntry
	if err := json.Unmarshal(payload, &timeline); err != nil {
		return nil, fmt.Errorf("decode execution timeline: %w", err)
	}
	return timeline, nil
}

// ExportExecution returns an execution as a portable document. A nil opts
// exports with the orchestrator's defaults; otherwise format is always sent
// and the include flags are sent only when set.
func (c *Client) ExportExecution(ctx context.Context, requestID string, opts *ExecutionExportOptions) (map[string]any, error) {
	target := c.executionsURL(requestID, "export")
	if opts != nil {
		params := url.Values{}
		if opts.Format != "" {
			params.Set("format", opts.Format)
		}
		if opts.IncludeInput {
			params.Set("include_input", "true")
		}
		if opts.IncludeOutput {
			params.Set("include_output", "true")
		}
		if opts.IncludePolicies {
			params.Set("include_policies", "true")
		}
		if encoded := params.Encode(); encoded != "" {
			target += "?" + encoded
		}
	}

	payload, err := c.do(ctx, operation{
		name:         "export_execution",
		method:       http.MethodGet,
		url:          target,
		retry:        true,
		allowBlocked: true,
		timeout:      c.cfg.Timeout,
		notFound:     &NotFoundError{Resource: "execution", ID: requestID},
	})
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode execution export: %w", err)
	}
	return doc, nil
}

// DeleteExecution removes a recorded execution, typically for data retention
// compliance. Deletion is idempotent on the orchestrator side but a repeat
// surfaces as not found.
func (c *Client) DeleteExecution(ctx context.Context, requestID string) error {
	_, err := c.do(ctx, operation{
		name:         "delete_execution",
		method:       http.MethodDelete,
		url:          c.executionsURL(requestID),
		allowBlocked: true,
		timeout:      c.cfg.Timeout,
		notFound:     &NotFoundError{Resource: "execution", ID: requestID},
	})
	return err
}
