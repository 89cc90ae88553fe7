package axonflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GeneratePlan asks the agent to decompose a query into a multi-agent plan.
// Generation is deterministic for a given query, so responses are cached.
// Plan calls run under MapTimeout rather than the standard request timeout.
func (c *Client) GeneratePlan(ctx context.Context, query, domain string) (*PlanResponse, error) {
	req := clientRequest{
		Query:       query,
		ClientID:    c.cfg.ClientID,
		RequestType: "multi-agent-plan",
	}
	if domain != "" {
		req.Context = map[string]any{"domain": domain}
	}

	payload, err := c.governed(ctx, governedCall{
		name:     "generate_plan",
		request:  req,
		useCache: true,
		retry:    true,
		timeout:  c.cfg.MapTimeout,
	})
	if err != nil {
		return nil, err
	}

	var resp ClientResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode plan response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("plan generation failed: %s", resp.Error)
	}

	plan := PlanResponse{PlanID: resp.PlanID, Metadata: resp.Metadata}
	if resp.Data != nil {
		// The plan body arrives inside the generic data field. Round-trip
		// through JSON to project it onto the typed structure.
		raw, err := json.Marshal(resp.Data)
		if err != nil {
			return nil, fmt.Errorf("decode plan data: %w", err)
		}
		if err := json.Unmarshal(raw, &plan); err != nil {
			return nil, fmt.Errorf("decode plan data: %w", err)
		}
		if plan.PlanID == "" {
			plan.PlanID = resp.PlanID
		}
	}
	return &plan, nil
}

// ExecutePlan runs a previously generated plan to completion. Execution has
// side effects, so the call is neither cached nor retried.
func (c *Client) ExecutePlan(ctx context.Context, planID string) (*PlanExecutionResponse, error) {
	payload, err := c.governed(ctx, governedCall{
		name: "execute_plan",
		request: clientRequest{
			Query:       planID,
			ClientID:    c.cfg.ClientID,
			RequestType: "execute-plan",
			Context:     map[string]any{"plan_id": planID},
		},
		timeout: c.cfg.MapTimeout,
	})
	if err != nil {
		return nil, err
	}

	var resp ClientResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode plan execution response: %w", err)
	}

	result := PlanExecutionResponse{
		PlanID: planID,
		Status: PlanStatusFailed,
		Result: resp.Result,
		Error:  resp.Error,
	}
	if resp.Success {
		result.Status = PlanStatusCompleted
	}
	if d, ok := resp.Metadata["duration"].(string); ok {
		result.Duration = d
	}
	if steps, ok := resp.Metadata["step_results"].(map[string]any); ok {
		result.StepResults = steps
	}
	return &result, nil
}

// GetPlanStatus reports the current state of a running plan. Never cached:
// the whole point is observing progress.
func (c *Client) GetPlanStatus(ctx context.Context, planID string) (*PlanExecutionResponse, error) {
	payload, err := c.do(ctx, operation{
		name:     "get_plan_status",
		method:   http.MethodGet,
		url:      c.cfg.AgentURL + "/api/plans/" + url.PathEscape(planID) + "/status",
		retry:    true,
		timeout:  c.cfg.Timeout,
		notFound: &NotFoundError{Resource: "plan", ID: planID},
	})
	if err != nil {
		return nil, err
	}

	var status PlanExecutionResponse
	if err := json.Unmarshal(payload, &status); err != nil {
		return nil, fmt.Errorf("decode plan status: %w", err)
	}
	if status.PlanID == "" {
		status.PlanID = planID
	}
	return &status, nil
}
