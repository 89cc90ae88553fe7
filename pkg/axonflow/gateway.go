package axonflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// PreCheckRequest asks for policy approval before a direct LLM call.
type PreCheckRequest struct {
	UserToken   string
	Query       string
	DataSources []string
	Context     map[string]any
}

type preCheckWire struct {
	UserToken   string         `json:"user_token"`
	ClientID    string         `json:"client_id,omitempty"`
	Query       string         `json:"query"`
	DataSources []string       `json:"data_sources,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// GetPolicyApprovedContext runs the gateway-mode pre-check: policies are
// evaluated and approved data is returned before the application calls its
// LLM provider directly. A denial comes back as a result with Approved set
// to false, not as an error, so callers always inspect the decision.
func (c *Client) GetPolicyApprovedContext(ctx context.Context, req PreCheckRequest) (*PolicyApprovalResult, error) {
	payload, err := c.do(ctx, operation{
		name:   "policy_pre_check",
		method: http.MethodPost,
		url:    c.cfg.AgentURL + "/api/policy/pre-check",
		body: preCheckWire{
			UserToken:   req.UserToken,
			ClientID:    c.cfg.ClientID,
			Query:       req.Query,
			DataSources: req.DataSources,
			Context:     req.Context,
		},
		retry:        true,
		allowBlocked: true,
		timeout:      c.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var result PolicyApprovalResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode pre-check response: %w", err)
	}
	return &result, nil
}

// AuditRequest records the outcome of a direct LLM call made under a
// pre-checked context.
type AuditRequest struct {
	ContextID       string
	ResponseSummary string
	Provider        string
	Model           string
	TokenUsage      TokenUsage
	LatencyMS       int
	Metadata        map[string]any
}

type auditWire struct {
	ContextID       string         `json:"context_id"`
	ResponseSummary string         `json:"response_summary,omitempty"`
	Provider        string         `json:"provider"`
	Model           string         `json:"model,omitempty"`
	TokenUsage      TokenUsage     `json:"token_usage"`
	LatencyMS       int            `json:"latency_ms,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// AuditLLMCall submits the compliance record for a direct LLM call. The
// submission is an append, not idempotent, so it is never retried.
func (c *Client) AuditLLMCall(ctx context.Context, req AuditRequest) (*AuditResult, error) {
	payload, err := c.do(ctx, operation{
		name:   "audit_llm_call",
		method: http.MethodPost,
		url:    c.cfg.AgentURL + "/api/audit/llm-call",
		body: auditWire{
			ContextID:       req.ContextID,
			ResponseSummary: req.ResponseSummary,
			Provider:        req.Provider,
			Model:           req.Model,
			TokenUsage:      req.TokenUsage,
			LatencyMS:       req.LatencyMS,
			Metadata:        req.Metadata,
		},
		allowBlocked: true,
		timeout:      c.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var result AuditResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode audit response: %w", err)
	}
	return &result, nil
}
