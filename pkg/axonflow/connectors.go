package axonflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ListConnectors returns the MCP connectors known to the agent, installed or
// not. Results are not cached: connector state changes out of band.
func (c *Client) ListConnectors(ctx context.Context) ([]ConnectorMetadata, error) {
	payload, err := c.do(ctx, operation{
		name:    "list_connectors",
		method:  http.MethodGet,
		url:     c.cfg.AgentURL + "/api/connectors",
		retry:   true,
		timeout: c.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var connectors []ConnectorMetadata
	if err := json.Unmarshal(payload, &connectors); err != nil {
		return nil, fmt.Errorf("decode connector list: %w", err)
	}
	return connectors, nil
}

// InstallConnector asks the agent to install a connector for a tenant.
// Installation is not idempotent, so the call is never retried.
func (c *Client) InstallConnector(ctx context.Context, req ConnectorInstallRequest) error {
	if req.ConnectorID == "" {
		return ErrMissingConnectorID
	}

	_, err := c.do(ctx, operation{
		name:    "install_connector",
		method:  http.MethodPost,
		url:     c.cfg.AgentURL + "/api/v1/connectors/" + url.PathEscape(req.ConnectorID) + "/install",
		body:    req,
		timeout: c.cfg.Timeout,
	})
	return err
}

// ConnectorQuery is a governed query against an installed connector.
type ConnectorQuery struct {
	UserToken     string
	ConnectorName string
	Operation     string
	Params        map[string]any
}

// QueryConnector runs a connector operation through governance. The call is
// subject to the same policy checks, caching, and retry as ExecuteQuery.
func (c *Client) QueryConnector(ctx context.Context, q ConnectorQuery) (*ConnectorResponse, error) {
	payload, err := c.governed(ctx, governedCall{
		name: "query_connector",
		request: clientRequest{
			Query:       q.Operation,
			UserToken:   q.UserToken,
			ClientID:    c.cfg.ClientID,
			RequestType: fmt.Sprintf("connector:%s:%s", q.ConnectorName, q.Operation),
			Context:     map[string]any{"params": q.Params},
		},
		useCache: true,
		retry:    true,
		timeout:  c.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	var resp ConnectorResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decode connector response: %w", err)
	}
	return &resp, nil
}
