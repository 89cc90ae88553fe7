package interceptors

import (
	"context"
	"time"
)

// MessageRequest mirrors the Anthropic messages call shape. Content arrives
// either as plain strings or as content blocks; only text blocks contribute
// to prompt extraction.
type MessageRequest struct {
	Model     string
	System    string
	MaxTokens int
	Messages  []Message
	Params    map[string]any
}

// AnthropicMessageClient is the entry point intercepted on an
// Anthropic-style client.
type AnthropicMessageClient interface {
	CreateMessage(ctx context.Context, req MessageRequest) (any, error)
}

// AnthropicInterceptor adapts Anthropic-style calls for governance.
type AnthropicInterceptor struct {
	binding
}

// NewAnthropicInterceptor binds an Anthropic adapter to a governance client
// and user token.
func NewAnthropicInterceptor(governor Governor, userToken string, opts ...Option) *AnthropicInterceptor {
	return &AnthropicInterceptor{binding: newBinding(governor, userToken, opts...)}
}

func (i *AnthropicInterceptor) ProviderName() string { return "anthropic" }

// ExtractPrompt joins the system prompt with the text of every message.
// Non-text content blocks (images, documents) are skipped.
func (i *AnthropicInterceptor) ExtractPrompt(call ProviderCall) string {
	body := messagesText(call.Messages)
	if call.System == "" {
		return body
	}
	if body == "" {
		return call.System
	}
	return call.System + "\n" + body
}

// Wrap returns a client whose CreateMessage runs through governance.
func (i *AnthropicInterceptor) Wrap(client AnthropicMessageClient) AnthropicMessageClient {
	return &governedAnthropicClient{AnthropicMessageClient: client, interceptor: i}
}

// WrapAnthropicClient is the one-call form of NewAnthropicInterceptor plus
// Wrap.
func WrapAnthropicClient(client AnthropicMessageClient, governor Governor, userToken string, opts ...Option) AnthropicMessageClient {
	return NewAnthropicInterceptor(governor, userToken, opts...).Wrap(client)
}

type governedAnthropicClient struct {
	AnthropicMessageClient
	interceptor *AnthropicInterceptor
}

func (g *governedAnthropicClient) CreateMessage(ctx context.Context, req MessageRequest) (any, error) {
	prompt := g.interceptor.ExtractPrompt(ProviderCall{System: req.System, Messages: req.Messages})
	approval, err := g.interceptor.authorize(ctx, g.interceptor.ProviderName(), req.Model, prompt)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := g.AnthropicMessageClient.CreateMessage(ctx, req)
	if err != nil {
		return nil, err
	}
	g.interceptor.audit(approval, g.interceptor.ProviderName(), req.Model, time.Since(started))
	return resp, nil
}
