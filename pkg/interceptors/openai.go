package interceptors

import (
	"context"
	"time"
)

// ChatCompletionRequest mirrors the OpenAI chat completions call shape.
// Params carries provider options the proxy does not interpret.
type ChatCompletionRequest struct {
	Model    string
	Messages []Message
	Params   map[string]any
}

// OpenAIChatClient is the entry point intercepted on an OpenAI-style client.
// Adapters for a concrete SDK implement it by delegating to the real client
// and returning its response untouched.
type OpenAIChatClient interface {
	CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (any, error)
}

// OpenAIInterceptor adapts OpenAI-style calls for governance.
type OpenAIInterceptor struct {
	binding
}

// NewOpenAIInterceptor binds an OpenAI adapter to a governance client and
// user token.
func NewOpenAIInterceptor(governor Governor, userToken string, opts ...Option) *OpenAIInterceptor {
	return &OpenAIInterceptor{binding: newBinding(governor, userToken, opts...)}
}

func (i *OpenAIInterceptor) ProviderName() string { return "openai" }

// ExtractPrompt joins the text of every message, system and user alike, so
// policy evaluation sees the full conversation context.
func (i *OpenAIInterceptor) ExtractPrompt(call ProviderCall) string {
	return messagesText(call.Messages)
}

// Wrap returns a client whose CreateChatCompletion runs through governance.
func (i *OpenAIInterceptor) Wrap(client OpenAIChatClient) OpenAIChatClient {
	return &governedOpenAIClient{OpenAIChatClient: client, interceptor: i}
}

// WrapOpenAIClient is the one-call form of NewOpenAIInterceptor plus Wrap.
func WrapOpenAIClient(client OpenAIChatClient, governor Governor, userToken string, opts ...Option) OpenAIChatClient {
	return NewOpenAIInterceptor(governor, userToken, opts...).Wrap(client)
}

type governedOpenAIClient struct {
	OpenAIChatClient
	interceptor *OpenAIInterceptor
}

func (g *governedOpenAIClient) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (any, error) {
	prompt := g.interceptor.ExtractPrompt(ProviderCall{Messages: req.Messages})
	approval, err := g.interceptor.authorize(ctx, g.interceptor.ProviderName(), req.Model, prompt)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := g.OpenAIChatClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	g.interceptor.audit(approval, g.interceptor.ProviderName(), req.Model, time.Since(started))
	return resp, nil
}
