package interceptors

import (
	"context"
	"time"
)

// OllamaChatRequest mirrors the Ollama chat call shape.
type OllamaChatRequest struct {
	Model    string
	Messages []Message
	Params   map[string]any
}

// OllamaGenerateRequest mirrors the Ollama generate call shape.
type OllamaGenerateRequest struct {
	Model  string
	Prompt string
	Params map[string]any
}

// OllamaClient is the surface intercepted on an Ollama-style client. Both
// entry points are governed.
type OllamaClient interface {
	Chat(ctx context.Context, req OllamaChatRequest) (any, error)
	Generate(ctx context.Context, req OllamaGenerateRequest) (any, error)
}

// OllamaInterceptor adapts Ollama-style calls for governance.
type OllamaInterceptor struct {
	binding
}

// NewOllamaInterceptor binds an Ollama adapter to a governance client and
// user token.
func NewOllamaInterceptor(governor Governor, userToken string, opts ...Option) *OllamaInterceptor {
	return &OllamaInterceptor{binding: newBinding(governor, userToken, opts...)}
}

func (i *OllamaInterceptor) ProviderName() string { return "ollama" }

// ExtractPrompt prefers the raw prompt of a generate call, falling back to
// the joined chat transcript.
func (i *OllamaInterceptor) ExtractPrompt(call ProviderCall) string {
	if call.Prompt != "" {
		return call.Prompt
	}
	return messagesText(call.Messages)
}

// Wrap returns a client whose Chat and Generate run through governance.
func (i *OllamaInterceptor) Wrap(client OllamaClient) OllamaClient {
	return &governedOllamaClient{OllamaClient: client, interceptor: i}
}

// WrapOllamaClient is the one-call form of NewOllamaInterceptor plus Wrap.
func WrapOllamaClient(client OllamaClient, governor Governor, userToken string, opts ...Option) OllamaClient {
	return NewOllamaInterceptor(governor, userToken, opts...).Wrap(client)
}

type governedOllamaClient struct {
	OllamaClient
	interceptor *OllamaInterceptor
}

func (g *governedOllamaClient) Chat(ctx context.Context, req OllamaChatRequest) (any, error) {
	prompt := g.interceptor.ExtractPrompt(ProviderCall{Messages: req.Messages})
	approval, err := g.interceptor.authorize(ctx, g.interceptor.ProviderName(), req.Model, prompt)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := g.OllamaClient.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	g.interceptor.audit(approval, g.interceptor.ProviderName(), req.Model, time.Since(started))
	return resp, nil
}

func (g *governedOllamaClient) Generate(ctx context.Context, req OllamaGenerateRequest) (any, error) {
	prompt := g.interceptor.ExtractPrompt(ProviderCall{Prompt: req.Prompt})
	approval, err := g.interceptor.authorize(ctx, g.interceptor.ProviderName(), req.Model, prompt)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := g.OllamaClient.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	g.interceptor.audit(approval, g.interceptor.ProviderName(), req.Model, time.Since(started))
	return resp, nil
}
