package interceptors

import (
	"context"
	"time"
)

// GenerateContentRequest mirrors the Gemini generate-content call shape:
// a model plus a heterogeneous part list. String parts and text content
// blocks contribute to prompt extraction; anything else is skipped.
type GenerateContentRequest struct {
	Model  string
	Parts  []any
	Params map[string]any
}

// GeminiModelClient is the entry point intercepted on a Gemini-style model.
type GeminiModelClient interface {
	GenerateContent(ctx context.Context, req GenerateContentRequest) (any, error)
}

// GeminiInterceptor adapts Gemini-style calls for governance.
type GeminiInterceptor struct {
	binding
}

// NewGeminiInterceptor binds a Gemini adapter to a governance client and
// user token.
func NewGeminiInterceptor(governor Governor, userToken string, opts ...Option) *GeminiInterceptor {
	return &GeminiInterceptor{binding: newBinding(governor, userToken, opts...)}
}

func (i *GeminiInterceptor) ProviderName() string { return "gemini" }

// ExtractPrompt collects the textual parts of the call, in order.
func (i *GeminiInterceptor) ExtractPrompt(call ProviderCall) string {
	if call.Prompt != "" {
		return call.Prompt
	}
	var texts []string
	for _, part := range call.Parts {
		switch v := part.(type) {
		case string:
			if v != "" {
				texts = append(texts, v)
			}
		case ContentBlock:
			if v.Type == "text" && v.Text != "" {
				texts = append(texts, v.Text)
			}
		}
	}
	return joinLines(texts)
}

// Wrap returns a model whose GenerateContent runs through governance.
func (i *GeminiInterceptor) Wrap(model GeminiModelClient) GeminiModelClient {
	return &governedGeminiModel{GeminiModelClient: model, interceptor: i}
}

// WrapGeminiModel is the one-call form of NewGeminiInterceptor plus Wrap.
func WrapGeminiModel(model GeminiModelClient, governor Governor, userToken string, opts ...Option) GeminiModelClient {
	return NewGeminiInterceptor(governor, userToken, opts...).Wrap(model)
}

type governedGeminiModel struct {
	GeminiModelClient
	interceptor *GeminiInterceptor
}

func (g *governedGeminiModel) GenerateContent(ctx context.Context, req GenerateContentRequest) (any, error) {
	prompt := g.interceptor.ExtractPrompt(ProviderCall{Parts: req.Parts})
	approval, err := g.interceptor.authorize(ctx, g.interceptor.ProviderName(), req.Model, prompt)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := g.GeminiModelClient.GenerateContent(ctx, req)
	if err != nil {
		return nil, err
	}
	g.interceptor.audit(approval, g.interceptor.ProviderName(), req.Model, time.Since(started))
	return resp, nil
}
