package interceptors

import (
	"context"
	"time"
)

// InvokeModelRequest mirrors the Bedrock runtime invoke-model call shape:
// the prompt lives inside an opaque JSON body whose schema depends on the
// underlying foundation model.
type InvokeModelRequest struct {
	ModelID     string
	Body        []byte
	ContentType string
	Params      map[string]any
}

// BedrockRuntimeClient is the surface intercepted on a Bedrock-style client.
// Streaming invocations are governed by the same pre-call check.
type BedrockRuntimeClient interface {
	InvokeModel(ctx context.Context, req InvokeModelRequest) (any, error)
	InvokeModelWithResponseStream(ctx context.Context, req InvokeModelRequest) (any, error)
}

// BedrockInterceptor adapts Bedrock-style calls for governance.
type BedrockInterceptor struct {
	binding
}

// NewBedrockInterceptor binds a Bedrock adapter to a governance client and
// user token.
func NewBedrockInterceptor(governor Governor, userToken string, opts ...Option) *BedrockInterceptor {
	return &BedrockInterceptor{binding: newBinding(governor, userToken, opts...)}
}

func (i *BedrockInterceptor) ProviderName() string { return "bedrock" }

// ExtractPrompt decodes the JSON request body and pulls text from whichever
// field the model family uses: Anthropic-style messages, Titan inputText,
// or a bare prompt. Malformed bodies yield an empty prompt, never an error.
func (i *BedrockInterceptor) ExtractPrompt(call ProviderCall) string {
	if len(call.Body) == 0 {
		return ""
	}
	decoded := decodeBody(call.Body)
	if text := messagesText(decoded.Messages); text != "" {
		return text
	}
	return decoded.Prompt
}

// Wrap returns a client whose model invocations run through governance.
func (i *BedrockInterceptor) Wrap(client BedrockRuntimeClient) BedrockRuntimeClient {
	return &governedBedrockClient{BedrockRuntimeClient: client, interceptor: i}
}

// WrapBedrockClient is the one-call form of NewBedrockInterceptor plus Wrap.
func WrapBedrockClient(client BedrockRuntimeClient, governor Governor, userToken string, opts ...Option) BedrockRuntimeClient {
	return NewBedrockInterceptor(governor, userToken, opts...).Wrap(client)
}

type governedBedrockClient struct {
	BedrockRuntimeClient
	interceptor *BedrockInterceptor
}

func (g *governedBedrockClient) InvokeModel(ctx context.Context, req InvokeModelRequest) (any, error) {
	return g.invoke(ctx, req, g.BedrockRuntimeClient.InvokeModel)
}

func (g *governedBedrockClient) InvokeModelWithResponseStream(ctx context.Context, req InvokeModelRequest) (any, error) {
	return g.invoke(ctx, req, g.BedrockRuntimeClient.InvokeModelWithResponseStream)
}

func (g *governedBedrockClient) invoke(
	ctx context.Context,
	req InvokeModelRequest,
	next func(context.Context, InvokeModelRequest) (any, error),
) (any, error) {
	prompt := g.interceptor.ExtractPrompt(ProviderCall{Body: req.Body})
	approval, err := g.interceptor.authorize(ctx, g.interceptor.ProviderName(), req.ModelID, prompt)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := next(ctx, req)
	if err != nil {
		return nil, err
	}
	g.interceptor.audit(approval, g.interceptor.ProviderName(), req.ModelID, time.Since(started))
	return resp, nil
}
