// Package interceptors wraps LLM provider clients so that every call runs
// through governance before the provider is invoked. Each provider has its
// own adapter because call shapes differ: OpenAI-style message lists,
// Anthropic content blocks, Gemini part lists, Ollama chat/generate, and
// Bedrock byte-encoded request bodies.
//
// A wrapped client behaves exactly like the real one on approval: arguments
// are forwarded unchanged and the provider's response is returned unmodified.
// A policy block surfaces as *axonflow.PolicyViolationError and the real
// client is never invoked.
package interceptors

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/getaxonflow/axonflow-go/pkg/axonflow"
)

// Governor is the slice of the governance client the adapters need. It is
// satisfied by *axonflow.Client.
type Governor interface {
	ExecuteQuery(ctx context.Context, req axonflow.QueryRequest) (*axonflow.ClientResponse, error)
	AuditLLMCall(ctx context.Context, req axonflow.AuditRequest) (*axonflow.AuditResult, error)
}

// Interceptor is a provider adapter: a stable name for audit records and a
// best-effort prompt reconstruction from that provider's call shape.
type Interceptor interface {
	ProviderName() string
	ExtractPrompt(call ProviderCall) string
}

// ProviderCall is the normalized view of one provider invocation. Each
// adapter fills only the fields its provider uses.
type ProviderCall struct {
	System   string
	Messages []Message
	Prompt   string
	Parts    []any
	Body     []byte
}

// Message is a chat message in the least common denominator of the provider
// wire formats: plain string content, or typed content blocks of which only
// text blocks contribute to prompt extraction.
type Message struct {
	Role    string
	Content string
	Blocks  []ContentBlock
}

// ContentBlock is one segment of block-structured message content.
type ContentBlock struct {
	Type string
	Text string
}

func (m Message) text() string {
	if m.Content != "" {
		return m.Content
	}
	var parts []string
	for _, b := range m.Blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func messagesText(messages []Message) string {
	var parts []string
	for _, m := range messages {
		if t := m.text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Option customizes an adapter binding.
type Option func(*binding)

// WithLogger sets the logger used for best-effort audit failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *binding) { b.logger = logger }
}

// WithAuditTimeout bounds the asynchronous audit submission.
func WithAuditTimeout(d time.Duration) Option {
	return func(b *binding) { b.auditTimeout = d }
}

// binding ties one wrapped provider client to a user token and a governance
// client. It proxies calls only; it never owns the underlying client.
type binding struct {
	governor     Governor
	userToken    string
	logger       *slog.Logger
	auditTimeout time.Duration
}

func newBinding(governor Governor, userToken string, opts ...Option) binding {
	b := binding{
		governor:     governor,
		userToken:    userToken,
		logger:       slog.Default(),
		auditTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// authorize runs the governance check for one provider call. A block comes
// back as *axonflow.PolicyViolationError, which is always propagated so a
// blocked call can never slip through.
func (b *binding) authorize(ctx context.Context, provider, model, prompt string) (*axonflow.ClientResponse, error) {
	callCtx := map[string]any{"provider": provider}
	if model != "" {
		callCtx["model"] = model
	}
	return b.governor.ExecuteQuery(ctx, axonflow.QueryRequest{
		UserToken:   b.userToken,
		Query:       prompt,
		RequestType: "llm:" + provider,
		Context:     callCtx,
	})
}

// audit forwards post-call telemetry when the governance response carried a
// correlating context ID. Submission is asynchronous and best-effort: it
// never delays or fails the provider result already handed to the caller.
func (b *binding) audit(approval *axonflow.ClientResponse, provider, model string, latency time.Duration) {
	if approval == nil {
		return
	}
	contextID, _ := approval.Metadata["context_id"].(string)
	if contextID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.auditTimeout)
		defer cancel()
		_, err := b.governor.AuditLLMCall(ctx, axonflow.AuditRequest{
			ContextID: contextID,
			Provider:  provider,
			Model:     model,
			LatencyMS: int(latency.Milliseconds()),
		})
		if err != nil {
			b.logger.Warn("llm call audit failed",
				"provider", provider, "context_id", contextID, "error", err)
		}
	}()
}

// decodeBody parses a byte-encoded provider request body into the normalized
// call shape. Unknown or malformed bodies yield an empty call.
func decodeBody(body []byte) ProviderCall {
	var wire struct {
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
		InputText string `json:"inputText"`
		Prompt    string `json:"prompt"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return ProviderCall{}
	}

	call := ProviderCall{Prompt: firstNonEmpty(wire.InputText, wire.Prompt)}
	for _, m := range wire.Messages {
		msg := Message{Role: m.Role}
		var content string
		if err := json.Unmarshal(m.Content, &content); err == nil {
			msg.Content = content
		} else {
			var blocks []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}
			if err := json.Unmarshal(m.Content, &blocks); err == nil {
				for _, blk := range blocks {
					msg.Blocks = append(msg.Blocks, ContentBlock{Type: blk.Type, Text: blk.Text})
				}
			}
		}
		call.Messages = append(call.Messages, msg)
	}
	return call
}

func joinLines(parts []string) string {
	return strings.Join(parts, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
