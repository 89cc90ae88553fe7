package axonflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/getaxonflow/axonflow-go/pkg/telemetry"
)

func testClientConfig(serverURL string) Config {
	cfg := DefaultConfig(serverURL)
	cfg.ClientID = "test-client"
	cfg.ClientSecret = "test-secret"
	cfg.OrchestratorURL = serverURL
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(testClientConfig(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func jsonHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		client := newTestClient(t, jsonHandler(200, `{"status":"healthy"}`))
		assert.True(t, client.HealthCheck(context.Background()))
	})

	t.Run("degraded", func(t *testing.T) {
		client := newTestClient(t, jsonHandler(200, `{"status":"degraded"}`))
		assert.False(t, client.HealthCheck(context.Background()))
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, jsonHandler(500, `{}`))
		assert.False(t, client.HealthCheck(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()
		client, err := New(testClientConfig(server.URL))
		require.NoError(t, err)
		defer func() { _ = client.Close() }()
		assert.False(t, client.HealthCheck(context.Background()))
	})
}

func TestExecuteQuerySuccess(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	var gotHeader http.Header

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"success":true,"data":{"answer":"42"},"blocked":false}`))
	}))

	resp, err := client.ExecuteQuery(context.Background(), QueryRequest{
		UserToken:   "user-token",
		Query:       "meaning of life",
		RequestType: "chat",
		Context:     map[string]any{"department": "research"},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.False(t, resp.Blocked)
	assert.Equal(t, map[string]any{"answer": "42"}, resp.Data)

	assert.Equal(t, "/api/request", gotPath)
	assert.Equal(t, "test-client", gotHeader.Get("X-Client-ID"))
	assert.Equal(t, "test-secret", gotHeader.Get("X-Client-Secret"))
	assert.Equal(t, "meaning of life", gotBody["query"])
	assert.Equal(t, "user-token", gotBody["user_token"])
	assert.Equal(t, "chat", gotBody["request_type"])
	assert.Equal(t, "test-client", gotBody["client_id"])
}

func TestExecuteQueryBlocked(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"success":false,"blocked":true,"block_reason":"Rate limit exceeded"}`))
	}))

	_, err := client.ExecuteQuery(context.Background(), QueryRequest{
		UserToken: "user", Query: "q", RequestType: "chat",
	})

	var pv *PolicyViolationError
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, "Rate limit exceeded", pv.BlockReason)
	assert.Equal(t, int64(1), requests.Load(), "a block is fatal, never retried")

	// A denial must never be served from cache either.
	_, err = client.ExecuteQuery(context.Background(), QueryRequest{
		UserToken: "user", Query: "q", RequestType: "chat",
	})
	assert.True(t, IsPolicyViolation(err))
	assert.Equal(t, int64(2), requests.Load())
}

func TestExecuteQueryAuthenticationError(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid client secret"}`))
	}))

	_, err := client.ExecuteQuery(context.Background(), QueryRequest{
		UserToken: "user", Query: "q", RequestType: "chat",
	})

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, int64(1), requests.Load(), "401 must not be retried")
}

func TestExecuteQueryPolicyViolation403(t *testing.T) {
	client := newTestClient(t, jsonHandler(403, `{"policy":"access-control","block_reason":"forbidden table"}`))

	_, err := client.ExecuteQuery(context.Background(), QueryRequest{
		UserToken: "user", Query: "q", RequestType: "sql",
	})

	var pv *PolicyViolationError
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, "access-control", pv.Policy)
}

func TestExecuteQueryRetriesServerErrors(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"blocked":false}`))
	}))

	resp, err := client.ExecuteQuery(context.Background(), QueryRequest{
		UserToken: "user", Query: "q", RequestType: "chat",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(3), requests.Load())
}

func TestExecuteQueryExhaustsRetries(t *testing.T) {
	var requests atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"database down"}`))
	}))

	_, err := client.ExecuteQuery(context.Background(), QueryRequest{
		UserToken: "user", Query: "q", RequestType: "chat",
	})

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)

	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, int64(3), requests.Load())
}

func TestExecuteQueryCaching(t *testing.T) {
	var requests atomic.Int64
	success := func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"success":true,"blocked":false}`))
	}

	t.Run("identical requests deduplicated", func(t *testing.T) {
		requests.Store(0)
		client := newTestClient(t, http.HandlerFunc(success))

		req := QueryRequest{UserToken: "user", Query: "q", RequestType: "chat"}
		_, err := client.ExecuteQuery(context.Background(), req)
		require.NoError(t, err)
		_, err = client.ExecuteQuery(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, int64(1), requests.Load())
	})

	t.Run("different token misses", func(t *testing.T) {
		requests.Store(0)
		client := newTestClient(t, http.HandlerFunc(success))

		_, err := client.ExecuteQuery(context.Background(), QueryRequest{UserToken: "alice", Query: "q", RequestType: "chat"})
		require.NoError(t, err)
		_, err = client.ExecuteQuery(context.Background(), QueryRequest{UserToken: "bob", Query: "q", RequestType: "chat"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), requests.Load())
	})

	t.Run("different context misses", func(t *testing.T) {
		requests.Store(0)
		client := newTestClient(t, http.HandlerFunc(success))

		_, err := client.ExecuteQuery(context.Background(), QueryRequest{UserToken: "u", Query: "q", RequestType: "chat"})
		require.NoError(t, err)
		_, err = client.ExecuteQuery(context.Background(), QueryRequest{
			UserToken: "u", Query: "q", RequestType: "chat",
			Context: map[string]any{"department": "legal"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), requests.Load())
	})

	t.Run("cache disabled", func(t *testing.T) {
		requests.Store(0)
		server := httptest.NewServer(http.HandlerFunc(success))
		t.Cleanup(server.Close)

		cfg := testClientConfig(server.URL)
		cfg.Cache.Enabled = false
		client, err := New(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		req := QueryRequest{UserToken: "user", Query: "q", RequestType: "chat"}
		_, err = client.ExecuteQuery(context.Background(), req)
		require.NoError(t, err)
		_, err = client.ExecuteQuery(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, int64(2), requests.Load())
	})
}

func TestSelfHostedModeSendsNoAuthHeaders(t *testing.T) {
	var gotHeader http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		_, _ = w.Write([]byte(`{"success":true,"blocked":false}`))
	}))
	t.Cleanup(server.Close)

	client, err := New(DefaultConfig(server.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.ExecuteQuery(context.Background(), QueryRequest{
		UserToken: "user", Query: "q", RequestType: "chat",
	})
	require.NoError(t, err)

	_, hasClientID := gotHeader["X-Client-Id"]
	_, hasSecret := gotHeader["X-Client-Secret"]
	assert.False(t, hasClientID)
	assert.False(t, hasSecret)
}

func TestTrailingSlashAgentURL(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"success":true,"blocked":false}`))
	}))
	t.Cleanup(server.Close)

	cfg := testClientConfig(server.URL + "/")
	cfg.OrchestratorURL = server.URL
	client, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.ExecuteQuery(context.Background(), QueryRequest{
		UserToken: "user", Query: "q", RequestType: "chat",
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/request", gotPath)
}

func TestClosedClientRejectsCalls(t *testing.T) {
	client := newTestClient(t, jsonHandler(200, `{"status":"healthy"}`))
	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "double close is a no-op")

	_, err := client.ExecuteQuery(context.Background(), QueryRequest{
		UserToken: "user", Query: "q", RequestType: "chat",
	})
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.False(t, client.HealthCheck(context.Background()))
}

func TestExecuteQueryHonorsCancellation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"success":true,"blocked":false}`))
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.ExecuteQuery(ctx, QueryRequest{
		UserToken: "user", Query: "q", RequestType: "chat",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWithTracingOwnsProviderLifecycle(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// The exporter dials lazily; no collector listens during the test.
	client, err := New(testClientConfig("https://agent.example.com"), WithTracing(telemetry.TraceConfig{
		Endpoint: "127.0.0.1:4317",
		Insecure: true,
	}))
	require.NoError(t, err)

	assert.NotEqual(t, prev, otel.GetTracerProvider(),
		"tracing option must install the exporting provider")
	require.NoError(t, client.Close(), "close must flush and shut the provider down")
}

func TestConfigIsFrozenAtConstruction(t *testing.T) {
	cfg := testClientConfig("https://agent.example.com")
	client, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cfg.AgentURL = "https://hijacked.example.com"
	assert.Equal(t, "https://agent.example.com", client.Config().AgentURL)
}
