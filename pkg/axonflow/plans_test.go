package axonflow

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planResponseBody = `{
	"success": true,
	"plan_id": "plan-123",
	"data": {
		"steps": [
			{"id":"step-1","name":"Fetch data","type":"data","description":"Fetch customer data","depends_on":[],"agent":"data-agent"},
			{"id":"step-2","name":"Process data","type":"process","depends_on":["step-1"],"agent":"process-agent"}
		],
		"domain": "travel",
		"complexity": 2,
		"parallel": false
	},
	"metadata": {}
}`

func TestGeneratePlan(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(planResponseBody))
	}))

	plan, err := client.GeneratePlan(context.Background(), "Book a flight and hotel", "travel")
	require.NoError(t, err)

	assert.Equal(t, "plan-123", plan.PlanID)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "Fetch data", plan.Steps[0].Name)
	assert.Equal(t, []string{"step-1"}, plan.Steps[1].DependsOn)
	assert.Equal(t, "travel", plan.Domain)

	assert.Equal(t, "multi-agent-plan", gotBody["request_type"])
	ctxField, ok := gotBody["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "travel", ctxField["domain"])
}

func TestGeneratePlanFailure(t *testing.T) {
	client := newTestClient(t, jsonHandler(200, `{"success":false,"error":"planner unavailable"}`))
	_, err := client.GeneratePlan(context.Background(), "query", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planner unavailable")
}

func TestExecutePlanCompleted(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{
			"success": true,
			"result": "Trip booked successfully",
			"metadata": {
				"duration": "5.2s",
				"step_results": {"step-1": "done", "step-2": "done"}
			}
		}`))
	}))

	result, err := client.ExecutePlan(context.Background(), "plan-123")
	require.NoError(t, err)

	assert.Equal(t, PlanStatusCompleted, result.Status)
	assert.Equal(t, "Trip booked successfully", result.Result)
	assert.Equal(t, "5.2s", result.Duration)
	assert.Equal(t, map[string]any{"step-1": "done", "step-2": "done"}, result.StepResults)

	ctxField, ok := gotBody["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "plan-123", ctxField["plan_id"])
}

func TestExecutePlanFailed(t *testing.T) {
	client := newTestClient(t, jsonHandler(200, `{"success":false,"error":"step step-2 timed out"}`))

	result, err := client.ExecutePlan(context.Background(), "plan-123")
	require.NoError(t, err)
	assert.Equal(t, PlanStatusFailed, result.Status)
	assert.Equal(t, "step step-2 timed out", result.Error)
}

func TestExecutePlanNotCachedOrRetried(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"result":"done"}`))
	}))

	_, err := client.ExecutePlan(context.Background(), "plan-123")
	var se *ServerError
	require.ErrorAs(t, err, &se, "execution must not be retried")
	assert.Equal(t, 1, calls)

	result, err := client.ExecutePlan(context.Background(), "plan-123")
	require.NoError(t, err)
	assert.Equal(t, PlanStatusCompleted, result.Status)
	assert.Equal(t, 2, calls, "execution results must not be cached")
}

func TestGetPlanStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/plans/plan-123/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"plan_id":"plan-123","status":"running","step_results":{"step-1":"done"}}`))
	}))

	status, err := client.GetPlanStatus(context.Background(), "plan-123")
	require.NoError(t, err)
	assert.Equal(t, "plan-123", status.PlanID)
	assert.Equal(t, PlanStatusRunning, status.Status)
	assert.Equal(t, map[string]any{"step-1": "done"}, status.StepResults)
}

func TestGetPlanStatusNotFound(t *testing.T) {
	client := newTestClient(t, jsonHandler(404, `{"error":"unknown plan"}`))

	_, err := client.GetPlanStatus(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}
