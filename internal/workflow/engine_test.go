package workflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/models"
)

func action(pos int, typ, config string) models.WorkflowAction {
	return models.WorkflowAction{Position: pos, Type: typ, Config: json.RawMessage(config)}
}

func newTestEngine() *Engine {
	e := NewEngine(2 * time.Second)
	e.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return e
}

func TestEngine_SetVariableAndCondition(t *testing.T) {
	e := newTestEngine()
	res := e.Run(context.Background(), []models.WorkflowAction{
		action(0, "set_variable", `{"name":"plan","value":"pro"}`),
		action(1, "condition", `{"variable":"plan","equals":"free"}`),
		action(2, "log", `{"message":"не должно выполниться"}`),
	}, nil)

	assert.Equal(t, models.ExecutionStatusCompleted, res.Status)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, models.StepStatusCompleted, res.Steps[1].Status)
	assert.Equal(t, models.StepStatusSkipped, res.Steps[2].Status)
	assert.Equal(t, "pro", res.Variables["plan"])
}

func TestEngine_ConditionNumbers(t *testing.T) {
	e := newTestEngine()
	res := e.Run(context.Background(), []models.WorkflowAction{
		action(0, "condition", `{"variable":"count","equals":3}`),
		action(1, "set_variable", `{"name":"passed","value":true}`),
	}, map[string]any{"count": 3})

	assert.Equal(t, true, res.Variables["passed"])
}

func TestEngine_WebhookPostsVariables(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := newTestEngine()
	res := e.Run(context.Background(), []models.WorkflowAction{
		action(0, "set_variable", `{"name":"client","value":"{{name}} LLC"}`),
		action(1, "webhook", `{"url":"`+srv.URL+`/hook","result_variable":"reply"}`),
	}, map[string]any{"name": "Acme"})

	require.Equal(t, models.ExecutionStatusCompleted, res.Status, res.Error)
	assert.Equal(t, "Acme LLC", received["client"])
	assert.Equal(t, map[string]any{"ok": true}, res.Variables["reply"])
}

func TestEngine_WebhookErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEngine()
	res := e.Run(context.Background(), []models.WorkflowAction{
		action(0, "webhook", `{"url":"`+srv.URL+`"}`),
		action(1, "log", `{"message":"после ошибки"}`),
	}, nil)

	assert.Equal(t, models.ExecutionStatusFailed, res.Status)
	assert.Equal(t, models.StepStatusFailed, res.Steps[0].Status)
	assert.Equal(t, models.StepStatusSkipped, res.Steps[1].Status)
}

func TestEngine_ContinueOnError(t *testing.T) {
	e := newTestEngine()
	failing := action(0, "delay", `{"seconds":120}`)
	failing.ContinueOnError = true

	res := e.Run(context.Background(), []models.WorkflowAction{
		failing,
		action(1, "set_variable", `{"name":"done","value":1}`),
	}, nil)

	assert.Equal(t, models.ExecutionStatusCompleted, res.Status)
	assert.Equal(t, models.StepStatusFailed, res.Steps[0].Status)
	assert.Equal(t, float64(1), res.Variables["done"])
}

func TestEngine_Cancelled(t *testing.T) {
	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Run(ctx, []models.WorkflowAction{action(0, "log", `{"message":"x"}`)}, nil)
	assert.Equal(t, models.ExecutionStatusCancelled, res.Status)
}

func TestValidateAction(t *testing.T) {
	assert.NoError(t, ValidateAction("delay", json.RawMessage(`{"seconds":5}`)))
	assert.Error(t, ValidateAction("delay", json.RawMessage(`{"seconds":31}`)))
	assert.Error(t, ValidateAction("webhook", json.RawMessage(`{}`)))
	assert.Error(t, ValidateAction("email", nil))
	assert.Error(t, ValidateAction("log", json.RawMessage(`[1,2]`)))
}

func TestRender(t *testing.T) {
	out := Render("Привет, {{ name }}! {{missing}}", map[string]any{"name": "Анна"})
	assert.Equal(t, "Привет, Анна! ", out)
}

func TestNextRun(t *testing.T) {
	after := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	next, err := NextRun("0 9 * * *", "Europe/Moscow", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC), next)

	_, err = NextRun("61 * * * *", "UTC", after)
	assert.Error(t, err)

	_, err = NextRun("* * * * *", "Mars/Base", after)
	assert.Error(t, err)
}
