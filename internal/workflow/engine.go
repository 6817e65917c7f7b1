// Package workflow выполняет действия сценариев и считает расписания.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/models"
)

// MaxDelay верхняя граница действия delay.
const MaxDelay = 30 * time.Second

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Result итог выполнения списка действий.
type Result struct {
	Status    string                 `json:"status"`
	Steps     []models.ExecutionStep `json:"steps"`
	Variables map[string]any         `json:"variables"`
	Error     string                 `json:"error,omitempty"`
}

// Engine выполняет действия по порядку, передавая между ними переменные.
type Engine struct {
	http  *resty.Client
	sleep func(ctx context.Context, d time.Duration) error
	log   *logrus.Entry
}

// NewEngine создаёт движок; timeout ограничивает один webhook запрос.
func NewEngine(webhookTimeout time.Duration) *Engine {
	client := resty.New().
		SetTimeout(webhookTimeout).
		SetHeader("User-Agent", "Kazi-Workflows/1.0").
		SetHeader("Content-Type", "application/json")
	return &Engine{http: client, sleep: sleepContext, log: logger.WithComponent("workflow")}
}

// Run выполняет действия. Ошибка действия останавливает сценарий, если у
// действия не выставлен continue_on_error. Невыполненное условие пропускает
// остальные действия, запуск при этом считается успешным.
func (e *Engine) Run(ctx context.Context, actions []models.WorkflowAction, input map[string]any) Result {
	vars := make(map[string]any, len(input)+4)
	for k, v := range input {
		vars[k] = v
	}
	res := Result{Status: models.ExecutionStatusCompleted, Steps: make([]models.ExecutionStep, 0, len(actions)), Variables: vars}

	stopped := false
	for _, action := range actions {
		step := models.ExecutionStep{Position: action.Position, Type: action.Type}
		if stopped {
			step.Status = models.StepStatusSkipped
			res.Steps = append(res.Steps, step)
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Status = statusForContext(err)
			res.Error = err.Error()
			stopped = true
			step.Status = models.StepStatusSkipped
			res.Steps = append(res.Steps, step)
			continue
		}

		started := time.Now()
		output, cont, err := e.runAction(ctx, action, vars)
		step.DurationMS = time.Since(started).Milliseconds()
		if output != nil {
			step.Output, _ = json.Marshal(output)
		}

		switch {
		case err != nil:
			step.Status = models.StepStatusFailed
			step.Error = err.Error()
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.Status = statusForContext(ctxErr)
				res.Error = ctxErr.Error()
				stopped = true
			} else if !action.ContinueOnError {
				res.Status = models.ExecutionStatusFailed
				res.Error = fmt.Sprintf("действие %d (%s): %v", action.Position, action.Type, err)
				stopped = true
			}
		default:
			step.Status = models.StepStatusCompleted
			if !cont {
				stopped = true
			}
		}
		res.Steps = append(res.Steps, step)
	}
	return res
}

// runAction возвращает вывод шага и признак продолжения сценария.
func (e *Engine) runAction(ctx context.Context, action models.WorkflowAction, vars map[string]any) (any, bool, error) {
	switch action.Type {
	case models.ActionLog:
		var cfg struct {
			Message string `json:"message"`
			Level   string `json:"level"`
		}
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return nil, false, err
		}
		msg := Render(cfg.Message, vars)
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		e.log.WithField("position", action.Position).Log(level, msg)
		return map[string]any{"message": msg}, true, nil

	case models.ActionDelay:
		var cfg struct {
			Seconds float64 `json:"seconds"`
		}
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return nil, false, err
		}
		d, err := delayDuration(cfg.Seconds)
		if err != nil {
			return nil, false, err
		}
		if err := e.sleep(ctx, d); err != nil {
			return nil, false, err
		}
		return map[string]any{"waited_ms": d.Milliseconds()}, true, nil

	case models.ActionWebhook:
		return e.webhook(ctx, action, vars)

	case models.ActionSetVariable:
		var cfg struct {
			Name  string `json:"name"`
			Value any    `json:"value"`
		}
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return nil, false, err
		}
		if cfg.Name == "" {
			return nil, false, errors.New("не задано имя переменной")
		}
		if s, ok := cfg.Value.(string); ok {
			cfg.Value = Render(s, vars)
		}
		vars[cfg.Name] = cfg.Value
		return map[string]any{cfg.Name: cfg.Value}, true, nil

	case models.ActionCondition:
		var cfg struct {
			Variable string `json:"variable"`
			Equals   any    `json:"equals"`
		}
		if err := decodeConfig(action.Config, &cfg); err != nil {
			return nil, false, err
		}
		actual := vars[cfg.Variable]
		matched := valuesEqual(actual, cfg.Equals)
		return map[string]any{"variable": cfg.Variable, "matched": matched}, matched, nil

	default:
		return nil, false, fmt.Errorf("неизвестный тип действия %q", action.Type)
	}
}

func (e *Engine) webhook(ctx context.Context, action models.WorkflowAction, vars map[string]any) (any, bool, error) {
	var cfg struct {
		URL       string            `json:"url"`
		Method    string            `json:"method"`
		Headers   map[string]string `json:"headers"`
		Body      any               `json:"body"`
		ResultVar string            `json:"result_variable"`
	}
	if err := decodeConfig(action.Config, &cfg); err != nil {
		return nil, false, err
	}
	target := Render(cfg.URL, vars)
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return nil, false, errors.New("webhook: адрес должен начинаться с http:// или https://")
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = "POST"
	}
	body := cfg.Body
	if body == nil {
		body = vars
	}

	req := e.http.R().SetContext(ctx).SetHeaders(cfg.Headers)
	if method != "GET" && method != "DELETE" {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, target)
	if err != nil {
		return nil, false, fmt.Errorf("webhook: %w", err)
	}

	var parsed any
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		parsed = string(resp.Body())
	}
	output := map[string]any{"status": resp.StatusCode(), "body": parsed}
	if resp.IsError() {
		return output, false, fmt.Errorf("webhook: ответ %d", resp.StatusCode())
	}
	if cfg.ResultVar != "" {
		vars[cfg.ResultVar] = parsed
	}
	return output, true, nil
}

// ValidateAction проверяет тип и конфигурацию действия до сохранения.
func ValidateAction(actionType string, config json.RawMessage) error {
	var cfg map[string]any
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return errors.New("конфигурация действия должна быть JSON объектом")
		}
	}
	str := func(key string) string {
		s, _ := cfg[key].(string)
		return s
	}

	switch actionType {
	case models.ActionLog:
		if str("message") == "" {
			return errors.New("log: нужен message")
		}
	case models.ActionDelay:
		seconds, _ := cfg["seconds"].(float64)
		if _, err := delayDuration(seconds); err != nil {
			return err
		}
	case models.ActionWebhook:
		if str("url") == "" {
			return errors.New("webhook: нужен url")
		}
	case models.ActionSetVariable:
		if str("name") == "" {
			return errors.New("set_variable: нужен name")
		}
	case models.ActionCondition:
		if str("variable") == "" {
			return errors.New("condition: нужен variable")
		}
	default:
		return fmt.Errorf("неизвестный тип действия %q", actionType)
	}
	return nil
}

// Render подставляет {{name}} из переменных.
func Render(tmpl string, vars map[string]any) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			return ""
		}
		return fmt.Sprint(v)
	})
}

func delayDuration(seconds float64) (time.Duration, error) {
	d := time.Duration(seconds * float64(time.Second))
	if d < 0 || d > MaxDelay {
		return 0, fmt.Errorf("delay: от 0 до %d секунд", int(MaxDelay.Seconds()))
	}
	return d, nil
}

func decodeConfig(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("неверная конфигурация действия: %w", err)
	}
	return nil
}

// valuesEqual сравнивает значения после JSON нормализации, чтобы 1 и 1.0
// считались равными.
func valuesEqual(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(data, &out)
	return out, err
}

func statusForContext(err error) string {
	if errors.Is(err, context.Canceled) {
		return models.ExecutionStatusCancelled
	}
	return models.ExecutionStatusFailed
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
