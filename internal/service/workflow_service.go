package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/goroutine"
	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/workflow"
)

const (
	tableWorkflows          = "workflows"
	tableWorkflowActions    = "workflow_actions"
	tableWorkflowExecutions = "workflow_executions"
	tableWorkflowSchedules  = "workflow_schedules"

	maxWorkflowActions = 50
	// maxRunDuration ограничивает один запуск.
	maxRunDuration     = 10 * time.Minute
	scheduleClaimBatch = 20
)

type WorkflowRepository interface {
	Create(ctx context.Context, w *models.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Workflow, int, error)
	Update(ctx context.Context, w *models.Workflow) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	ListActions(ctx context.Context, workflowID uuid.UUID) ([]models.WorkflowAction, error)
	SetActions(ctx context.Context, workflowID uuid.UUID, actions []models.WorkflowAction) error
	CreateExecution(ctx context.Context, e *models.WorkflowExecution) error
	GetExecution(ctx context.Context, id uuid.UUID) (*models.WorkflowExecution, error)
	ListExecutions(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]models.WorkflowExecution, int, error)
	FinishExecution(ctx context.Context, e *models.WorkflowExecution) error
	CancelExecution(ctx context.Context, id uuid.UUID) (*models.WorkflowExecution, error)
	CreateSchedule(ctx context.Context, s *models.WorkflowSchedule) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*models.WorkflowSchedule, error)
	ListSchedules(ctx context.Context, workflowID uuid.UUID) ([]models.WorkflowSchedule, error)
	UpdateSchedule(ctx context.Context, s *models.WorkflowSchedule) error
	DeleteSchedule(ctx context.Context, workflowID, id uuid.UUID) error
	ClaimDueSchedules(ctx context.Context, now time.Time, limit int, next func(models.WorkflowSchedule) (time.Time, error)) ([]models.WorkflowSchedule, error)
}

// ActionRunner выполняет список действий.
type ActionRunner interface {
	Run(ctx context.Context, actions []models.WorkflowAction, input map[string]any) workflow.Result
}

// ExecutionCounter считает запуски в метриках.
type ExecutionCounter interface {
	WorkflowExecution(status string)
}

type WorkflowService struct {
	repo    WorkflowRepository
	runner  ActionRunner
	counter ExecutionCounter
	events  events.Emitter
	now     func() time.Time

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

func NewWorkflowService(repo WorkflowRepository, runner ActionRunner, counter ExecutionCounter, emitter events.Emitter) *WorkflowService {
	return &WorkflowService{
		repo:    repo,
		runner:  runner,
		counter: counter,
		events:  emitterOrNoop(emitter),
		now:     time.Now,
		running: make(map[uuid.UUID]context.CancelFunc),
	}
}

func (s *WorkflowService) CreateWorkflow(ctx context.Context, userID uuid.UUID, req dto.WorkflowRequest) (*models.Workflow, error) {
	w := &models.Workflow{UserID: userID, IsActive: true}
	if err := applyWorkflowRequest(w, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableWorkflows, w))
	return w, nil
}

// GetWorkflow возвращает сценарий с действиями.
func (s *WorkflowService) GetWorkflow(ctx context.Context, userID, id uuid.UUID) (*models.Workflow, error) {
	w, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	actions, err := s.repo.ListActions(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Actions = actions
	return w, nil
}

func (s *WorkflowService) ListWorkflows(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Workflow, int, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.List(ctx, userID, limit, offset)
}

func (s *WorkflowService) UpdateWorkflow(ctx context.Context, userID, id uuid.UUID, req dto.WorkflowRequest) (*models.Workflow, error) {
	w, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	old := *w
	if err := applyWorkflowRequest(w, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableWorkflows, w, &old))
	return w, nil
}

func (s *WorkflowService) DeleteWorkflow(ctx context.Context, userID, id uuid.UUID) error {
	w, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted(tableWorkflows, w))
	return nil
}

// SetActions заменяет упорядоченный список действий.
func (s *WorkflowService) SetActions(ctx context.Context, userID, id uuid.UUID, req dto.WorkflowActionsRequest) ([]models.WorkflowAction, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	if len(req.Actions) > maxWorkflowActions {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "не более %d действий в сценарии", maxWorkflowActions)
	}

	actions := make([]models.WorkflowAction, 0, len(req.Actions))
	for i, a := range req.Actions {
		config := a.Config
		if len(config) == 0 || string(config) == "null" {
			config = json.RawMessage(`{}`)
		}
		if err := workflow.ValidateAction(a.Type, config); err != nil {
			return nil, apperror.Newf(apperror.ErrCodeValidation, "действие %d: %v", i+1, err)
		}
		actions = append(actions, models.WorkflowAction{
			WorkflowID:      id,
			Position:        i,
			Type:            a.Type,
			Config:          config,
			ContinueOnError: a.ContinueOnError,
		})
	}

	if err := s.repo.SetActions(ctx, id, actions); err != nil {
		return nil, err
	}
	saved, err := s.repo.ListActions(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableWorkflowActions, map[string]any{"workflow_id": id, "actions": saved}, nil))
	return saved, nil
}

// ExecuteWorkflow запускает сценарий. При async запуск продолжается в фоне,
// а вызывающий получает запись в статусе running.
func (s *WorkflowService) ExecuteWorkflow(ctx context.Context, userID, id uuid.UUID, req dto.ExecuteWorkflowRequest) (*models.WorkflowExecution, error) {
	w, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, w, models.TriggerManual, req.Input, req.Async)
}

func (s *WorkflowService) execute(ctx context.Context, w *models.Workflow, trigger string, input map[string]any, async bool) (*models.WorkflowExecution, error) {
	if !w.IsActive {
		return nil, apperror.Conflict("сценарий выключен")
	}
	actions, err := s.repo.ListActions(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	if input == nil {
		input = map[string]any{}
	}
	rawInput, err := json.Marshal(input)
	if err != nil {
		return nil, apperror.Validation("входные данные должны сериализоваться в JSON")
	}

	exec := &models.WorkflowExecution{
		WorkflowID: w.ID,
		UserID:     w.UserID,
		Status:     models.ExecutionStatusRunning,
		Trigger:    trigger,
		Input:      rawInput,
		Steps:      json.RawMessage(`[]`),
	}
	if err := s.repo.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, w.UserID, events.Inserted(tableWorkflowExecutions, exec))

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), maxRunDuration)
	s.track(exec.ID, cancel)

	if async {
		snapshot := *exec
		goroutine.SafeGo(func() {
			defer s.untrack(exec.ID)
			if _, err := s.finish(runCtx, exec, actions, input); err != nil {
				logger.WithComponent("workflow").WithError(err).WithField("execution_id", exec.ID).Error("workflow execution failed to persist")
			}
		})
		return &snapshot, nil
	}

	defer s.untrack(exec.ID)
	return s.finish(runCtx, exec, actions, input)
}

func (s *WorkflowService) finish(ctx context.Context, exec *models.WorkflowExecution, actions []models.WorkflowAction, input map[string]any) (*models.WorkflowExecution, error) {
	result := s.runner.Run(ctx, actions, input)

	steps, _ := json.Marshal(result.Steps)
	output, _ := json.Marshal(result.Variables)
	exec.Status = result.Status
	exec.Steps = steps
	exec.Output = output
	if result.Error != "" {
		msg := result.Error
		exec.Error = &msg
	}

	// Итог пишем даже если запуск был отменён.
	if err := s.repo.FinishExecution(context.WithoutCancel(ctx), exec); err != nil {
		return nil, err
	}
	if s.counter != nil {
		s.counter.WorkflowExecution(exec.Status)
	}
	s.events.Emit(ctx, exec.UserID, events.Updated(tableWorkflowExecutions, exec, nil))
	return exec, nil
}

func (s *WorkflowService) ListExecutions(ctx context.Context, userID, workflowID uuid.UUID, limit, offset int) ([]models.WorkflowExecution, int, error) {
	if _, err := s.owned(ctx, userID, workflowID); err != nil {
		return nil, 0, err
	}
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListExecutions(ctx, workflowID, limit, offset)
}

func (s *WorkflowService) GetExecution(ctx context.Context, userID, id uuid.UUID) (*models.WorkflowExecution, error) {
	e, err := s.repo.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, apperror.ErrExecutionNotFound
	}
	return e, nil
}

// CancelExecution отменяет ожидающий или идущий запуск и прерывает его
// выполнение в этом процессе.
func (s *WorkflowService) CancelExecution(ctx context.Context, userID, id uuid.UUID) (*models.WorkflowExecution, error) {
	e, err := s.GetExecution(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if e.Status != models.ExecutionStatusPending && e.Status != models.ExecutionStatusRunning {
		return nil, apperror.Conflict("запуск уже завершён")
	}
	cancelled, err := s.repo.CancelExecution(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if cancel, ok := s.running[id]; ok {
		cancel()
	}
	s.mu.Unlock()

	s.events.Emit(ctx, userID, events.Updated(tableWorkflowExecutions, cancelled, e))
	return cancelled, nil
}

func (s *WorkflowService) CreateSchedule(ctx context.Context, userID, workflowID uuid.UUID, req dto.ScheduleRequest) (*models.WorkflowSchedule, error) {
	if _, err := s.owned(ctx, userID, workflowID); err != nil {
		return nil, err
	}
	sch := &models.WorkflowSchedule{WorkflowID: workflowID, IsEnabled: true}
	if err := s.applySchedule(sch, req); err != nil {
		return nil, err
	}
	if err := s.repo.CreateSchedule(ctx, sch); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableWorkflowSchedules, sch))
	return sch, nil
}

func (s *WorkflowService) UpdateSchedule(ctx context.Context, userID, workflowID, id uuid.UUID, req dto.ScheduleRequest) (*models.WorkflowSchedule, error) {
	if _, err := s.owned(ctx, userID, workflowID); err != nil {
		return nil, err
	}
	sch, err := s.repo.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if sch.WorkflowID != workflowID {
		return nil, apperror.ErrScheduleNotFound
	}
	old := *sch
	if err := s.applySchedule(sch, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSchedule(ctx, sch); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableWorkflowSchedules, sch, &old))
	return sch, nil
}

func (s *WorkflowService) DeleteSchedule(ctx context.Context, userID, workflowID, id uuid.UUID) error {
	if _, err := s.owned(ctx, userID, workflowID); err != nil {
		return err
	}
	if err := s.repo.DeleteSchedule(ctx, workflowID, id); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted(tableWorkflowSchedules, &models.WorkflowSchedule{ID: id, WorkflowID: workflowID}))
	return nil
}

func (s *WorkflowService) ListSchedules(ctx context.Context, userID, workflowID uuid.UUID) ([]models.WorkflowSchedule, error) {
	if _, err := s.owned(ctx, userID, workflowID); err != nil {
		return nil, err
	}
	return s.repo.ListSchedules(ctx, workflowID)
}

// RunScheduler раз в interval запускает созревшие расписания, пока жив ctx.
func (s *WorkflowService) RunScheduler(ctx context.Context, interval time.Duration) {
	log := logger.WithComponent("scheduler")
	log.WithField("interval", interval.String()).Info("workflow scheduler started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("workflow scheduler stopped")
			return
		case <-ticker.C:
			goroutine.DefaultRecoveryHandler.Run(func() {
				if n, err := s.RunDueSchedules(ctx); err != nil {
					log.WithError(err).Error("scheduler tick failed")
				} else if n > 0 {
					log.WithField("count", n).Info("scheduled workflows executed")
				}
			})
		}
	}
}

// RunDueSchedules забирает созревшие расписания и выполняет их сценарии.
// Возвращает число запусков.
func (s *WorkflowService) RunDueSchedules(ctx context.Context) (int, error) {
	now := s.now().UTC()
	claimed, err := s.repo.ClaimDueSchedules(ctx, now, scheduleClaimBatch, func(sch models.WorkflowSchedule) (time.Time, error) {
		return workflow.NextRun(sch.CronExpression, sch.Timezone, now)
	})
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, sch := range claimed {
		w, err := s.repo.GetByID(ctx, sch.WorkflowID)
		if err != nil {
			logger.WithComponent("scheduler").WithError(err).WithField("schedule_id", sch.ID).Warn("scheduled workflow not found")
			continue
		}
		input := map[string]any{"schedule_id": sch.ID.String(), "scheduled_at": now.Format(time.RFC3339)}
		if _, err := s.execute(ctx, w, models.TriggerSchedule, input, false); err != nil {
			logger.WithComponent("scheduler").WithError(err).WithField("workflow_id", w.ID).Warn("scheduled run failed")
			continue
		}
		ran++
	}
	return ran, nil
}

func (s *WorkflowService) applySchedule(sch *models.WorkflowSchedule, req dto.ScheduleRequest) error {
	expr := strings.TrimSpace(req.CronExpression)
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	next, err := workflow.NextRun(expr, tz, s.now())
	if err != nil {
		return apperror.Validation(err.Error())
	}
	sch.CronExpression = expr
	sch.Timezone = tz
	if req.IsEnabled != nil {
		sch.IsEnabled = *req.IsEnabled
	}
	sch.NextRunAt = &next
	return nil
}

func (s *WorkflowService) track(id uuid.UUID, cancel context.CancelFunc) {
	s.mu.Lock()
	s.running[id] = cancel
	s.mu.Unlock()
}

func (s *WorkflowService) untrack(id uuid.UUID) {
	s.mu.Lock()
	if cancel, ok := s.running[id]; ok {
		cancel()
		delete(s.running, id)
	}
	s.mu.Unlock()
}

func (s *WorkflowService) owned(ctx context.Context, userID, id uuid.UUID) (*models.Workflow, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.UserID != userID {
		return nil, apperror.ErrWorkflowNotFound
	}
	return w, nil
}

func applyWorkflowRequest(w *models.Workflow, req dto.WorkflowRequest) error {
	if err := requireText(req.Name, "название сценария обязательно"); err != nil {
		return err
	}
	trigger := req.TriggerType
	if trigger == "" {
		trigger = models.TriggerManual
	}
	switch trigger {
	case models.TriggerManual, models.TriggerSchedule, models.TriggerEvent:
	default:
		return apperror.Validation("недопустимый тип запуска")
	}
	w.Name = strings.TrimSpace(req.Name)
	w.Description = optionalString(req.Description)
	w.TriggerType = trigger
	if req.IsActive != nil {
		w.IsActive = *req.IsActive
	}
	return nil
}
