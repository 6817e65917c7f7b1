package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

const (
	tableTimesheets       = "timesheets"
	tableTimesheetEntries = "timesheet_entries"

	dateLayout = "2006-01-02"
)

type TimesheetRepository interface {
	Create(ctx context.Context, t *models.Timesheet) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Timesheet, error)
	ListEntries(ctx context.Context, timesheetID uuid.UUID) ([]models.TimesheetEntry, error)
	ListApprovals(ctx context.Context, timesheetID uuid.UUID) ([]models.TimesheetApproval, error)
	List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Timesheet, int, error)
	Update(ctx context.Context, t *models.Timesheet) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	AddEntry(ctx context.Context, e *models.TimesheetEntry) (*models.TimesheetTotals, error)
	UpdateEntry(ctx context.Context, e *models.TimesheetEntry) (*models.TimesheetTotals, error)
	DeleteEntry(ctx context.Context, timesheetID, entryID uuid.UUID) (*models.TimesheetTotals, error)
	Submit(ctx context.Context, id uuid.UUID) (*models.Timesheet, error)
	Decide(ctx context.Context, approval *models.TimesheetApproval) (*models.Timesheet, error)
	CanApprove(ctx context.Context, approverID, ownerID uuid.UUID) (bool, error)
	DailyHours(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.DailyHours, error)
}

type TimesheetService struct {
	repo   TimesheetRepository
	events events.Emitter
}

func NewTimesheetService(repo TimesheetRepository, emitter events.Emitter) *TimesheetService {
	return &TimesheetService{repo: repo, events: emitterOrNoop(emitter)}
}

// CreateTimesheet создаёт черновик табеля.
func (s *TimesheetService) CreateTimesheet(ctx context.Context, userID uuid.UUID, req dto.TimesheetRequest) (*models.Timesheet, error) {
	t := &models.Timesheet{UserID: userID}
	if err := applyTimesheetRequest(t, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableTimesheets, t))
	return t, nil
}

// GetTimesheet возвращает табель с записями и решениями. Доступен владельцу и согласующим.
func (s *TimesheetService) GetTimesheet(ctx context.Context, userID, id uuid.UUID) (*models.Timesheet, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		allowed, err := s.repo.CanApprove(ctx, userID, t.UserID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, apperror.ErrTimesheetNotFound
		}
	}

	if t.Entries, err = s.repo.ListEntries(ctx, id); err != nil {
		return nil, err
	}
	if t.Approvals, err = s.repo.ListApprovals(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TimesheetService) ListTimesheets(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Timesheet, int, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.List(ctx, userID, status, limit, offset)
}

// UpdateTimesheet разрешено в статусах draft и rejected; записи должны остаться внутри периода.
func (s *TimesheetService) UpdateTimesheet(ctx context.Context, userID, id uuid.UUID, req dto.TimesheetRequest) (*models.Timesheet, error) {
	t, err := s.editable(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	old := *t

	if err := applyTimesheetRequest(t, req); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !t.Covers(e.WorkDate) {
			return nil, apperror.Validation("в табеле есть записи вне нового периода")
		}
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableTimesheets, t, &old))
	return t, nil
}

// DeleteTimesheet удаляет только черновик.
func (s *TimesheetService) DeleteTimesheet(ctx context.Context, userID, id uuid.UUID) error {
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if t.Status != models.TimesheetStatusDraft {
		return apperror.Conflict("удалить можно только черновик табеля")
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted(tableTimesheets, t))
	return nil
}

// AddEntry добавляет запись и возвращает пересчитанные итоги.
func (s *TimesheetService) AddEntry(ctx context.Context, userID, timesheetID uuid.UUID, req dto.TimesheetEntryRequest) (*models.TimesheetEntry, *models.TimesheetTotals, error) {
	t, err := s.editable(ctx, userID, timesheetID)
	if err != nil {
		return nil, nil, err
	}
	e := &models.TimesheetEntry{TimesheetID: timesheetID}
	if err := applyEntryRequest(t, e, req); err != nil {
		return nil, nil, err
	}

	totals, err := s.repo.AddEntry(ctx, e)
	if err != nil {
		return nil, nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableTimesheetEntries, e))
	return e, totals, nil
}

func (s *TimesheetService) UpdateEntry(ctx context.Context, userID, timesheetID, entryID uuid.UUID, req dto.TimesheetEntryRequest) (*models.TimesheetEntry, *models.TimesheetTotals, error) {
	t, err := s.editable(ctx, userID, timesheetID)
	if err != nil {
		return nil, nil, err
	}
	e := &models.TimesheetEntry{ID: entryID, TimesheetID: timesheetID}
	if err := applyEntryRequest(t, e, req); err != nil {
		return nil, nil, err
	}

	totals, err := s.repo.UpdateEntry(ctx, e)
	if err != nil {
		return nil, nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableTimesheetEntries, e, nil))
	return e, totals, nil
}

func (s *TimesheetService) DeleteEntry(ctx context.Context, userID, timesheetID, entryID uuid.UUID) (*models.TimesheetTotals, error) {
	if _, err := s.editable(ctx, userID, timesheetID); err != nil {
		return nil, err
	}
	totals, err := s.repo.DeleteEntry(ctx, timesheetID, entryID)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Deleted(tableTimesheetEntries, map[string]uuid.UUID{"id": entryID, "timesheet_id": timesheetID}))
	return totals, nil
}

// Submit отправляет табель на согласование; нужна хотя бы одна запись.
func (s *TimesheetService) Submit(ctx context.Context, userID, id uuid.UUID) (*models.Timesheet, error) {
	t, err := s.editable(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperror.Validation("нельзя отправить пустой табель")
	}

	submitted, err := s.repo.Submit(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableTimesheets, submitted, t))
	return submitted, nil
}

// Approve утверждает отправленный табель.
func (s *TimesheetService) Approve(ctx context.Context, approverID, id uuid.UUID, comment *string) (*models.Timesheet, error) {
	return s.decide(ctx, approverID, id, models.TimesheetStatusApproved, comment)
}

// Reject возвращает табель на доработку.
func (s *TimesheetService) Reject(ctx context.Context, approverID, id uuid.UUID, comment *string) (*models.Timesheet, error) {
	return s.decide(ctx, approverID, id, models.TimesheetStatusRejected, comment)
}

func (s *TimesheetService) decide(ctx context.Context, approverID, id uuid.UUID, decision string, comment *string) (*models.Timesheet, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID == approverID {
		return nil, apperror.Forbidden("нельзя согласовать собственный табель")
	}
	allowed, err := s.repo.CanApprove(ctx, approverID, t.UserID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperror.Forbidden("нет прав на согласование табеля")
	}
	if t.Status != models.TimesheetStatusSubmitted {
		return nil, apperror.Conflict("согласовать можно только отправленный табель")
	}

	approval := &models.TimesheetApproval{
		TimesheetID: id,
		ApproverID:  approverID,
		Decision:    decision,
		Comment:     optionalString(comment),
	}
	updated, err := s.repo.Decide(ctx, approval)
	if err != nil {
		return nil, err
	}
	updated.Approvals = []models.TimesheetApproval{*approval}

	s.events.Emit(ctx, t.UserID, events.Updated(tableTimesheets, updated, t))
	s.events.Emit(ctx, t.UserID, events.Inserted("timesheet_approvals", approval))
	return updated, nil
}

// WeeklySummary возвращает часы по каждому дню недели, начиная с weekStart.
func (s *TimesheetService) WeeklySummary(ctx context.Context, userID uuid.UUID, weekStart time.Time) ([]models.DailyHours, error) {
	start := time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)

	rows, err := s.repo.DailyHours(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return FillWeek(start, rows), nil
}

// FillWeek раскладывает суммы по семи дням, подставляя нули для пустых дней.
func FillWeek(start time.Time, rows []models.DailyHours) []models.DailyHours {
	byDay := make(map[string]models.DailyHours, len(rows))
	for _, r := range rows {
		byDay[r.Day.UTC().Format(dateLayout)] = r
	}
	week := make([]models.DailyHours, 7)
	for i := range week {
		day := start.AddDate(0, 0, i)
		week[i] = models.DailyHours{Day: day}
		if r, ok := byDay[day.Format(dateLayout)]; ok {
			week[i].Hours = round2(r.Hours)
			week[i].Billable = round2(r.Billable)
		}
	}
	return week
}

func (s *TimesheetService) owned(ctx context.Context, userID, id uuid.UUID) (*models.Timesheet, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, apperror.ErrTimesheetNotFound
	}
	return t, nil
}

func (s *TimesheetService) editable(ctx context.Context, userID, id uuid.UUID) (*models.Timesheet, error) {
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !t.Editable() {
		return nil, apperror.Conflict("табель нельзя менять после отправки на согласование")
	}
	return t, nil
}

func applyTimesheetRequest(t *models.Timesheet, req dto.TimesheetRequest) error {
	if err := requireText(req.ProjectName, "укажите проект"); err != nil {
		return err
	}
	start, err := time.Parse(dateLayout, req.PeriodStart)
	if err != nil {
		return apperror.Validation("неверная дата начала периода")
	}
	end, err := time.Parse(dateLayout, req.PeriodEnd)
	if err != nil {
		return apperror.Validation("неверная дата окончания периода")
	}
	if end.Before(start) {
		return apperror.Validation("период не может заканчиваться раньше начала")
	}
	if req.HourlyRate < 0 {
		return apperror.Validation("ставка не может быть отрицательной")
	}

	t.ProjectName = strings.TrimSpace(req.ProjectName)
	t.PeriodStart = start
	t.PeriodEnd = end
	t.HourlyRate = round2(req.HourlyRate)
	t.Notes = optionalString(req.Notes)
	return nil
}

func applyEntryRequest(t *models.Timesheet, e *models.TimesheetEntry, req dto.TimesheetEntryRequest) error {
	day, err := time.Parse(dateLayout, req.WorkDate)
	if err != nil {
		return apperror.Validation("неверная дата работы")
	}
	if !t.Covers(day) {
		return apperror.Validation("дата работы вне периода табеля")
	}
	if req.Hours <= 0 || req.Hours > 24 {
		return apperror.Validation("часы должны быть больше 0 и не больше 24")
	}

	billable := true
	if req.Billable != nil {
		billable = *req.Billable
	}
	e.WorkDate = day
	e.Hours = round2(req.Hours)
	e.Description = optionalString(req.Description)
	e.Task = optionalString(req.Task)
	e.Billable = billable
	return nil
}
