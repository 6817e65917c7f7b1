package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

type mockTimesheetRepo struct {
	mock.Mock
}

func (m *mockTimesheetRepo) Create(ctx context.Context, t *models.Timesheet) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTimesheetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Timesheet), args.Error(1)
}

func (m *mockTimesheetRepo) ListEntries(ctx context.Context, timesheetID uuid.UUID) ([]models.TimesheetEntry, error) {
	args := m.Called(ctx, timesheetID)
	return args.Get(0).([]models.TimesheetEntry), args.Error(1)
}

func (m *mockTimesheetRepo) ListApprovals(ctx context.Context, timesheetID uuid.UUID) ([]models.TimesheetApproval, error) {
	args := m.Called(ctx, timesheetID)
	return args.Get(0).([]models.TimesheetApproval), args.Error(1)
}

func (m *mockTimesheetRepo) List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Timesheet, int, error) {
	args := m.Called(ctx, userID, status, limit, offset)
	return args.Get(0).([]models.Timesheet), args.Int(1), args.Error(2)
}

func (m *mockTimesheetRepo) Update(ctx context.Context, t *models.Timesheet) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockTimesheetRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *mockTimesheetRepo) AddEntry(ctx context.Context, e *models.TimesheetEntry) (*models.TimesheetTotals, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TimesheetTotals), args.Error(1)
}

func (m *mockTimesheetRepo) UpdateEntry(ctx context.Context, e *models.TimesheetEntry) (*models.TimesheetTotals, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TimesheetTotals), args.Error(1)
}

func (m *mockTimesheetRepo) DeleteEntry(ctx context.Context, timesheetID, entryID uuid.UUID) (*models.TimesheetTotals, error) {
	args := m.Called(ctx, timesheetID, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TimesheetTotals), args.Error(1)
}

func (m *mockTimesheetRepo) Submit(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Timesheet), args.Error(1)
}

func (m *mockTimesheetRepo) Decide(ctx context.Context, approval *models.TimesheetApproval) (*models.Timesheet, error) {
	args := m.Called(ctx, approval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Timesheet), args.Error(1)
}

func (m *mockTimesheetRepo) CanApprove(ctx context.Context, approverID, ownerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, approverID, ownerID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTimesheetRepo) DailyHours(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.DailyHours, error) {
	args := m.Called(ctx, userID, from, to)
	return args.Get(0).([]models.DailyHours), args.Error(1)
}

func march(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

func TestTimesheetService_CreateTimesheet_PeriodValidation(t *testing.T) {
	svc := NewTimesheetService(new(mockTimesheetRepo), nil)

	_, err := svc.CreateTimesheet(context.Background(), uuid.New(), dto.TimesheetRequest{
		ProjectName: "Сайт",
		PeriodStart: "2026-03-10",
		PeriodEnd:   "2026-03-01",
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestTimesheetService_AddEntry_OutsidePeriod(t *testing.T) {
	repo := new(mockTimesheetRepo)
	svc := NewTimesheetService(repo, nil)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Timesheet{
		ID: id, UserID: userID, Status: models.TimesheetStatusDraft,
		PeriodStart: march(1), PeriodEnd: march(7),
	}, nil)

	_, _, err := svc.AddEntry(ctx, userID, id, dto.TimesheetEntryRequest{WorkDate: "2026-03-08", Hours: 2})
	assert.True(t, apperror.IsValidation(err))
}

func TestTimesheetService_AddEntry_HoursBounds(t *testing.T) {
	repo := new(mockTimesheetRepo)
	svc := NewTimesheetService(repo, nil)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Timesheet{
		ID: id, UserID: userID, Status: models.TimesheetStatusDraft,
		PeriodStart: march(1), PeriodEnd: march(7),
	}, nil)

	_, _, err := svc.AddEntry(ctx, userID, id, dto.TimesheetEntryRequest{WorkDate: "2026-03-02", Hours: 25})
	assert.True(t, apperror.IsValidation(err))
}

func TestTimesheetService_AddEntry_ReturnsTotals(t *testing.T) {
	repo := new(mockTimesheetRepo)
	em := &recordingEmitter{}
	svc := NewTimesheetService(repo, em)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()
	notBillable := false

	repo.On("GetByID", ctx, id).Return(&models.Timesheet{
		ID: id, UserID: userID, Status: models.TimesheetStatusRejected,
		PeriodStart: march(1), PeriodEnd: march(7), HourlyRate: 50,
	}, nil)
	repo.On("AddEntry", ctx, mock.MatchedBy(func(e *models.TimesheetEntry) bool {
		return !e.Billable && e.Hours == 1.5
	})).Return(&models.TimesheetTotals{TotalHours: 9.5, BillableHours: 8, TotalAmount: 400}, nil)

	entry, totals, err := svc.AddEntry(ctx, userID, id, dto.TimesheetEntryRequest{
		WorkDate: "2026-03-03", Hours: 1.5, Billable: &notBillable,
	})

	require.NoError(t, err)
	assert.Equal(t, march(3), entry.WorkDate)
	assert.Equal(t, 400.0, totals.TotalAmount)
	assert.Equal(t, []string{"timesheet_entries:INSERT"}, em.tables())
}

func TestTimesheetService_AddEntry_SubmittedLocked(t *testing.T) {
	repo := new(mockTimesheetRepo)
	svc := NewTimesheetService(repo, nil)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Timesheet{ID: id, UserID: userID, Status: models.TimesheetStatusSubmitted}, nil)

	_, _, err := svc.AddEntry(ctx, userID, id, dto.TimesheetEntryRequest{WorkDate: "2026-03-02", Hours: 1})
	assert.True(t, apperror.IsConflict(err))
}

func TestTimesheetService_Submit_RequiresEntries(t *testing.T) {
	repo := new(mockTimesheetRepo)
	svc := NewTimesheetService(repo, nil)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Timesheet{ID: id, UserID: userID, Status: models.TimesheetStatusDraft}, nil)
	repo.On("ListEntries", ctx, id).Return([]models.TimesheetEntry{}, nil)

	_, err := svc.Submit(ctx, userID, id)
	assert.True(t, apperror.IsValidation(err))
}

func TestTimesheetService_Approve_OwnTimesheet(t *testing.T) {
	repo := new(mockTimesheetRepo)
	svc := NewTimesheetService(repo, nil)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Timesheet{ID: id, UserID: userID, Status: models.TimesheetStatusSubmitted}, nil)

	_, err := svc.Approve(ctx, userID, id, nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestTimesheetService_Approve(t *testing.T) {
	repo := new(mockTimesheetRepo)
	em := &recordingEmitter{}
	svc := NewTimesheetService(repo, em)
	ctx := context.Background()
	ownerID, approverID, id := uuid.New(), uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Timesheet{ID: id, UserID: ownerID, Status: models.TimesheetStatusSubmitted}, nil)
	repo.On("CanApprove", ctx, approverID, ownerID).Return(true, nil)
	repo.On("Decide", ctx, mock.MatchedBy(func(a *models.TimesheetApproval) bool {
		return a.Decision == models.TimesheetStatusApproved && a.ApproverID == approverID
	})).Return(&models.Timesheet{ID: id, UserID: ownerID, Status: models.TimesheetStatusApproved}, nil)

	ts, err := svc.Approve(ctx, approverID, id, nil)

	require.NoError(t, err)
	assert.Equal(t, models.TimesheetStatusApproved, ts.Status)
	assert.Equal(t, []string{"timesheets:UPDATE", "timesheet_approvals:INSERT"}, em.tables())
}

func TestFillWeek(t *testing.T) {
	rows := []models.DailyHours{
		{Day: march(3), Hours: 8, Billable: 6},
		{Day: march(5), Hours: 4.5, Billable: 4.5},
	}

	week := FillWeek(march(2), rows)

	require.Len(t, week, 7)
	assert.Equal(t, 0.0, week[0].Hours)
	assert.Equal(t, 8.0, week[1].Hours)
	assert.Equal(t, 4.5, week[3].Billable)
	assert.Equal(t, march(8), week[6].Day)
}

func TestCalculateTimesheetTotals(t *testing.T) {
	totals := models.CalculateTimesheetTotals(10.25, 7.5, 42.2)
	assert.Equal(t, 10.25, totals.TotalHours)
	assert.Equal(t, 316.5, totals.TotalAmount)
}
