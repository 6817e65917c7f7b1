package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

const tablePlans = "plans"

type PlanRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Plan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	GetBySlug(ctx context.Context, slug string) (*models.Plan, error)
	Create(ctx context.Context, p *models.Plan) error
	Update(ctx context.Context, p *models.Plan) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	SetFeatures(ctx context.Context, planID uuid.UUID, features []models.PlanFeature) error
}

type PlanService struct {
	repo   PlanRepository
	events events.Emitter
}

func NewPlanService(repo PlanRepository, emitter events.Emitter) *PlanService {
	return &PlanService{repo: repo, events: emitterOrNoop(emitter)}
}

// YearlySavings процент экономии годовой оплаты относительно помесячной.
func YearlySavings(monthly, yearly float64) float64 {
	full := monthly * 12
	if full <= 0 || yearly >= full {
		return 0
	}
	return round2((full - yearly) / full * 100)
}

// ListPlans возвращает каталог; неактивные тарифы видит только администратор.
func (s *PlanService) ListPlans(ctx context.Context, includeInactive bool) ([]models.Plan, error) {
	plans, err := s.repo.List(ctx, !includeInactive)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		plans[i].YearlySavingsPercent = YearlySavings(plans[i].PriceMonthly, plans[i].PriceYearly)
	}
	return plans, nil
}

func (s *PlanService) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.YearlySavingsPercent = YearlySavings(p.PriceMonthly, p.PriceYearly)
	return p, nil
}

func (s *PlanService) GetPlanBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	p, err := s.repo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	p.YearlySavingsPercent = YearlySavings(p.PriceMonthly, p.PriceYearly)
	return p, nil
}

// CreatePlan создаёт тариф вместе с возможностями.
func (s *PlanService) CreatePlan(ctx context.Context, actorID uuid.UUID, req dto.PlanRequest) (*models.Plan, error) {
	p := &models.Plan{}
	if err := applyPlanRequest(p, req); err != nil {
		return nil, err
	}
	p.Features = planFeatures(req.Features)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	p.YearlySavingsPercent = YearlySavings(p.PriceMonthly, p.PriceYearly)
	s.events.Emit(ctx, actorID, events.Inserted(tablePlans, p))
	return p, nil
}

// UpdatePlan меняет параметры тарифа; возможности меняются только через SetFeatures.
func (s *PlanService) UpdatePlan(ctx context.Context, actorID, id uuid.UUID, req dto.PlanRequest) (*models.Plan, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *p

	if err := applyPlanRequest(p, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	p.YearlySavingsPercent = YearlySavings(p.PriceMonthly, p.PriceYearly)
	s.events.Emit(ctx, actorID, events.Updated(tablePlans, p, &old))
	return p, nil
}

// DeactivatePlan скрывает тариф; действующие подписки сохраняются.
func (s *PlanService) DeactivatePlan(ctx context.Context, actorID, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, actorID, events.Updated(tablePlans, map[string]any{"id": id, "is_active": false}, nil))
	return nil
}

// SetFeatures заменяет список возможностей.
func (s *PlanService) SetFeatures(ctx context.Context, actorID, id uuid.UUID, features []dto.PlanFeatureRequest) (*models.Plan, error) {
	for _, f := range features {
		if err := requireText(f.Name, "укажите название возможности"); err != nil {
			return nil, err
		}
	}
	if err := s.repo.SetFeatures(ctx, id, planFeatures(features)); err != nil {
		return nil, err
	}

	p, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, actorID, events.Updated("plan_features", p.Features, nil))
	return p, nil
}

// ComparePlans строит матрицу возможностей по активным тарифам.
func (s *PlanService) ComparePlans(ctx context.Context) (*models.PlanComparison, error) {
	plans, err := s.ListPlans(ctx, false)
	if err != nil {
		return nil, err
	}
	return BuildComparison(plans), nil
}

// BuildComparison собирает матрицу feature → slug → included.
func BuildComparison(plans []models.Plan) *models.PlanComparison {
	cmp := &models.PlanComparison{
		Plans:    plans,
		Features: []string{},
		Matrix:   map[string]map[string]bool{},
	}
	order := map[string]int{}
	for _, p := range plans {
		for _, f := range p.Features {
			row, ok := cmp.Matrix[f.Name]
			if !ok {
				row = map[string]bool{}
				cmp.Matrix[f.Name] = row
				order[f.Name] = len(order)
				cmp.Features = append(cmp.Features, f.Name)
			}
			row[p.Slug] = f.Included
		}
	}
	for _, row := range cmp.Matrix {
		for _, p := range plans {
			if _, ok := row[p.Slug]; !ok {
				row[p.Slug] = false
			}
		}
	}
	sort.SliceStable(cmp.Features, func(i, j int) bool {
		return order[cmp.Features[i]] < order[cmp.Features[j]]
	})
	return cmp
}

func applyPlanRequest(p *models.Plan, req dto.PlanRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperror.Validation("укажите название тарифа")
	}
	slug := Slugify(req.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return apperror.Validation("не удалось построить slug тарифа")
	}
	if req.PriceMonthly < 0 || req.PriceYearly < 0 {
		return apperror.Validation("цена не может быть отрицательной")
	}

	limits := req.Limits
	if len(limits) == 0 {
		limits = json.RawMessage(`{}`)
	} else {
		var obj map[string]any
		if err := json.Unmarshal(limits, &obj); err != nil {
			return apperror.Validation("limits должны быть JSON объектом")
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	p.Name = name
	p.Slug = slug
	p.Description = optionalString(req.Description)
	p.PriceMonthly = round2(req.PriceMonthly)
	p.PriceYearly = round2(req.PriceYearly)
	p.Currency = currency
	p.StripePriceMonthly = optionalString(req.StripePriceMonthly)
	p.StripePriceYearly = optionalString(req.StripePriceYearly)
	p.Limits = limits
	p.TrialDays = req.TrialDays
	p.IsPopular = req.IsPopular
	p.SortOrder = req.SortOrder
	return nil
}

func planFeatures(reqs []dto.PlanFeatureRequest) []models.PlanFeature {
	out := make([]models.PlanFeature, 0, len(reqs))
	for i, f := range reqs {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		out = append(out, models.PlanFeature{Name: name, Included: f.Included, Position: i})
	}
	return out
}
