package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/idgen"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/validation"
)

const tableProposals = "proposals"

type ProposalRepository interface {
	Create(ctx context.Context, p *models.Proposal, items []models.ProposalItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	GetByShareToken(ctx context.Context, token string) (*models.Proposal, error)
	ListItems(ctx context.Context, proposalID uuid.UUID) ([]models.ProposalItem, error)
	GetSignature(ctx context.Context, proposalID uuid.UUID) (*models.ProposalSignature, error)
	List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Proposal, int, error)
	Update(ctx context.Context, p *models.Proposal) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	AddItem(ctx context.Context, item *models.ProposalItem) (*models.ProposalTotals, error)
	UpdateItem(ctx context.Context, item *models.ProposalItem) (*models.ProposalTotals, error)
	RemoveItem(ctx context.Context, proposalID, itemID uuid.UUID) (*models.ProposalTotals, error)
	Recalculate(ctx context.Context, proposalID uuid.UUID) (*models.ProposalTotals, error)
	MarkSent(ctx context.Context, id uuid.UUID, token string, sentAt time.Time) (*models.Proposal, error)
	RegisterView(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	Sign(ctx context.Context, sig *models.ProposalSignature) (*models.Proposal, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []string, to string) (*models.Proposal, error)
	ExpireOverdue(ctx context.Context, now time.Time) ([]models.Proposal, error)
	StatusTotals(ctx context.Context, userID uuid.UUID) ([]models.StatusTotal, error)
}

type ProposalService struct {
	repo   ProposalRepository
	events events.Emitter
	now    func() time.Time
}

func NewProposalService(repo ProposalRepository, emitter events.Emitter) *ProposalService {
	return &ProposalService{repo: repo, events: emitterOrNoop(emitter), now: time.Now}
}

// CreateProposal создаёт черновик с позициями.
func (s *ProposalService) CreateProposal(ctx context.Context, userID uuid.UUID, req dto.ProposalRequest) (*models.Proposal, error) {
	if err := validateProposal(req); err != nil {
		return nil, err
	}

	p := &models.Proposal{
		UserID: userID,
		Status: models.ProposalStatusDraft,
	}
	applyProposalRequest(p, req)

	items := make([]models.ProposalItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, models.ProposalItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	if err := s.repo.Create(ctx, p, items); err != nil {
		return nil, err
	}
	p.Items = items

	s.events.Emit(ctx, userID, events.Inserted(tableProposals, p))
	return p, nil
}

// GetProposal возвращает предложение владельца с позициями и подписью.
func (s *ProposalService) GetProposal(ctx context.Context, userID, id uuid.UUID) (*models.Proposal, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.withDetails(ctx, p)
}

// ListProposals возвращает предложения пользователя.
func (s *ProposalService) ListProposals(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Proposal, int, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.List(ctx, userID, status, limit, offset)
}

// UpdateProposal меняет черновик.
func (s *ProposalService) UpdateProposal(ctx context.Context, userID, id uuid.UUID, req dto.ProposalRequest) (*models.Proposal, error) {
	if err := validateProposal(req); err != nil {
		return nil, err
	}
	p, err := s.editable(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	old := *p

	applyProposalRequest(p, req)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, userID, events.Updated(tableProposals, p, &old))
	return p, nil
}

// DeleteProposal удаляет предложение.
func (s *ProposalService) DeleteProposal(ctx context.Context, userID, id uuid.UUID) error {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.events.Emit(ctx, userID, events.Deleted(tableProposals, p))
	return nil
}

// AddItem добавляет позицию в черновик.
func (s *ProposalService) AddItem(ctx context.Context, userID, proposalID uuid.UUID, req dto.ProposalItemRequest) (*models.ProposalItem, *models.ProposalTotals, error) {
	if err := validateItem(req); err != nil {
		return nil, nil, err
	}
	if _, err := s.editable(ctx, userID, proposalID); err != nil {
		return nil, nil, err
	}

	item := &models.ProposalItem{
		ProposalID:  proposalID,
		Description: strings.TrimSpace(req.Description),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	}
	totals, err := s.repo.AddItem(ctx, item)
	if err != nil {
		return nil, nil, err
	}

	s.events.Emit(ctx, userID, events.Inserted("proposal_items", item))
	return item, totals, nil
}

// UpdateItem меняет позицию черновика.
func (s *ProposalService) UpdateItem(ctx context.Context, userID, proposalID, itemID uuid.UUID, req dto.ProposalItemRequest) (*models.ProposalItem, *models.ProposalTotals, error) {
	if err := validateItem(req); err != nil {
		return nil, nil, err
	}
	if _, err := s.editable(ctx, userID, proposalID); err != nil {
		return nil, nil, err
	}

	item := &models.ProposalItem{
		ID:          itemID,
		ProposalID:  proposalID,
		Description: strings.TrimSpace(req.Description),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	}
	totals, err := s.repo.UpdateItem(ctx, item)
	if err != nil {
		return nil, nil, err
	}

	s.events.Emit(ctx, userID, events.Updated("proposal_items", item, nil))
	return item, totals, nil
}

// RemoveItem удаляет позицию черновика.
func (s *ProposalService) RemoveItem(ctx context.Context, userID, proposalID, itemID uuid.UUID) (*models.ProposalTotals, error) {
	if _, err := s.editable(ctx, userID, proposalID); err != nil {
		return nil, err
	}
	totals, err := s.repo.RemoveItem(ctx, proposalID, itemID)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Deleted("proposal_items", map[string]uuid.UUID{"id": itemID, "proposal_id": proposalID}))
	return totals, nil
}

// RecalculateTotal пересчитывает итоги по текущим позициям.
func (s *ProposalService) RecalculateTotal(ctx context.Context, userID, id uuid.UUID) (*models.ProposalTotals, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.repo.Recalculate(ctx, id)
}

// SendProposal отправляет черновик клиенту и выдаёт публичный токен.
func (s *ProposalService) SendProposal(ctx context.Context, userID, id uuid.UUID) (*models.Proposal, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalStatusDraft {
		return nil, apperror.Conflict("отправить можно только черновик")
	}

	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperror.Validation("нельзя отправить предложение без позиций")
	}
	if p.IsExpired(s.now()) {
		return nil, apperror.Validation("срок действия предложения уже истёк")
	}

	token, err := idgen.Token()
	if err != nil {
		return nil, apperror.Internal(err)
	}

	sent, err := s.repo.MarkSent(ctx, id, token, s.now().UTC())
	if err != nil {
		return nil, err
	}
	sent.Items = items

	s.events.Emit(ctx, userID, events.Updated(tableProposals, sent, p))
	return sent, nil
}

// ViewByToken открывает предложение по публичной ссылке.
func (s *ProposalService) ViewByToken(ctx context.Context, token string) (*models.Proposal, error) {
	p, err := s.shared(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.expireIfOverdue(ctx, p) {
		return s.withDetails(ctx, p)
	}

	viewed, err := s.repo.RegisterView(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if viewed.Status != p.Status {
		s.events.Emit(ctx, p.UserID, events.Updated(tableProposals, viewed, p))
	}
	return s.withDetails(ctx, viewed)
}

// SignByToken принимает предложение подписью клиента.
func (s *ProposalService) SignByToken(ctx context.Context, token string, req dto.SignProposalRequest, ip string) (*models.Proposal, error) {
	if err := requireText(req.SignerName, "укажите имя подписанта"); err != nil {
		return nil, err
	}
	if err := requireText(req.SignatureData, "подпись обязательна"); err != nil {
		return nil, err
	}
	signerEmail, err := validation.NormalizeEmail(req.SignerEmail)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	p, err := s.shared(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.expireIfOverdue(ctx, p) {
		return nil, apperror.Gone("срок действия предложения истёк")
	}

	sig := &models.ProposalSignature{
		ProposalID:    p.ID,
		SignerName:    strings.TrimSpace(req.SignerName),
		SignerEmail:   signerEmail,
		SignatureData: req.SignatureData,
		SignedAt:      s.now().UTC(),
	}
	if ip != "" {
		sig.IPAddress = &ip
	}

	accepted, err := s.repo.Sign(ctx, sig)
	if err != nil {
		return nil, err
	}
	accepted.Signature = sig

	s.events.Emit(ctx, p.UserID, events.Updated(tableProposals, accepted, p))
	s.events.Emit(ctx, p.UserID, events.Inserted("proposal_signatures", sig))
	return accepted, nil
}

// DeclineByToken отклоняет предложение по публичной ссылке.
func (s *ProposalService) DeclineByToken(ctx context.Context, token, reason string) (*models.Proposal, error) {
	p, err := s.shared(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.expireIfOverdue(ctx, p) {
		return nil, apperror.Gone("срок действия предложения истёк")
	}

	declined, err := s.repo.TransitionStatus(ctx, p.ID,
		[]string{models.ProposalStatusSent, models.ProposalStatusViewed}, models.ProposalStatusDeclined)
	if err != nil {
		return nil, err
	}

	change := events.Updated(tableProposals, declined, p)
	if reason = strings.TrimSpace(reason); reason != "" {
		change.Record = map[string]any{"proposal": declined, "reason": reason}
	}
	s.events.Emit(ctx, p.UserID, change)
	return declined, nil
}

// DuplicateProposal создаёт черновик-копию с теми же позициями.
func (s *ProposalService) DuplicateProposal(ctx context.Context, userID, id uuid.UUID) (*models.Proposal, error) {
	src, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	srcItems, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}

	cp := &models.Proposal{
		UserID:          userID,
		ClientName:      src.ClientName,
		ClientEmail:     src.ClientEmail,
		Title:           src.Title + " (копия)",
		Description:     src.Description,
		Status:          models.ProposalStatusDraft,
		Currency:        src.Currency,
		DiscountPercent: src.DiscountPercent,
		TaxRate:         src.TaxRate,
		Notes:           src.Notes,
	}
	items := make([]models.ProposalItem, len(srcItems))
	for i, it := range srcItems {
		items[i] = models.ProposalItem{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}

	if err := s.repo.Create(ctx, cp, items); err != nil {
		return nil, err
	}
	cp.Items = items

	s.events.Emit(ctx, userID, events.Inserted(tableProposals, cp))
	return cp, nil
}

// ExpireOverdue переводит просроченные предложения в expired.
func (s *ProposalService) ExpireOverdue(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	for i := range expired {
		s.events.Emit(ctx, expired[i].UserID, events.Updated(tableProposals, &expired[i], nil))
	}
	return len(expired), nil
}

// Stats считает воронку предложений пользователя.
func (s *ProposalService) Stats(ctx context.Context, userID uuid.UUID) (*models.ProposalStats, error) {
	rows, err := s.repo.StatusTotals(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &models.ProposalStats{ByStatus: map[string]int{}}
	responded := 0
	for _, r := range rows {
		stats.Total += r.Count
		stats.ByStatus[r.Status] = r.Count
		switch r.Status {
		case models.ProposalStatusAccepted:
			stats.AcceptedValue += r.Amount
			responded += r.Count
		case models.ProposalStatusDeclined, models.ProposalStatusExpired:
			responded += r.Count
		case models.ProposalStatusSent, models.ProposalStatusViewed:
			stats.PipelineValue += r.Amount
		}
	}
	stats.AcceptedValue = round2(stats.AcceptedValue)
	stats.PipelineValue = round2(stats.PipelineValue)
	if responded > 0 {
		stats.AcceptanceRate = round2(float64(stats.ByStatus[models.ProposalStatusAccepted]) / float64(responded) * 100)
	}
	return stats, nil
}

func (s *ProposalService) owned(ctx context.Context, userID, id uuid.UUID) (*models.Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, apperror.ErrProposalNotFound
	}
	return p, nil
}

func (s *ProposalService) editable(ctx context.Context, userID, id uuid.UUID) (*models.Proposal, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalStatusDraft {
		return nil, apperror.Conflict("изменять можно только черновик предложения")
	}
	return p, nil
}

// shared находит предложение по токену; черновики по ссылке недоступны.
func (s *ProposalService) shared(ctx context.Context, token string) (*models.Proposal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperror.ErrProposalNotFound
	}
	p, err := s.repo.GetByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if p.Status == models.ProposalStatusDraft {
		return nil, apperror.ErrProposalNotFound
	}
	return p, nil
}

// expireIfOverdue помечает просроченное предложение, возвращает true, если срок истёк.
func (s *ProposalService) expireIfOverdue(ctx context.Context, p *models.Proposal) bool {
	if p.Status == models.ProposalStatusExpired {
		return true
	}
	if !p.IsExpired(s.now()) {
		return false
	}
	if p.Status != models.ProposalStatusSent && p.Status != models.ProposalStatusViewed {
		return false
	}

	expired, err := s.repo.TransitionStatus(ctx, p.ID,
		[]string{models.ProposalStatusSent, models.ProposalStatusViewed}, models.ProposalStatusExpired)
	if err == nil {
		s.events.Emit(ctx, p.UserID, events.Updated(tableProposals, expired, p))
		*p = *expired
	}
	return true
}

func (s *ProposalService) withDetails(ctx context.Context, p *models.Proposal) (*models.Proposal, error) {
	items, err := s.repo.ListItems(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	sig, err := s.repo.GetSignature(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	p.Signature = sig
	return p, nil
}

func validateProposal(req dto.ProposalRequest) error {
	if err := requireText(req.ClientName, "укажите клиента"); err != nil {
		return err
	}
	if err := requireText(req.Title, "укажите название предложения"); err != nil {
		return err
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		return apperror.Validation("скидка должна быть от 0 до 100%")
	}
	if req.TaxRate < 0 || req.TaxRate > 100 {
		return apperror.Validation("ставка налога должна быть от 0 до 100%")
	}
	for _, it := range req.Items {
		if err := validateItem(it); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(req dto.ProposalItemRequest) error {
	if err := requireText(req.Description, "укажите описание позиции"); err != nil {
		return err
	}
	if req.Quantity <= 0 {
		return apperror.Validation("количество должно быть больше нуля")
	}
	if req.UnitPrice < 0 {
		return apperror.Validation("цена не может быть отрицательной")
	}
	return nil
}

func applyProposalRequest(p *models.Proposal, req dto.ProposalRequest) {
	p.ClientName = strings.TrimSpace(req.ClientName)
	p.ClientEmail = optionalString(req.ClientEmail)
	p.Title = strings.TrimSpace(req.Title)
	p.Description = optionalString(req.Description)
	p.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if p.Currency == "" {
		p.Currency = "USD"
	}
	p.DiscountPercent = req.DiscountPercent
	p.TaxRate = req.TaxRate
	p.ValidUntil = req.ValidUntil
	p.Notes = optionalString(req.Notes)
}
