package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/repository/common"
)

type ProposalRepository struct {
	db *sqlx.DB
}

func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// Create сохраняет предложение вместе с позициями и пересчитывает итоги в одной транзакции.
func (r *ProposalRepository) Create(ctx context.Context, p *models.Proposal, items []models.ProposalItem) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO proposals (user_id, client_name, client_email, title, description, status,
				currency, discount_percent, tax_rate, valid_until, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			p.UserID, p.ClientName, p.ClientEmail, p.Title, p.Description, p.Status,
			p.Currency, p.DiscountPercent, p.TaxRate, p.ValidUntil, p.Notes,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("proposal repository: create %w", err)
		}

		if len(items) > 0 {
			inserter := common.NewBatchInserter(tx,
				`INSERT INTO proposal_items (proposal_id, description, quantity, unit_price, amount, position)`, 6, 100)
			for i := range items {
				items[i].ProposalID = p.ID
				items[i].Position = i + 1
				items[i].Amount = roundItemAmount(items[i].Quantity, items[i].UnitPrice)
				if err := inserter.Add(ctx, p.ID, items[i].Description, items[i].Quantity,
					items[i].UnitPrice, items[i].Amount, items[i].Position); err != nil {
					return fmt.Errorf("proposal repository: create items %w", err)
				}
			}
			if err := inserter.Flush(ctx); err != nil {
				return fmt.Errorf("proposal repository: create items %w", err)
			}
		}

		totals, err := recalculateProposal(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		applyTotals(p, totals)
		return nil
	})
}

// GetByID возвращает предложение по ID.
func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return common.GetByID[models.Proposal](ctx, r.db, "proposals", id, apperror.ErrProposalNotFound)
}

// GetByShareToken возвращает предложение по публичному токену.
func (r *ProposalRepository) GetByShareToken(ctx context.Context, token string) (*models.Proposal, error) {
	var p models.Proposal
	err := r.db.GetContext(ctx, &p, `SELECT * FROM proposals WHERE share_token = $1`, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, fmt.Errorf("proposal repository: get by token %w", err)
	}
	return &p, nil
}

// ListItems возвращает позиции предложения по порядку.
func (r *ProposalRepository) ListItems(ctx context.Context, proposalID uuid.UUID) ([]models.ProposalItem, error) {
	items := []models.ProposalItem{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM proposal_items WHERE proposal_id = $1 ORDER BY position, id`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("proposal repository: list items %w", err)
	}
	return items, nil
}

// GetSignature возвращает подпись или nil, если предложение не подписано.
func (r *ProposalRepository) GetSignature(ctx context.Context, proposalID uuid.UUID) (*models.ProposalSignature, error) {
	var sig models.ProposalSignature
	err := r.db.GetContext(ctx, &sig,
		`SELECT * FROM proposal_signatures WHERE proposal_id = $1 ORDER BY signed_at DESC LIMIT 1`, proposalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("proposal repository: get signature %w", err)
	}
	return &sig, nil
}

// List возвращает предложения пользователя и общее количество.
func (r *ProposalRepository) List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Proposal, int, error) {
	var f common.Filter
	f.Add("user_id = ?", userID)
	if status != "" {
		f.Add("status = ?", status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM proposals`+f.Where(), f.Args()...); err != nil {
		return nil, 0, fmt.Errorf("proposal repository: count %w", err)
	}

	query, args := f.Page(`SELECT * FROM proposals`+f.Where()+` ORDER BY created_at DESC`, limit, offset)
	proposals := []models.Proposal{}
	if err := r.db.SelectContext(ctx, &proposals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("proposal repository: list %w", err)
	}
	return proposals, total, nil
}

// Update меняет редактируемые поля и пересчитывает итоги.
func (r *ProposalRepository) Update(ctx context.Context, p *models.Proposal) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE proposals SET client_name = $2, client_email = $3, title = $4, description = $5,
				currency = $6, discount_percent = $7, tax_rate = $8, valid_until = $9, notes = $10,
				updated_at = NOW()
			WHERE id = $1
		`, p.ID, p.ClientName, p.ClientEmail, p.Title, p.Description, p.Currency,
			p.DiscountPercent, p.TaxRate, p.ValidUntil, p.Notes)
		if err != nil {
			return fmt.Errorf("proposal repository: update %w", err)
		}
		if err := common.ExpectAffected(res, apperror.ErrProposalNotFound); err != nil {
			return err
		}

		totals, err := recalculateProposal(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		applyTotals(p, totals)
		return nil
	})
}

// Delete удаляет предложение владельца; позиции и подписи удаляются каскадно.
func (r *ProposalRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return common.DeleteOwned(ctx, r.db, "proposals", "user_id", id, userID, apperror.ErrProposalNotFound)
}

// AddItem добавляет позицию в конец списка и пересчитывает итоги.
func (r *ProposalRepository) AddItem(ctx context.Context, item *models.ProposalItem) (*models.ProposalTotals, error) {
	var totals *models.ProposalTotals
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		item.Amount = roundItemAmount(item.Quantity, item.UnitPrice)
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO proposal_items (proposal_id, description, quantity, unit_price, amount, position)
			VALUES ($1, $2, $3, $4, $5,
				(SELECT COALESCE(MAX(position), 0) + 1 FROM proposal_items WHERE proposal_id = $1))
			RETURNING id, position
		`, item.ProposalID, item.Description, item.Quantity, item.UnitPrice, item.Amount,
		).Scan(&item.ID, &item.Position); err != nil {
			return fmt.Errorf("proposal repository: add item %w", err)
		}

		var err error
		totals, err = recalculateProposal(ctx, tx, item.ProposalID)
		return err
	})
	return totals, err
}

// UpdateItem обновляет позицию и пересчитывает итоги.
func (r *ProposalRepository) UpdateItem(ctx context.Context, item *models.ProposalItem) (*models.ProposalTotals, error) {
	var totals *models.ProposalTotals
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		item.Amount = roundItemAmount(item.Quantity, item.UnitPrice)
		res, err := tx.ExecContext(ctx, `
			UPDATE proposal_items SET description = $3, quantity = $4, unit_price = $5, amount = $6
			WHERE id = $1 AND proposal_id = $2
		`, item.ID, item.ProposalID, item.Description, item.Quantity, item.UnitPrice, item.Amount)
		if err != nil {
			return fmt.Errorf("proposal repository: update item %w", err)
		}
		if err := common.ExpectAffected(res, apperror.ErrProposalItemNotFound); err != nil {
			return err
		}

		totals, err = recalculateProposal(ctx, tx, item.ProposalID)
		return err
	})
	return totals, err
}

// RemoveItem удаляет позицию и пересчитывает итоги.
func (r *ProposalRepository) RemoveItem(ctx context.Context, proposalID, itemID uuid.UUID) (*models.ProposalTotals, error) {
	var totals *models.ProposalTotals
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM proposal_items WHERE id = $1 AND proposal_id = $2`, itemID, proposalID)
		if err != nil {
			return fmt.Errorf("proposal repository: remove item %w", err)
		}
		if err := common.ExpectAffected(res, apperror.ErrProposalItemNotFound); err != nil {
			return err
		}

		totals, err = recalculateProposal(ctx, tx, proposalID)
		return err
	})
	return totals, err
}

// Recalculate пересчитывает и записывает итоги предложения.
func (r *ProposalRepository) Recalculate(ctx context.Context, proposalID uuid.UUID) (*models.ProposalTotals, error) {
	var totals *models.ProposalTotals
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		totals, err = recalculateProposal(ctx, tx, proposalID)
		return err
	})
	return totals, err
}

// MarkSent переводит черновик в отправленные.
func (r *ProposalRepository) MarkSent(ctx context.Context, id uuid.UUID, token string, sentAt time.Time) (*models.Proposal, error) {
	var p models.Proposal
	err := r.db.GetContext(ctx, &p, `
		UPDATE proposals SET status = 'sent', share_token = $2, sent_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
		RETURNING *
	`, id, token, sentAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Conflict("отправить можно только черновик")
		}
		return nil, fmt.Errorf("proposal repository: mark sent %w", err)
	}
	return &p, nil
}

// RegisterView увеличивает счётчик просмотров; первый просмотр переводит
// отправленное предложение в статус viewed.
func (r *ProposalRepository) RegisterView(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	var p models.Proposal
	err := r.db.GetContext(ctx, &p, `
		UPDATE proposals SET
			view_count = view_count + 1,
			status = CASE WHEN status = 'sent' THEN 'viewed' ELSE status END,
			viewed_at = COALESCE(viewed_at, NOW()),
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, fmt.Errorf("proposal repository: register view %w", err)
	}
	return &p, nil
}

// Sign сохраняет подпись и переводит предложение в accepted.
func (r *ProposalRepository) Sign(ctx context.Context, sig *models.ProposalSignature) (*models.Proposal, error) {
	var p models.Proposal
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &p, `
			UPDATE proposals SET status = 'accepted', responded_at = $2, updated_at = NOW()
			WHERE id = $1 AND status IN ('sent', 'viewed')
			RETURNING *
		`, sig.ProposalID, sig.SignedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.Conflict("предложение нельзя подписать в текущем статусе")
			}
			return fmt.Errorf("proposal repository: accept %w", err)
		}

		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO proposal_signatures (proposal_id, signer_name, signer_email, signature_data, ip_address, signed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, sig.ProposalID, sig.SignerName, sig.SignerEmail, sig.SignatureData, sig.IPAddress, sig.SignedAt,
		).Scan(&sig.ID); err != nil {
			return fmt.Errorf("proposal repository: insert signature %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TransitionStatus меняет статус, если текущий входит в from.
func (r *ProposalRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []string, to string) (*models.Proposal, error) {
	var p models.Proposal
	err := r.db.GetContext(ctx, &p, `
		UPDATE proposals SET status = $2,
			responded_at = CASE WHEN $2 IN ('accepted', 'declined') THEN NOW() ELSE responded_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING *
	`, id, to, pq.Array(from))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Conflict("недопустимый переход статуса предложения")
		}
		return nil, fmt.Errorf("proposal repository: transition %w", err)
	}
	return &p, nil
}

// ExpireOverdue помечает просроченные отправленные предложения как expired.
func (r *ProposalRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]models.Proposal, error) {
	expired := []models.Proposal{}
	err := r.db.SelectContext(ctx, &expired, `
		UPDATE proposals SET status = 'expired', updated_at = NOW()
		WHERE status IN ('sent', 'viewed') AND valid_until IS NOT NULL AND valid_until < $1
		RETURNING *
	`, now)
	if err != nil {
		return nil, fmt.Errorf("proposal repository: expire overdue %w", err)
	}
	return expired, nil
}

// StatusTotals агрегирует предложения пользователя по статусам.
func (r *ProposalRepository) StatusTotals(ctx context.Context, userID uuid.UUID) ([]models.StatusTotal, error) {
	rows := []models.StatusTotal{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(total), 0) AS amount
		FROM proposals WHERE user_id = $1 GROUP BY status
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("proposal repository: status totals %w", err)
	}
	return rows, nil
}

// recalculateProposal считает подытог по позициям и записывает итоги.
func recalculateProposal(ctx context.Context, tx *sqlx.Tx, proposalID uuid.UUID) (*models.ProposalTotals, error) {
	var row struct {
		Subtotal        float64 `db:"subtotal"`
		DiscountPercent float64 `db:"discount_percent"`
		TaxRate         float64 `db:"tax_rate"`
	}
	err := tx.GetContext(ctx, &row, `
		SELECT
			COALESCE((SELECT SUM(quantity * unit_price) FROM proposal_items WHERE proposal_id = $1), 0) AS subtotal,
			discount_percent, tax_rate
		FROM proposals WHERE id = $1
	`, proposalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProposalNotFound
		}
		return nil, fmt.Errorf("proposal repository: read totals %w", err)
	}

	totals := models.CalculateProposalTotals(row.Subtotal, row.DiscountPercent, row.TaxRate)
	if _, err := tx.ExecContext(ctx, `
		UPDATE proposals SET subtotal = $2, tax_amount = $3, total = $4, updated_at = NOW() WHERE id = $1
	`, proposalID, totals.Subtotal, totals.TaxAmount, totals.Total); err != nil {
		return nil, fmt.Errorf("proposal repository: write totals %w", err)
	}
	return &totals, nil
}

func applyTotals(p *models.Proposal, t *models.ProposalTotals) {
	p.Subtotal = t.Subtotal
	p.TaxAmount = t.TaxAmount
	p.Total = t.Total
}

func roundItemAmount(qty, price float64) float64 {
	return models.CalculateProposalTotals(qty*price, 0, 0).Subtotal
}
