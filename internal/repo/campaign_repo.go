package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vocata/internal/domain"
)

// CampaignRepo — репозиторий исходящих кампаний.
type CampaignRepo struct {
	pool *pgxpool.Pool
}

// NewCampaignRepo создаёт новый CampaignRepo.
func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

// Create создаёт кампанию.
func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	query := `
		INSERT INTO campaigns (id, account_id, device_id, name, window_expr, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.AccountID,
		c.DeviceID,
		c.Name,
		nullString(c.WindowExpr),
		c.Status,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// GetByID возвращает кампанию по ID.
func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `
		SELECT id, account_id, device_id, name, window_expr, status, created_at
		FROM campaigns
		WHERE id = $1
	`
	return scanCampaign(r.pool.QueryRow(ctx, query, id))
}

// ListByAccount возвращает кампании аккаунта (новые первыми).
func (r *CampaignRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Campaign, error) {
	query := `
		SELECT id, account_id, device_id, name, window_expr, status, created_at
		FROM campaigns
		WHERE account_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, accountID)
}

// ActiveForAccount возвращает незавершённые кампании аккаунта
// в порядке запуска.
func (r *CampaignRepo) ActiveForAccount(ctx context.Context, accountID string) ([]domain.Campaign, error) {
	query := `
		SELECT id, account_id, device_id, name, window_expr, status, created_at
		FROM campaigns
		WHERE account_id = $1 AND status = 'INITIATED'
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, accountID)
}

// AccountsWithActive возвращает аккаунты, у которых есть
// хотя бы одна незавершённая кампания.
func (r *CampaignRepo) AccountsWithActive(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT account_id
		FROM campaigns
		WHERE status = 'INITIATED'
		ORDER BY account_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("accounts with active campaigns: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		accounts = append(accounts, id)
	}
	return accounts, rows.Err()
}

// Complete переводит кампанию INITIATED → COMPLETED.
// ErrInvalidState — кампания уже завершена.
func (r *CampaignRepo) Complete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE campaigns
		SET status = 'COMPLETED'
		WHERE id = $1 AND status = 'INITIATED'
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("complete campaign: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// --- Helpers ---

func (r *CampaignRepo) list(ctx context.Context, query string, args ...any) ([]domain.Campaign, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// scanCampaign сканирует одну строку в Campaign.
func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	var windowExpr *string

	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&c.DeviceID,
		&c.Name,
		&windowExpr,
		&c.Status,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}

	if windowExpr != nil {
		c.WindowExpr = *windowExpr
	}
	return &c, nil
}
