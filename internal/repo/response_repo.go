package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vocata/internal/domain"
)

// ResponseRepo — durable записи узлов CAPTURE.
type ResponseRepo struct {
	pool *pgxpool.Pool
}

// NewResponseRepo создаёт новый ResponseRepo.
func NewResponseRepo(pool *pgxpool.Pool) *ResponseRepo {
	return &ResponseRepo{pool: pool}
}

// Insert сохраняет захваченные данные.
func (r *ResponseRepo) Insert(ctx context.Context, resp *domain.FlowResponse) error {
	query := `
		INSERT INTO flow_responses (account_id, text, caller, called, digit, campaign_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		resp.AccountID,
		resp.Text,
		resp.Caller,
		resp.Called,
		resp.Digit,
		nullString(resp.CampaignID),
		resp.CreatedAt,
	).Scan(&resp.ID)
	if err != nil {
		return fmt.Errorf("insert flow response: %w", err)
	}
	return nil
}

// ListByAccount возвращает записи аккаунта (новые первыми).
func (r *ResponseRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.FlowResponse, error) {
	query := `
		SELECT id, account_id, text, caller, called, digit, campaign_id, created_at
		FROM flow_responses
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list flow responses: %w", err)
	}
	defer rows.Close()

	var responses []domain.FlowResponse
	for rows.Next() {
		var resp domain.FlowResponse
		var campaignID *string
		err := rows.Scan(
			&resp.ID,
			&resp.AccountID,
			&resp.Text,
			&resp.Caller,
			&resp.Called,
			&resp.Digit,
			&campaignID,
			&resp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan flow response: %w", err)
		}
		if campaignID != nil {
			resp.CampaignID = *campaignID
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}
