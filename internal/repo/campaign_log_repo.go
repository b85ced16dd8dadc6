package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vocata/internal/domain"
)

// CampaignLogRepo — репозиторий целей кампаний.
//
// Переходы статусов выполняются только conditional update'ами:
// конкурирующий тик или вебхук, проигравший гонку, получает
// ErrInvalidState и не затирает чужой переход.
type CampaignLogRepo struct {
	pool *pgxpool.Pool
}

// NewCampaignLogRepo создаёт новый CampaignLogRepo.
func NewCampaignLogRepo(pool *pgxpool.Pool) *CampaignLogRepo {
	return &CampaignLogRepo{pool: pool}
}

// BulkCreate вставляет цели кампании одной транзакцией.
// Порядок среза задаёт порядок обзвона (seq выдаётся последовательно).
func (r *CampaignLogRepo) BulkCreate(ctx context.Context, logs []domain.CampaignLog) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO campaign_logs (id, campaign_id, call_to, variables, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i := range logs {
		varsJSON, err := json.Marshal(logs[i].Variables)
		if err != nil {
			return fmt.Errorf("marshal variables: %w", err)
		}
		_, err = tx.Exec(ctx, query,
			logs[i].ID,
			logs[i].CampaignID,
			logs[i].CallTo,
			varsJSON,
			logs[i].Status,
			logs[i].CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert campaign log: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// GetByID возвращает цель по ID.
func (r *CampaignLogRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CampaignLog, error) {
	query := `
		SELECT id, campaign_id, call_to, variables, status, call_sid, started_at, created_at
		FROM campaign_logs
		WHERE id = $1
	`
	return scanCampaignLog(r.pool.QueryRow(ctx, query, id))
}

// FirstActive возвращает текущую активную цель кампании
// (CALLING или STARTED). ErrNotFound — активных нет.
func (r *CampaignLogRepo) FirstActive(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignLog, error) {
	query := `
		SELECT id, campaign_id, call_to, variables, status, call_sid, started_at, created_at
		FROM campaign_logs
		WHERE campaign_id = $1 AND status IN ('CALLING', 'STARTED')
		ORDER BY seq
		LIMIT 1
	`
	return scanCampaignLog(r.pool.QueryRow(ctx, query, campaignID))
}

// PromoteNext переводит самую раннюю цель INITIATED → CALLING
// и возвращает её. ErrNotFound — очередь кампании пуста.
//
// SKIP LOCKED защищает от двойного продвижения при конкурирующих
// тиках: вторая транзакция пропустит заблокированную строку и
// не найдёт кандидата.
func (r *CampaignLogRepo) PromoteNext(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignLog, error) {
	query := `
		UPDATE campaign_logs
		SET status = 'CALLING'
		WHERE id = (
			SELECT id FROM campaign_logs
			WHERE campaign_id = $1 AND status = 'INITIATED'
			ORDER BY seq
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		) AND status = 'INITIATED'
		RETURNING id, campaign_id, call_to, variables, status, call_sid, started_at, created_at
	`
	return scanCampaignLog(r.pool.QueryRow(ctx, query, campaignID))
}

// MarkStarted переводит цель CALLING → STARTED, фиксируя call SID
// и момент старта для watchdog'а. ErrInvalidState — цель уже не в CALLING.
func (r *CampaignLogRepo) MarkStarted(ctx context.Context, id uuid.UUID, callSID string) error {
	query := `
		UPDATE campaign_logs
		SET status = 'STARTED', call_sid = $2, started_at = now()
		WHERE id = $1 AND status = 'CALLING'
	`
	result, err := r.pool.Exec(ctx, query, id, callSID)
	if err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// MarkTerminal закрывает цель терминальным статусом (COMPLETED,
// DISCONNECTED или строка ошибки). Проходит только из активного
// статуса: уже закрытую цель повторное закрытие не трогает.
func (r *CampaignLogRepo) MarkTerminal(ctx context.Context, id uuid.UUID, status domain.LogStatus) error {
	query := `
		UPDATE campaign_logs
		SET status = $2
		WHERE id = $1 AND status IN ('INITIATED', 'CALLING', 'STARTED')
	`
	result, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("mark terminal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// CountRemaining возвращает число необзвонённых целей кампании.
func (r *CampaignLogRepo) CountRemaining(ctx context.Context, campaignID uuid.UUID) (int, error) {
	query := `
		SELECT count(*)
		FROM campaign_logs
		WHERE campaign_id = $1 AND status IN ('INITIATED', 'CALLING', 'STARTED')
	`
	var n int
	if err := r.pool.QueryRow(ctx, query, campaignID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count remaining: %w", err)
	}
	return n, nil
}

// ListByCampaign возвращает цели кампании в порядке обзвона.
func (r *CampaignLogRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.CampaignLog, error) {
	query := `
		SELECT id, campaign_id, call_to, variables, status, call_sid, started_at, created_at
		FROM campaign_logs
		WHERE campaign_id = $1
		ORDER BY seq
	`
	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list campaign logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.CampaignLog
	for rows.Next() {
		l, err := scanCampaignLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// Stuck возвращает цели, висящие в STARTED дольше olderThan.
// started_at персистентен, поэтому зависшие звонки находятся
// и после рестарта процесса.
func (r *CampaignLogRepo) Stuck(ctx context.Context, olderThan time.Duration) ([]domain.CampaignLog, error) {
	query := `
		SELECT id, campaign_id, call_to, variables, status, call_sid, started_at, created_at
		FROM campaign_logs
		WHERE status = 'STARTED' AND started_at < now() - $1::interval
		ORDER BY started_at
	`
	rows, err := r.pool.Query(ctx, query, olderThan.String())
	if err != nil {
		return nil, fmt.Errorf("list stuck logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.CampaignLog
	for rows.Next() {
		l, err := scanCampaignLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// scanCampaignLog сканирует одну строку в CampaignLog.
func scanCampaignLog(row pgx.Row) (*domain.CampaignLog, error) {
	var l domain.CampaignLog
	var varsJSON []byte
	var callSID *string

	err := row.Scan(
		&l.ID,
		&l.CampaignID,
		&l.CallTo,
		&varsJSON,
		&l.Status,
		&callSID,
		&l.StartedAt,
		&l.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign log: %w", err)
	}

	if varsJSON != nil {
		if err := json.Unmarshal(varsJSON, &l.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}
	if callSID != nil {
		l.CallSID = *callSID
	}
	return &l, nil
}
