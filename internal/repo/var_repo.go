package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VarRepo — хранилище контекстов переменных звонков по handle.
//
// Контекст живёт дольше одного вебхука: handle передаётся через
// continuation между запросами, а данные лежат в jsonb.
type VarRepo struct {
	pool *pgxpool.Pool
}

// NewVarRepo создаёт новый VarRepo.
func NewVarRepo(pool *pgxpool.Pool) *VarRepo {
	return &VarRepo{pool: pool}
}

// Get возвращает сохранённую map по handle.
func (r *VarRepo) Get(ctx context.Context, handle string) (map[string]any, error) {
	query := `
		SELECT data
		FROM temp_vars
		WHERE handle = $1
	`
	var dataJSON []byte
	err := r.pool.QueryRow(ctx, query, handle).Scan(&dataJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vars: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(dataJSON, &data); err != nil {
		return nil, fmt.Errorf("unmarshal vars: %w", err)
	}
	return data, nil
}

// Merge вливает data в контекст handle: новые ключи добавляются,
// существующие перезаписываются, остальные сохраняются.
// Несуществующий handle создаётся.
func (r *VarRepo) Merge(ctx context.Context, handle string, data map[string]any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal vars: %w", err)
	}

	query := `
		INSERT INTO temp_vars (handle, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (handle) DO UPDATE
		SET data = temp_vars.data || EXCLUDED.data, updated_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, handle, dataJSON); err != nil {
		return fmt.Errorf("merge vars: %w", err)
	}
	return nil
}

// Delete удаляет контекст handle. Отсутствие записи не ошибка.
func (r *VarRepo) Delete(ctx context.Context, handle string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM temp_vars WHERE handle = $1`, handle); err != nil {
		return fmt.Errorf("delete vars: %w", err)
	}
	return nil
}
