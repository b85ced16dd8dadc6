package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vocata/internal/domain"
)

// TranscriptRepo — append-only хранилище реплик AI-сессий.
type TranscriptRepo struct {
	pool *pgxpool.Pool
}

// NewTranscriptRepo создаёт новый TranscriptRepo.
func NewTranscriptRepo(pool *pgxpool.Pool) *TranscriptRepo {
	return &TranscriptRepo{pool: pool}
}

// Append дописывает реплику в конец transcript сессии.
func (r *TranscriptRepo) Append(ctx context.Context, session string, turn domain.Turn) error {
	query := `
		INSERT INTO ai_transcripts (session, role, content, created_at)
		VALUES ($1, $2, $3, now())
	`
	if _, err := r.pool.Exec(ctx, query, session, turn.Role, turn.Content); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Tail возвращает последние n реплик сессии в хронологическом порядке.
// n <= 0 — все реплики.
func (r *TranscriptRepo) Tail(ctx context.Context, session string, n int) (domain.Transcript, error) {
	query := `
		SELECT role, content
		FROM ai_transcripts
		WHERE session = $1
		ORDER BY id DESC
	`
	args := []any{session}
	if n > 0 {
		query += ` LIMIT $2`
		args = append(args, n)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tail transcript: %w", err)
	}
	defer rows.Close()

	var reversed domain.Transcript
	for rows.Next() {
		var turn domain.Turn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		reversed = append(reversed, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(domain.Transcript, len(reversed))
	for i, turn := range reversed {
		out[len(reversed)-1-i] = turn
	}
	return out, nil
}
