package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vocata/internal/domain"
)

// FlowRepo — репозиторий графов обзвона.
type FlowRepo struct {
	pool *pgxpool.Pool
}

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

// Get возвращает граф аккаунта по flow id.
func (r *FlowRepo) Get(ctx context.Context, accountID, flowID string) (*domain.FlowGraph, error) {
	query := `
		SELECT account_id, flow_id, version, nodes, edges
		FROM flows
		WHERE account_id = $1 AND flow_id = $2
	`
	var g domain.FlowGraph
	var nodesJSON, edgesJSON []byte
	err := r.pool.QueryRow(ctx, query, accountID, flowID).Scan(
		&g.AccountID,
		&g.FlowID,
		&g.Version,
		&nodesJSON,
		&edgesJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flow: %w", err)
	}

	if err := json.Unmarshal(nodesJSON, &g.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edgesJSON, &g.Edges); err != nil {
		return nil, fmt.Errorf("unmarshal edges: %w", err)
	}
	return &g, nil
}

// Save сохраняет граф, инкрементируя версию при обновлении.
func (r *FlowRepo) Save(ctx context.Context, g *domain.FlowGraph) error {
	nodesJSON, err := json.Marshal(g.Nodes)
	if err != nil {
		return fmt.Errorf("marshal nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(g.Edges)
	if err != nil {
		return fmt.Errorf("marshal edges: %w", err)
	}

	query := `
		INSERT INTO flows (account_id, flow_id, version, nodes, edges, updated_at)
		VALUES ($1, $2, 1, $3, $4, now())
		ON CONFLICT (account_id, flow_id) DO UPDATE
		SET version = flows.version + 1, nodes = $3, edges = $4, updated_at = now()
		RETURNING version
	`
	if err := r.pool.QueryRow(ctx, query, g.AccountID, g.FlowID, nodesJSON, edgesJSON).Scan(&g.Version); err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	return nil
}

// List возвращает графы аккаунта (без узлов и рёбер).
func (r *FlowRepo) List(ctx context.Context, accountID string) ([]domain.FlowGraph, error) {
	query := `
		SELECT account_id, flow_id, version
		FROM flows
		WHERE account_id = $1
		ORDER BY flow_id
	`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.FlowGraph
	for rows.Next() {
		var g domain.FlowGraph
		if err := rows.Scan(&g.AccountID, &g.FlowID, &g.Version); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		flows = append(flows, g)
	}
	return flows, rows.Err()
}
