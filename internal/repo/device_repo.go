package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Vocata/internal/domain"
)

// DeviceRepo — репозиторий линий оператора связи.
type DeviceRepo struct {
	pool *pgxpool.Pool
}

// NewDeviceRepo создаёт новый DeviceRepo.
func NewDeviceRepo(pool *pgxpool.Pool) *DeviceRepo {
	return &DeviceRepo{pool: pool}
}

// Create регистрирует линию.
func (r *DeviceRepo) Create(ctx context.Context, d *domain.Device) error {
	query := `
		INSERT INTO devices (id, account_id, sid, token, number,
		                     inbound_flow_id, outbound_flow_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		d.ID,
		d.AccountID,
		d.SID,
		d.Token,
		d.Number,
		nullString(d.InboundFlowID),
		nullString(d.OutboundFlowID),
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

// GetByID возвращает линию по ID.
func (r *DeviceRepo) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	query := `
		SELECT id, account_id, sid, token, number,
		       inbound_flow_id, outbound_flow_id, created_at
		FROM devices
		WHERE id = $1
	`
	return scanDevice(r.pool.QueryRow(ctx, query, id))
}

// ListByAccount возвращает линии аккаунта.
func (r *DeviceRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Device, error) {
	query := `
		SELECT id, account_id, sid, token, number,
		       inbound_flow_id, outbound_flow_id, created_at
		FROM devices
		WHERE account_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// scanDevice сканирует одну строку в Device.
func scanDevice(row pgx.Row) (*domain.Device, error) {
	var d domain.Device
	var inbound, outbound *string

	err := row.Scan(
		&d.ID,
		&d.AccountID,
		&d.SID,
		&d.Token,
		&d.Number,
		&inbound,
		&outbound,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan device: %w", err)
	}

	if inbound != nil {
		d.InboundFlowID = *inbound
	}
	if outbound != nil {
		d.OutboundFlowID = *outbound
	}
	return &d, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
