package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Vocata/internal/dispatch"
	"github.com/shaiso/Vocata/internal/domain"
	"github.com/shaiso/Vocata/internal/vars"
)

// DeviceStore — доступ к линиям.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
}

// FlowStore — доступ к графам обзвона.
type FlowStore interface {
	Get(ctx context.Context, accountID, flowID string) (*domain.FlowGraph, error)
}

// CampaignStore — операции над кампаниями, нужные API.
type CampaignStore interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Campaign, error)
	Complete(ctx context.Context, id uuid.UUID) error
}

// LogStore — операции над целями кампаний, нужные API.
type LogStore interface {
	BulkCreate(ctx context.Context, logs []domain.CampaignLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CampaignLog, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.CampaignLog, error)
}

// ResponseStore — чтение собранных CAPTURE-записей.
type ResponseStore interface {
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.FlowResponse, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	devices    DeviceStore
	flows      FlowStore
	campaigns  CampaignStore
	logs       LogStore
	responses  ResponseStore
	vars       *vars.Builder
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Devices    DeviceStore
	Flows      FlowStore
	Campaigns  CampaignStore
	Logs       LogStore
	Responses  ResponseStore
	Vars       *vars.Builder
	Dispatcher *dispatch.Dispatcher
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		devices:    cfg.Devices,
		flows:      cfg.Flows,
		campaigns:  cfg.Campaigns,
		logs:       cfg.Logs,
		responses:  cfg.Responses,
		vars:       cfg.Vars,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}
}
