package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Vocata/internal/domain"
	"github.com/shaiso/Vocata/internal/mq"
	"github.com/shaiso/Vocata/internal/repo"
)

// LogStore — операции над целями кампаний, нужные обзвонщику.
type LogStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CampaignLog, error)
	FirstActive(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignLog, error)
	PromoteNext(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignLog, error)
	MarkStarted(ctx context.Context, id uuid.UUID, callSID string) error
	MarkTerminal(ctx context.Context, id uuid.UUID, status domain.LogStatus) error
	CountRemaining(ctx context.Context, campaignID uuid.UUID) (int, error)
}

// CampaignStore — операции над кампаниями, нужные обзвонщику.
type CampaignStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	ActiveForAccount(ctx context.Context, accountID string) ([]domain.Campaign, error)
	AccountsWithActive(ctx context.Context) ([]string, error)
	Complete(ctx context.Context, id uuid.UUID) error
}

// EventPublisher — публикация событий жизненного цикла звонков.
type EventPublisher interface {
	PublishCallFinished(ctx context.Context, payload mq.CallFinishedPayload) error
}

// Advancer закрывает цель кампании и продвигает очередь.
//
// Вызывается из двух мест: диспетчером при HANGUP/ошибке звонка
// и обзвонщиком из watchdog'а. Все переходы — conditional update,
// поэтому конкурирующие вызовы безопасны: проигравший ничего
// не перезапишет.
type Advancer struct {
	logs      LogStore
	campaigns CampaignStore
	events    EventPublisher
	logger    *slog.Logger
}

// NewAdvancer создаёт новый Advancer. events может быть nil.
func NewAdvancer(logs LogStore, campaigns CampaignStore, events EventPublisher, logger *slog.Logger) *Advancer {
	return &Advancer{
		logs:      logs,
		campaigns: campaigns,
		events:    events,
		logger:    logger,
	}
}

// Advance закрывает цель терминальным статусом и продвигает очередь
// кампании: следующая INITIATED цель становится CALLING; если целей
// не осталось, кампания закрывается.
func (a *Advancer) Advance(ctx context.Context, logID uuid.UUID, status domain.LogStatus) error {
	entry, err := a.logs.GetByID(ctx, logID)
	if err != nil {
		return fmt.Errorf("load campaign log: %w", err)
	}

	if err := a.logs.MarkTerminal(ctx, logID, status); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			// конкурент уже закрыл цель и продвинул очередь
			a.logger.Debug("campaign log already closed", "log", logID)
			return nil
		}
		return fmt.Errorf("mark terminal: %w", err)
	}

	a.publishFinished(ctx, entry.CampaignID, logID, status)

	if _, err := a.logs.PromoteNext(ctx, entry.CampaignID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("promote next: %w", err)
		}

		remaining, err := a.logs.CountRemaining(ctx, entry.CampaignID)
		if err != nil {
			return fmt.Errorf("count remaining: %w", err)
		}
		if remaining == 0 {
			if err := a.campaigns.Complete(ctx, entry.CampaignID); err != nil && !errors.Is(err, repo.ErrInvalidState) {
				return fmt.Errorf("complete campaign: %w", err)
			}
			a.logger.Info("campaign completed", "campaign", entry.CampaignID)
		}
	}
	return nil
}

// Finish — Advance без возврата ошибки: вызывающему (диспетчеру)
// нечего делать с ошибкой продвижения, звонок уже отвечен.
func (a *Advancer) Finish(ctx context.Context, logID uuid.UUID, status domain.LogStatus) {
	if err := a.Advance(ctx, logID, status); err != nil {
		a.logger.Error("campaign advance failed", "log", logID, "status", status, "error", err)
	}
}

func (a *Advancer) publishFinished(ctx context.Context, campaignID, logID uuid.UUID, status domain.LogStatus) {
	if a.events == nil {
		return
	}
	payload := mq.CallFinishedPayload{
		CampaignID:    campaignID,
		CampaignLogID: logID,
		Status:        string(status),
	}
	if err := a.events.PublishCallFinished(ctx, payload); err != nil {
		a.logger.Warn("publish call.finished failed", "log", logID, "error", err)
	}
}
