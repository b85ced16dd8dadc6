package dialer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Vocata/internal/carrier"
	"github.com/shaiso/Vocata/internal/dispatch"
	"github.com/shaiso/Vocata/internal/domain"
	"github.com/shaiso/Vocata/internal/mq"
	"github.com/shaiso/Vocata/internal/repo"
	"github.com/shaiso/Vocata/internal/telemetry"
)

const (
	// defaultPeriod — период тика account-loop'а.
	defaultPeriod = 5 * time.Second

	// defaultStuckAfter — порог watchdog'а: цель в STARTED дольше
	// этого закрывается как DISCONNECTED.
	defaultStuckAfter = 30 * time.Minute
)

// DeviceStore — доступ к линиям, нужный обзвонщику.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
}

// Dialer — планировщик обзвона: держит по одному loop'у на аккаунт
// с активными кампаниями и продвигает каждую кампанию строго по
// одной цели за раз.
type Dialer struct {
	campaigns CampaignStore
	logs      LogStore
	devices   DeviceStore
	caller    carrier.Dialer
	advancer  *Advancer
	logger    *slog.Logger

	// baseURL — публичный адрес webhook-бинаря, на который оператор
	// шлёт callbacks.
	baseURL string

	period     time.Duration
	stuckAfter time.Duration

	mu    sync.Mutex
	loops map[string]chan struct{} // account id → poke-канал loop'а
}

// Config — конфигурация Dialer.
type Config struct {
	Campaigns CampaignStore
	Logs      LogStore
	Devices   DeviceStore
	Caller    carrier.Dialer
	Advancer  *Advancer
	Logger    *slog.Logger

	BaseURL string

	Period     time.Duration // default: 5s
	StuckAfter time.Duration // default: 30m
}

// New создаёт новый Dialer.
func New(cfg Config) *Dialer {
	period := cfg.Period
	if period <= 0 {
		period = defaultPeriod
	}
	stuckAfter := cfg.StuckAfter
	if stuckAfter <= 0 {
		stuckAfter = defaultStuckAfter
	}

	return &Dialer{
		campaigns:  cfg.Campaigns,
		logs:       cfg.Logs,
		devices:    cfg.Devices,
		caller:     cfg.Caller,
		advancer:   cfg.Advancer,
		logger:     cfg.Logger,
		baseURL:    cfg.BaseURL,
		period:     period,
		stuckAfter: stuckAfter,
		loops:      make(map[string]chan struct{}),
	}
}

// Run — главный цикл: раз в период находит аккаунты с активными
// кампаниями и поднимает для новых account-loop'ы. Loop'ы гаснут
// сами, когда у аккаунта не остаётся работы.
//
// Вызывается только лидером (pg advisory lock берётся в main).
func (d *Dialer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		accounts, err := d.campaigns.AccountsWithActive(ctx)
		if err != nil {
			d.logger.Error("list accounts with active campaigns", "error", err)
		} else {
			for _, account := range accounts {
				d.ensureLoop(ctx, account)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ensureLoop поднимает account-loop, если его ещё нет.
func (d *Dialer) ensureLoop(ctx context.Context, account string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.loops[account]; ok {
		return
	}

	poke := make(chan struct{}, 1)
	d.loops[account] = poke

	go d.accountLoop(ctx, account, poke)
	d.logger.Info("account loop started", "account", account)
}

// dropLoop снимает loop аккаунта с учёта.
func (d *Dialer) dropLoop(account string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.loops, account)
}

// Poke будит loop аккаунта, не дожидаясь тика. Нет loop'а — нет работы.
func (d *Dialer) Poke(account string) {
	d.mu.Lock()
	poke, ok := d.loops[account]
	d.mu.Unlock()
	if !ok {
		return
	}
	select {
	case poke <- struct{}{}:
	default:
	}
}

// accountLoop — явный цикл одного аккаунта: тик раз в период либо
// по poke-сигналу; останавливается, когда активных кампаний нет.
func (d *Dialer) accountLoop(ctx context.Context, account string, poke <-chan struct{}) {
	defer d.dropLoop(account)

	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		active, err := d.tickAccount(ctx, account)
		if err != nil {
			d.logger.Error("account tick failed", "account", account, "error", err)
		} else if !active {
			d.logger.Info("account loop stopped: no active campaigns", "account", account)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-poke:
		}
	}
}

// tickAccount выполняет один тик по всем активным кампаниям аккаунта.
// Возвращает false, когда активных кампаний не осталось.
func (d *Dialer) tickAccount(ctx context.Context, account string) (bool, error) {
	telemetry.DialerTicks.Inc()

	campaigns, err := d.campaigns.ActiveForAccount(ctx, account)
	if err != nil {
		return true, err
	}
	if len(campaigns) == 0 {
		return false, nil
	}

	now := time.Now()
	for i := range campaigns {
		if err := d.tickCampaign(ctx, &campaigns[i], now); err != nil {
			d.logger.Error("campaign tick failed",
				"campaign", campaigns[i].ID,
				"error", err,
			)
			// остальные кампании аккаунта обрабатываются дальше
		}
	}
	return true, nil
}

// tickCampaign продвигает одну кампанию на один шаг:
//
//  1. активная цель в STARTED — проверить watchdog;
//  2. активная цель в CALLING — набрать звонок;
//  3. активных нет — продвинуть следующую INITIATED либо закрыть
//     кампанию.
//
// Окно обзвона ограничивает только набор (шаги 2–3); watchdog
// работает всегда.
func (d *Dialer) tickCampaign(ctx context.Context, campaign *domain.Campaign, now time.Time) error {
	window, err := ParseWindow(campaign.WindowExpr)
	if err != nil {
		return err
	}

	entry, err := d.logs.FirstActive(ctx, campaign.ID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		if !window.Contains(now) {
			return nil
		}
		return d.promote(ctx, campaign)
	case err != nil:
		return err
	}

	switch entry.Status {
	case domain.LogStarted:
		if entry.StuckFor(now) >= d.stuckAfter {
			d.logger.Warn("reclaiming stuck call",
				"campaign", campaign.ID,
				"log", entry.ID,
				"stuck_for", entry.StuckFor(now),
			)
			telemetry.WatchdogReclaims.Inc()
			return d.advancer.Advance(ctx, entry.ID, domain.LogDisconnected)
		}
		// звонок идёт, ждём вебхуков
		return nil

	case domain.LogCalling:
		if !window.Contains(now) {
			return nil
		}
		return d.originate(ctx, campaign, entry)

	default:
		return nil
	}
}

// promote переводит следующую цель в CALLING; набор произойдёт на
// этом же проходе следующего тика. Пустая очередь закрывает кампанию.
func (d *Dialer) promote(ctx context.Context, campaign *domain.Campaign) error {
	entry, err := d.logs.PromoteNext(ctx, campaign.ID)
	if errors.Is(err, repo.ErrNotFound) {
		if err := d.campaigns.Complete(ctx, campaign.ID); err != nil && !errors.Is(err, repo.ErrInvalidState) {
			return err
		}
		d.logger.Info("campaign completed", "campaign", campaign.ID)
		return nil
	}
	if err != nil {
		return err
	}

	d.logger.Info("campaign target promoted",
		"campaign", campaign.ID,
		"log", entry.ID,
		"to", entry.CallTo,
	)
	return nil
}

// originate набирает звонок для цели в CALLING и CAS-ом переводит
// её в STARTED.
func (d *Dialer) originate(ctx context.Context, campaign *domain.Campaign, entry *domain.CampaignLog) error {
	logger := telemetry.WithCampaign(d.logger, campaign.ID.String())

	device, err := d.devices.GetByID(ctx, campaign.DeviceID)
	if err != nil {
		logger.Error("campaign device not found", "device", campaign.DeviceID)
		return d.advancer.Advance(ctx, entry.ID, StatusDeviceNotFound)
	}
	if device.OutboundFlowID == "" {
		logger.Error("campaign device has no outbound flow", "device", device.ID)
		return d.advancer.Advance(ctx, entry.ID, StatusNoOutboundFlow)
	}

	token := dispatch.Continuation{
		Device:        device.ID,
		CampaignLogID: entry.ID,
	}
	voiceURL := d.baseURL + token.EntryURL()

	callSID, err := d.caller.Dial(ctx, device, entry.CallTo, voiceURL)
	if err != nil {
		logger.Error("dial failed", "to", entry.CallTo, "error", err)
		return d.advancer.Advance(ctx, entry.ID, StatusDialFailed)
	}

	if err := d.logs.MarkStarted(ctx, entry.ID, callSID); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			// конкурирующий тик уже стартовал цель
			logger.Debug("target already started", "log", entry.ID)
			return nil
		}
		return err
	}

	telemetry.CallsOriginated.Inc()
	logger.Info("call originated",
		"log", entry.ID,
		"to", entry.CallTo,
		"call_sid", callSID,
	)
	return nil
}

// HandleCallFinished — mq.Handler для calls.events: будит loop
// аккаунта, чтобы очередь продвинулась без ожидания тика.
func (d *Dialer) HandleCallFinished(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.CallFinishedPayload](&delivery.Message)
	if err != nil {
		return err
	}

	campaign, err := d.campaigns.GetByID(ctx, payload.CampaignID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}

	d.Poke(campaign.AccountID)
	return nil
}
