// Vocata Dialer — планировщик обзвона кампаний.
//
// Dialer:
//   - Держит по одному loop'у на аккаунт с активными кампаниями
//   - Продвигает каждую кампанию строго по одной цели за раз
//   - Закрывает watchdog'ом звонки, зависшие в STARTED
//   - Слушает calls.events, чтобы продвигаться без ожидания тика
//
// Одновременно обзванивает только один процесс: лидерство через
// pg advisory lock, остальные реплики ждут освобождения.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Vocata/internal/carrier"
	"github.com/shaiso/Vocata/internal/dialer"
	"github.com/shaiso/Vocata/internal/mq"
	"github.com/shaiso/Vocata/internal/repo"
	"github.com/shaiso/Vocata/internal/telemetry"
)

// dialerLockKey — ключ pg advisory lock лидерства обзвонщика.
const dialerLockKey int64 = 811235

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting vocata-dialer")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	deviceRepo := repo.NewDeviceRepo(pool)
	campaignRepo := repo.NewCampaignRepo(pool)
	logRepo := repo.NewCampaignLogRepo(pool)

	// RabbitMQ: события завершения звонков будят account-loop'ы.
	// Без очереди продвижение идёт только по тикам.
	var events dialer.EventPublisher
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in tick-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		events = mq.NewPublisher(mqConn, logger)
	}

	// Публичный адрес вебхук-сервера: на него оператор шлёт callbacks.
	baseURL := os.Getenv("WEBHOOK_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	d := dialer.New(dialer.Config{
		Campaigns: campaignRepo,
		Logs:      logRepo,
		Devices:   deviceRepo,
		Caller:    carrier.NewTwilio(logger),
		Advancer:  dialer.NewAdvancer(logRepo, campaignRepo, events, logger),
		Logger:    logger,
		BaseURL:   baseURL,
	})

	// Consumer calls.events: poke вместо ожидания следующего тика
	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   string(mq.QueueCallEvents),
			Handler: d.HandleCallFinished,
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("call events consumer stopped", "error", err)
			}
		}()
	}

	// Главный цикл выполняет только лидер
	go runAsLeader(ctx, pool, d, logger)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("DIALER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("vocata-dialer stopped")
}

// runAsLeader ждёт advisory lock и запускает цикл обзвона.
// Lock держится до конца жизни процесса: упавший лидер отпускает
// его вместе с сессией, и следующая реплика подхватывает работу.
func runAsLeader(ctx context.Context, pool *pgxpool.Pool, d *dialer.Dialer, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		var acquired bool
		if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", dialerLockKey).Scan(&acquired); err != nil {
			logger.Error("advisory lock attempt failed", "error", err)
		} else if acquired {
			defer pool.Exec(context.Background(), "select pg_advisory_unlock($1)", dialerLockKey)

			logger.Info("leadership acquired")
			if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dialer run failed", "error", err)
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
