// Vocata Webhook — голосовой сервер: отвечает на callbacks оператора
// связи XML-документами и ведёт звонок по графу обзвона.
//
// Сервер stateless: всё продолжение звонка закодировано в URL
// следующего callback'а, любая реплика может обслуживаться любой
// репликой процесса.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Vocata/internal/ai"
	"github.com/shaiso/Vocata/internal/api"
	"github.com/shaiso/Vocata/internal/dialer"
	"github.com/shaiso/Vocata/internal/dispatch"
	"github.com/shaiso/Vocata/internal/mq"
	"github.com/shaiso/Vocata/internal/repo"
	"github.com/shaiso/Vocata/internal/telemetry"
	"github.com/shaiso/Vocata/internal/vars"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vocata_webhook_health_requests_total",
		Help: "Total health check requests handled by vocata-webhook",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting vocata-webhook")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	deviceRepo := repo.NewDeviceRepo(pool)
	flowRepo := repo.NewFlowRepo(pool)
	campaignRepo := repo.NewCampaignRepo(pool)
	logRepo := repo.NewCampaignLogRepo(pool)
	varRepo := repo.NewVarRepo(pool)
	transcriptRepo := repo.NewTranscriptRepo(pool)
	responseRepo := repo.NewResponseRepo(pool)

	// RabbitMQ: SMS-задания и события завершения звонков.
	// Без очереди SEND_MSG теряется, продвижение кампаний идёт по тикам.
	var events dialer.EventPublisher
	var smsQueue dispatch.SMSPublisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running without queue", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(context.Background(), mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher := mq.NewPublisher(mqConn, logger)
		events = publisher
		smsQueue = publisher
	}

	// Продвижение кампаний разделено с обзвонщиком: HANGUP и фатальные
	// ошибки закрывают цель и двигают очередь прямо из вебхука.
	advancer := dialer.NewAdvancer(logRepo, campaignRepo, events, logger)

	turns := ai.NewTurnHandler(transcriptRepo, logger)
	dispatcher := dispatch.NewDispatcher(varRepo, responseRepo, smsQueue, turns, advancer, logger)

	handler := api.NewHandler(api.Config{
		Devices:    deviceRepo,
		Flows:      flowRepo,
		Campaigns:  campaignRepo,
		Logs:       logRepo,
		Responses:  responseRepo,
		Vars:       vars.NewBuilder(varRepo),
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем маршруты вебхуков и management API
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("WEBHOOK_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
