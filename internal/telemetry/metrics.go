package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики webhook-части.
var (
	// WebhookRequests — счётчик обработанных вебхуков по endpoint'у.
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocata_webhook_requests_total",
		Help: "Carrier webhooks handled, by endpoint",
	}, []string{"endpoint"})

	// NodeDispatches — счётчик выполненных узлов по типу и исходу.
	NodeDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vocata_node_dispatches_total",
		Help: "Flow nodes dispatched, by node type and outcome",
	}, []string{"type", "outcome"})
)

// Метрики планировщика обзвона.
var (
	// DialerTicks — счётчик тиков планировщика.
	DialerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vocata_dialer_ticks_total",
		Help: "Campaign dialer ticks executed",
	})

	// CallsOriginated — счётчик инициированных исходящих звонков.
	CallsOriginated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vocata_calls_originated_total",
		Help: "Outbound campaign calls originated",
	})

	// WatchdogReclaims — счётчик звонков, закрытых watchdog'ом.
	WatchdogReclaims = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vocata_watchdog_reclaims_total",
		Help: "Stuck STARTED entries forced to DISCONNECTED",
	})
)
