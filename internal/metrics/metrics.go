package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// 数据库连接指标
	// ============================================
	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tipledger_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	DBConnectionOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tipledger_db_connection_open",
		Help: "Number of open database connections",
	})

	StoreApplyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tipledger_store_apply_duration_seconds",
		Help:    "Time spent persisting one committed changeset",
		Buckets: prometheus.DefBuckets,
	})

	// ============================================
	// 账本操作指标
	// ============================================
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipledger_operations_total",
			Help: "Ledger operations by name and result",
		},
		[]string{"operation", "result"},
	)

	LedgerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipledger_events_total",
			Help: "Committed ledger events by name",
		},
		[]string{"event"},
	)

	// ============================================
	// 结算指标
	// ============================================
	SettlementDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipledger_settlement_dispatched_total",
			Help: "Settlement requests published to the relayer bus",
		},
		[]string{"kind", "result"},
	)

	SettlementOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipledger_settlement_outcomes_total",
			Help: "Settlement outcomes reconciled, by operation and final status",
		},
		[]string{"operation", "status"},
	)

	SettlementPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tipledger_settlement_pending",
		Help: "Settlement requests waiting for an outcome",
	})

	SettlementRedeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tipledger_settlement_redeliveries_total",
		Help: "Pending settlement requests published again by the redelivery loop",
	})

	// ============================================
	// NATS 连接和消息指标
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tipledger_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipledger_nats_messages_received_total",
			Help: "Total number of NATS messages received",
		},
		[]string{"subject_kind"},
	)

	NATSMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipledger_nats_messages_failed_total",
			Help: "Total number of NATS messages failed to process",
		},
		[]string{"subject_kind", "error_type"},
	)

	// ============================================
	// 推送与外部服务
	// ============================================
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tipledger_websocket_clients",
		Help: "Connected event stream clients",
	})

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipledger_notifications_total",
			Help: "Telegram tip notifications by result",
		},
		[]string{"result"},
	)

	AuthResolverCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipledger_auth_resolver_calls_total",
			Help: "Authorization contract lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	AuthResolverDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tipledger_auth_resolver_duration_seconds",
		Help:    "NEAR RPC view call duration",
		Buckets: prometheus.DefBuckets,
	})
)

// Result 将错误转换为指标标签
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
