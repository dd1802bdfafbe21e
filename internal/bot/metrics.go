package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Экспортируются через GET /metrics. Основные вопросы, на которые
// отвечают метрики:
// - сколько алертов пришло и чем они закончились
// - сколько ордеров ушло на биржу и с какой латентностью
// - сколько позиций открыто прямо сейчас и какой реализованный PnL

// ============ Счётчики алертов ============

// AlertsReceived - входящие вебхук-алерты по типу и результату обработки
var AlertsReceived = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradehook",
		Subsystem: "webhook",
		Name:      "alerts_received_total",
		Help:      "Total number of webhook alerts received",
	},
	[]string{"type", "result"}, // type: entry, exit, cross_exit, ...; result: ok, rejected, error
)

// ============ Метрики ордеров ============

// OrdersPlaced - ордера, отправленные на биржу
var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradehook",
		Subsystem: "exchange",
		Name:      "orders_placed_total",
		Help:      "Total number of orders sent to the exchange",
	},
	[]string{"type", "side"}, // type: limit, market; side: buy, sell
)

// OrderLatency - латентность REST-вызова размещения ордера
var OrderLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradehook",
		Subsystem: "exchange",
		Name:      "order_latency_ms",
		Help:      "Order placement latency in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"type"},
)

// ============ Метрики состояния ============

// ActiveTrades - текущее число незакрытых сделок в реестре
var ActiveTrades = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradehook",
		Subsystem: "trading",
		Name:      "active_trades",
		Help:      "Current number of open trades",
	},
)

// RealizedPnl - накопленный реализованный PnL в USDT.
// Gauge, а не Counter: убыточные сделки уменьшают значение
var RealizedPnl = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradehook",
		Subsystem: "trading",
		Name:      "realized_pnl_usdt",
		Help:      "Cumulative realized PnL in USDT",
	},
)

// TradesClosed - завершённые сделки по причине выхода
var TradesClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradehook",
		Subsystem: "trading",
		Name:      "trades_closed_total",
		Help:      "Total number of closed trades",
	},
	[]string{"reason", "result"}, // result: profit, loss
)

// ForceExits - срабатывания двухбарного таймера
var ForceExits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradehook",
		Subsystem: "trading",
		Name:      "force_exits_total",
		Help:      "Number of trades closed by the two-bar force exit timer",
	},
	[]string{"outcome"}, // fired, skipped_signal, skipped_flat, skipped_profit
)

// ExitFallbacks - откаты лимитного выхода на маркет
var ExitFallbacks = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradehook",
		Subsystem: "trading",
		Name:      "exit_market_fallbacks_total",
		Help:      "Number of limit exits that fell back to a market order",
	},
)

// ============ Вспомогательные функции ============

// RecordAlert записывает входящий алерт
func RecordAlert(alertType, result string) {
	AlertsReceived.WithLabelValues(alertType, result).Inc()
}

// RecordOrder записывает отправленный ордер с латентностью
func RecordOrder(orderType, side string, latencyMs float64) {
	OrdersPlaced.WithLabelValues(orderType, side).Inc()
	OrderLatency.WithLabelValues(orderType).Observe(latencyMs)
}

// RecordTradeClosed записывает завершённую сделку
func RecordTradeClosed(reason string, pnl float64) {
	result := "profit"
	if pnl < 0 {
		result = "loss"
	}
	TradesClosed.WithLabelValues(reason, result).Inc()
	RealizedPnl.Add(pnl)
}

// UpdateActiveTrades обновляет счётчик активных сделок
func UpdateActiveTrades(count int) {
	ActiveTrades.Set(float64(count))
}

// RecordForceExit записывает исход двухбарного таймера
func RecordForceExit(outcome string) {
	ForceExits.WithLabelValues(outcome).Inc()
}
