package models

import (
	"strings"
	"time"
)

// Key идентифицирует сделку: один символ может торговаться
// на нескольких таймфреймах независимо
type Key struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"` // нормализованный ("1m", "15m", "1h", ...)
}

// Trade представляет runtime состояние одной сделки
type Trade struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Side     string `json:"side"`  // "buy" (long) или "sell" (short)
	State    string `json:"state"` // PENDING_ENTRY, ENTRY_FILLED, EXIT_PENDING, CLOSED

	// Входной ордер
	OrderID    string    `json:"order_id"` // OrderIDPending до размещения на бирже
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	Quantity   float64   `json:"quantity"`

	// Флаги жизненного цикла
	EntryFilled        bool `json:"entry_filled"`         // запись один раз, наблюдателем заполнения
	ExitSignalReceived bool `json:"exit_signal_received"` // сигнальный выход опережает таймер
	ForceExitStarted   bool `json:"force_exit_started"`   // таймер принудительного выхода запущен

	// Результат (заполняется при закрытии)
	ExitPrice  float64   `json:"exit_price"`
	ExitReason string    `json:"exit_reason"`
	Pnl        float64   `json:"pnl"`         // реализованный PNL в USDT
	PnlPercent float64   `json:"pnl_percent"` // PNL относительно маржи позиции
	ClosedAt   time.Time `json:"closed_at"`
}

// Состояния сделки (state machine)
const (
	StatePendingEntry = "PENDING_ENTRY" // лимитный ордер размещён, ждём заполнения
	StateEntryFilled  = "ENTRY_FILLED"  // позиция открыта, ждём сигнала выхода
	StateExitPending  = "EXIT_PENDING"  // выход инициирован (сигнал или таймер)
	StateClosed       = "CLOSED"        // позиция закрыта, запись подлежит удалению
)

// OrderIDPending - placeholder до получения реального ID от биржи.
// Запись в леджере создаётся ДО размещения ордера, чтобы лимит
// активных сделок учитывал сделки в процессе открытия.
const OrderIDPending = "PENDING"

// Причины закрытия позиции (попадают в уведомления и отчёты)
const (
	ReasonForceExit    = "2-Bar Force Exit"
	ReasonExitSignal   = "Exit Signal"
	ReasonCrossExit    = "Cross Exit"
	ReasonOppositeExit = "Opposite Exit"
	ReasonSameSideExit = "Same Side Exit"
)

// IsLong возвращает true для длинной позиции
func (t *Trade) IsLong() bool {
	return t.Side == "buy"
}

// HasOpenPosition возвращает true если на бирже есть позиция по этой записи
func (t *Trade) HasOpenPosition() bool {
	return t.State == StateEntryFilled || t.State == StateExitPending
}

// ClosingSide возвращает сторону ордера, закрывающего позицию
func (t *Trade) ClosingSide() string {
	if t.Side == "buy" {
		return "sell"
	}
	return "buy"
}

// intervalAliases - нормализация интервалов из алертов TradingView.
// Алерты присылают интервал в минутах ("15", "60") или как "D",
// биржа и таймеры работают с канонической формой
var intervalAliases = map[string]string{
	"1":   "1m",
	"3":   "3m",
	"5":   "5m",
	"15":  "15m",
	"30":  "30m",
	"60":  "1h",
	"120": "2h",
	"240": "4h",
	"D":   "1d",
	"1D":  "1d",
	"1m":  "1m",
	"3m":  "3m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1h",
	"2h":  "2h",
	"4h":  "4h",
	"1d":  "1d",
}

// intervalDurations - длительность одного бара для каждого интервала
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// NormalizeInterval приводит интервал алерта к канонической форме.
// Пустой интервал трактуется как "1m", неизвестный пропускается
// как есть в нижнем регистре (таймер возьмёт длительность по умолчанию)
func NormalizeInterval(raw string) string {
	if raw == "" {
		return "1m"
	}
	if canonical, ok := intervalAliases[raw]; ok {
		return canonical
	}
	return strings.ToLower(raw)
}

// IntervalDuration возвращает длительность одного бара.
// Для неизвестного интервала - одна минута
func IntervalDuration(interval string) time.Duration {
	if d, ok := intervalDurations[interval]; ok {
		return d
	}
	return time.Minute
}
