package exchange

import (
	"context"
	"time"
)

// Client определяет интерфейс для работы с фьючерсной биржей (USDT-M)
type Client interface {
	// GetName возвращает имя биржи
	GetName() string

	// GetPrice получает текущую цену актива
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// PlaceLimitOrder размещает лимитный ордер GTC
	PlaceLimitOrder(ctx context.Context, symbol, side string, qty, price float64) (*Order, error)

	// PlaceMarketOrder размещает рыночный ордер
	PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*Order, error)

	// GetOrderStatus получает текущее состояние ордера
	GetOrderStatus(ctx context.Context, symbol, orderID string) (*Order, error)

	// CancelOrder отменяет ордер
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// GetPosition получает открытую позицию по символу (nil если позиции нет)
	GetPosition(ctx context.Context, symbol string) (*Position, error)

	// CountOpenPositions возвращает число открытых позиций на аккаунте
	CountOpenPositions(ctx context.Context) (int, error)

	// GetLastFills получает последние исполнения по символу (новые в конце)
	GetLastFills(ctx context.Context, symbol string, limit int) ([]Fill, error)

	// GetLimits получает торговые лимиты для символа (кэшируется)
	GetLimits(ctx context.Context, symbol string) (*Limits, error)

	// RoundQuantity приводит количество к шагу лота символа
	RoundQuantity(ctx context.Context, symbol string, qty float64) (float64, error)

	// SetLeverage устанавливает плечо для символа
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// SetMarginType устанавливает тип маржи ("ISOLATED" или "CROSSED")
	SetMarginType(ctx context.Context, symbol, marginType string) error
}

// Order представляет ордер
type Order struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"` // "buy" или "sell"
	Type         string    `json:"type"` // "market" или "limit"
	Price        float64   `json:"price"`
	Quantity     float64   `json:"quantity"`
	FilledQty    float64   `json:"filled_qty"`
	AvgFillPrice float64   `json:"avg_fill_price"`
	Status       string    `json:"status"` // см. OrderStatus* константы
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Position представляет открытую позицию
type Position struct {
	Symbol        string    `json:"symbol"`
	Amount        float64   `json:"amount"` // signed: >0 long, <0 short, 0 нет позиции
	EntryPrice    float64   `json:"entry_price"`
	MarkPrice     float64   `json:"mark_price"`
	Leverage      int       `json:"leverage"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsLong возвращает true для длинной позиции
func (p *Position) IsLong() bool {
	return p.Amount > 0
}

// Size возвращает абсолютный размер позиции
func (p *Position) Size() float64 {
	if p.Amount < 0 {
		return -p.Amount
	}
	return p.Amount
}

// Fill представляет одно исполнение (частичное или полное) ордера
type Fill struct {
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	RealizedPnl float64   `json:"realized_pnl"`
	Time        time.Time `json:"time"`
}

// Limits содержит торговые ограничения биржи
type Limits struct {
	Symbol      string  `json:"symbol"`
	MinOrderQty float64 `json:"min_order_qty"` // минимальный размер ордера
	MaxOrderQty float64 `json:"max_order_qty"` // максимальный размер ордера
	QtyStep     float64 `json:"qty_step"`      // шаг изменения количества (lot size)
	PriceStep   float64 `json:"price_step"`    // шаг изменения цены (tick size)
	MinNotional float64 `json:"min_notional"`  // минимальная сумма сделки в USDT
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Retryable сообщает retry-хелперу, имеет ли смысл повторять запрос.
// Отказ API (биржа вернула код ошибки) постоянен: недостаточная маржа
// или неверный объём не исправятся повтором. Транспортная ошибка без
// кода - временная
func (e *ExchangeError) Retryable() bool {
	return e.Code == "" && e.Original != nil
}

// Side constants for orders (используются при размещении ордеров)
const (
	SideBuy  = "buy"  // покупка (открытие long или закрытие short)
	SideSell = "sell" // продажа (открытие short или закрытие long)
)

// Order status constants (формат Binance)
const (
	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusRejected        = "REJECTED"
	OrderStatusExpired         = "EXPIRED"
)

// IsTerminalStatus возвращает true если ордер больше не изменится
func IsTerminalStatus(status string) bool {
	switch status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Margin type constants
const (
	MarginIsolated = "ISOLATED"
	MarginCrossed  = "CROSSED"
)
