package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradehook/internal/config"
	"tradehook/internal/exchange"
	"tradehook/internal/models"
)

// mockExchange - управляемая заглушка биржи для тестов движка.
// Состояние (позиция, ордера, исполнения) задаётся напрямую,
// все вызовы записываются
type mockExchange struct {
	mu sync.Mutex

	price         float64
	position      *exchange.Position
	openPositions int
	fills         []exchange.Fill

	// clearPositionOnMarket: market-ордер убирает позицию
	// (имитация закрытия на бирже)
	clearPositionOnMarket bool

	// fillOrdersImmediately: статус любого ордера сразу FILLED
	fillOrdersImmediately bool

	// unfilledMarketOrders: столько первых market-ордеров умирают
	// со статусом CANCELED без заполнения
	unfilledMarketOrders int
	unfilled             map[string]bool

	// positionErrs: столько первых вызовов GetPosition падают с ошибкой
	placeLimitErr  error
	placeMarketErr error
	positionErrs   int

	nextID         int
	limitOrders    []*exchange.Order
	marketOrders   []*exchange.Order
	marketAttempts int
	canceled       []string
	leverageSet    []int
	marginSet      []string
}

func newMockExchange() *mockExchange {
	return &mockExchange{
		price:                 100,
		fillOrdersImmediately: true,
		unfilled:              make(map[string]bool),
	}
}

func (m *mockExchange) GetName() string { return "mock" }

func (m *mockExchange) GetPrice(_ context.Context, _ string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price, nil
}

func (m *mockExchange) newOrder(symbol, side, typ string, qty, price float64) *exchange.Order {
	m.nextID++
	return &exchange.Order{
		ID:        fmt.Sprintf("%d", m.nextID),
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Price:     price,
		Quantity:  qty,
		Status:    exchange.OrderStatusNew,
		CreatedAt: time.Now(),
	}
}

func (m *mockExchange) PlaceLimitOrder(_ context.Context, symbol, side string, qty, price float64) (*exchange.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placeLimitErr != nil {
		return nil, m.placeLimitErr
	}
	o := m.newOrder(symbol, side, "limit", qty, price)
	m.limitOrders = append(m.limitOrders, o)
	return o, nil
}

func (m *mockExchange) PlaceMarketOrder(_ context.Context, symbol, side string, qty float64) (*exchange.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketAttempts++
	if m.placeMarketErr != nil {
		return nil, m.placeMarketErr
	}
	o := m.newOrder(symbol, side, "market", qty, 0)
	m.marketOrders = append(m.marketOrders, o)
	if m.unfilledMarketOrders > 0 {
		// Ордер умрёт незаполненным - позиция остаётся
		m.unfilledMarketOrders--
		m.unfilled[o.ID] = true
		return o, nil
	}
	if m.clearPositionOnMarket {
		m.position = nil
	}
	return o, nil
}

func (m *mockExchange) GetOrderStatus(_ context.Context, symbol, orderID string) (*exchange.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range append(append([]*exchange.Order{}, m.limitOrders...), m.marketOrders...) {
		if o.ID == orderID {
			cp := *o
			if m.unfilled[orderID] {
				cp.Status = exchange.OrderStatusCanceled
				cp.FilledQty = 0
				return &cp, nil
			}
			if m.fillOrdersImmediately {
				cp.Status = exchange.OrderStatusFilled
				cp.FilledQty = cp.Quantity
				cp.AvgFillPrice = cp.Price
				if cp.AvgFillPrice == 0 {
					cp.AvgFillPrice = m.price
				}
			}
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("order %s not found", orderID)
}

func (m *mockExchange) CancelOrder(_ context.Context, _, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceled = append(m.canceled, orderID)
	return nil
}

func (m *mockExchange) GetPosition(_ context.Context, _ string) (*exchange.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.positionErrs > 0 {
		m.positionErrs--
		return nil, fmt.Errorf("position check unavailable")
	}
	if m.position == nil {
		return nil, nil
	}
	cp := *m.position
	return &cp, nil
}

func (m *mockExchange) CountOpenPositions(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPositions, nil
}

func (m *mockExchange) GetLastFills(_ context.Context, _ string, _ int) ([]exchange.Fill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]exchange.Fill, len(m.fills))
	copy(out, m.fills)
	return out, nil
}

func (m *mockExchange) GetLimits(_ context.Context, symbol string) (*exchange.Limits, error) {
	return &exchange.Limits{Symbol: symbol, MinOrderQty: 0.001, QtyStep: 0.001}, nil
}

func (m *mockExchange) RoundQuantity(_ context.Context, _ string, qty float64) (float64, error) {
	return qty, nil
}

func (m *mockExchange) SetLeverage(_ context.Context, _ string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leverageSet = append(m.leverageSet, leverage)
	return nil
}

func (m *mockExchange) SetMarginType(_ context.Context, _, marginType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marginSet = append(m.marginSet, marginType)
	return nil
}

func (m *mockExchange) limitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limitOrders)
}

func (m *mockExchange) marketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.marketOrders)
}

func (m *mockExchange) marketAttemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marketAttempts
}

// mockNotifier записывает уведомления
type mockNotifier struct {
	mu     sync.Mutex
	opened []models.Trade
	closed []models.ClosedTrade
}

func (n *mockNotifier) TradeOpened(trade models.Trade, _ int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, trade)
}

func (n *mockNotifier) TradeClosed(trade models.ClosedTrade) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, trade)
}

func (n *mockNotifier) openedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.opened)
}

func (n *mockNotifier) closedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.closed)
}

// testConfig возвращает конфигурацию с короткими таймаутами для тестов
func testConfig() *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{
			TradeAmount:           50,
			Leverage:              20,
			MarginType:            exchange.MarginIsolated,
			MaxActiveTrades:       5,
			ReplaceWaitTimeout:    500 * time.Millisecond,
			FillPollInterval:      10 * time.Millisecond,
			UseBarExtremesForExit: true,
			BarExitTimeout:        100 * time.Millisecond,
			ExitMarketDelay:       0,
			ForceExitPolicy:       config.ForceExitAlways,
			OppositeCloseDelay:    0,
		},
	}
}
