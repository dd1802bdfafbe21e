package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradehook/internal/config"
	"tradehook/internal/exchange"
	"tradehook/internal/ledger"
	"tradehook/internal/models"
	"tradehook/internal/notify"
	"tradehook/pkg/utils"
)

// Статусы ответов webhook-обработчика
const (
	StatusEntryPlaced               = "entry_order_placed"
	StatusMaxTradesReached          = "max_trades_reached"
	StatusNoPosition                = "no_position"
	StatusClosedByOppositeSameCross = "closed_by_opposite_same_cross"
	StatusExitSignalAttemptedLimit  = "exit_signal_attempted_limit"
	StatusExitSignalMarketCalled    = "exit_signal_market_called"
)

// Result - результат обработки алерта, сериализуется в тело ответа
type Result struct {
	Status   string  `json:"status"`
	Symbol   string  `json:"symbol,omitempty"`
	Side     string  `json:"side,omitempty"`
	OrderID  string  `json:"order_id,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

// Engine - торговый движок: принимает распарсенные алерты, управляет
// позициями на бирже и записями в леджере.
//
// Поток данных:
//
//	webhook → Engine.OpenPosition / HandleExitSignal / HandleImmediateExit
//	        → exchange.Client (REST)
//	        → ledger (единственный источник истины о сделках)
//	        → фоновые воркеры (наблюдатель заполнения, 2-барный таймер,
//	          финализатор выхода)
//
// Вход обрабатывается синхронно в хендлере (включая ожидание замены
// позиции), фоновые воркеры живут на контексте движка и переживают
// HTTP-запрос. Гонки воркеров разрешает CAS-переход состояния в леджере:
// ровно один из них (таймер или сигнал) инициирует выход.
type Engine struct {
	cfg      *config.Config
	client   exchange.Client
	ledger   *ledger.Ledger
	notifier notify.Notifier
	log      *utils.Logger

	// Контекст фоновых воркеров: живёт до Close(), не зависит
	// от контекста HTTP-запроса
	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine создает торговый движок
func NewEngine(cfg *config.Config, client exchange.Client, led *ledger.Ledger, notifier notify.Notifier, log *utils.Logger) *Engine {
	if log == nil {
		log = utils.L()
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:      cfg,
		client:   client,
		ledger:   led,
		notifier: notifier,
		log:      log.WithComponent("engine"),
		bg:       bg,
		cancel:   cancel,
	}
}

// Close останавливает фоновые воркеры и ждёт их завершения
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// spawn запускает фонового воркера с учётом в WaitGroup
func (e *Engine) spawn(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// ============================================================
// Вход в позицию
// ============================================================

// OpenPosition обрабатывает входной сигнал.
//
// Порядок:
//  1. Если на бирже уже есть позиция по символу - закрыть её market-ордером
//     и дождаться очистки (замена позиции)
//  2. Проверить лимит активных позиций на аккаунте
//  3. Выставить плечо и тип маржи (best-effort)
//  4. Рассчитать объём из маржи, плеча и текущей цены
//  5. Создать запись в леджере и разместить лимитный ордер GTC по цене алерта
//  6. Запустить наблюдателя заполнения
func (e *Engine) OpenPosition(ctx context.Context, alert models.Alert) (*Result, error) {
	symbol, side := alert.Symbol, alert.EntrySide()
	log := e.log.WithTrade(symbol, alert.Interval)

	// Замена существующей позиции
	pos, err := e.client.GetPosition(ctx, symbol)
	if err != nil {
		log.Warn("position check failed, proceeding with entry", utils.Err(err))
	}
	if pos != nil {
		reason := models.ReasonOppositeExit
		if (pos.IsLong() && side == "buy") || (!pos.IsLong() && side == "sell") {
			reason = models.ReasonSameSideExit
		}
		log.Info("existing position detected, replacing",
			utils.Side(side), utils.Reason(reason), utils.Float64("position_amt", pos.Amount))

		if _, err := e.marketExit(ctx, symbol, reason); err != nil {
			log.Warn("failed to close existing position", utils.Err(err))
		}
		if !e.waitPositionCleared(ctx, symbol) {
			log.Warn("position did not clear in time, attempting entry anyway",
				utils.Float64("wait_sec", e.cfg.Trading.ReplaceWaitTimeout.Seconds()))
		}
	}

	// Лимит одновременных позиций на аккаунте
	active, err := e.client.CountOpenPositions(ctx)
	if err != nil {
		log.Warn("failed to count open positions", utils.Err(err))
		active = 0
	}
	if active >= e.cfg.Trading.MaxActiveTrades {
		log.Info("max active trades reached",
			utils.Int("active", active), utils.Int("limit", e.cfg.Trading.MaxActiveTrades))
		return &Result{Status: StatusMaxTradesReached, Symbol: symbol}, nil
	}

	// Плечо и маржа - ошибки не фатальны (настройки могли быть выставлены ранее)
	if err := e.client.SetLeverage(ctx, symbol, e.cfg.Trading.Leverage); err != nil {
		log.Warn("set leverage failed", utils.Err(err))
	}
	if err := e.client.SetMarginType(ctx, symbol, e.cfg.Trading.MarginType); err != nil {
		log.Warn("set margin type failed", utils.Err(err))
	}

	// Объём из маржи и плеча по текущей цене
	price, err := e.client.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("get price for %s: %w", symbol, err)
	}
	qty := utils.CalculateQuantity(e.cfg.Trading.TradeAmount, e.cfg.Trading.Leverage, price)
	qty, err = e.client.RoundQuantity(ctx, symbol, qty)
	if err != nil {
		return nil, fmt.Errorf("round quantity for %s: %w", symbol, err)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("calculated quantity is zero for %s (price=%v)", symbol, price)
	}

	// Запись в леджере создаётся до размещения ордера
	key := models.Key{Symbol: symbol, Interval: alert.Interval}
	e.ledger.Put(key, models.Trade{
		Symbol:     symbol,
		Interval:   alert.Interval,
		Side:       side,
		State:      models.StatePendingEntry,
		OrderID:    models.OrderIDPending,
		EntryPrice: alert.Close,
		EntryTime:  time.Now(),
		Quantity:   qty,
	})

	started := time.Now()
	order, err := e.client.PlaceLimitOrder(ctx, symbol, side, qty, alert.Close)
	if err != nil {
		// Биржа отклонила ордер - убираем placeholder
		e.ledger.Remove(key)
		return nil, fmt.Errorf("place entry order for %s: %w", symbol, err)
	}
	RecordOrder("limit", side, float64(time.Since(started).Milliseconds()))

	e.ledger.Update(key, func(t *models.Trade) {
		t.OrderID = order.ID
	})
	UpdateActiveTrades(e.ledger.ActiveCount())

	log.Info("entry order placed",
		utils.OrderID(order.ID), utils.Side(side), utils.Qty(qty), utils.Price(alert.Close))

	e.spawn(func() { e.watchEntryFill(key, order.ID) })

	return &Result{
		Status:   StatusEntryPlaced,
		Symbol:   symbol,
		Side:     side,
		OrderID:  order.ID,
		Quantity: qty,
		Price:    alert.Close,
	}, nil
}

// waitPositionCleared ждёт пока позиция на бирже закроется и локальные
// записи символа исчезнут. Возвращает false по таймауту
func (e *Engine) waitPositionCleared(ctx context.Context, symbol string) bool {
	deadline := time.Now().Add(e.cfg.Trading.ReplaceWaitTimeout)
	ticker := time.NewTicker(e.cfg.Trading.FillPollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		pos, err := e.client.GetPosition(ctx, symbol)
		if err != nil {
			continue
		}
		if pos == nil && len(e.ledger.FindBySymbol(symbol)) == 0 {
			return true
		}
	}
	return false
}
