package bot

import (
	"time"

	"tradehook/internal/exchange"
	"tradehook/internal/models"
	"tradehook/pkg/utils"
)

// ============================================================
// Наблюдатель заполнения входного ордера
// ============================================================

// watchEntryFill опрашивает статус входного ордера до терминального
// состояния.
//
// Первое заполнение (PARTIALLY_FILLED или FILLED с executedQty > 0):
//   - фиксирует в леджере фактическую цену и время заполнения (один раз)
//   - переводит запись PENDING_ENTRY → ENTRY_FILLED
//   - отправляет единственное entry-уведомление
//   - запускает 2-барный таймер принудительного выхода (один раз)
//
// Отмена без заполнения снимает placeholder из леджера
func (e *Engine) watchEntryFill(key models.Key, orderID string) {
	log := e.log.WithTrade(key.Symbol, key.Interval)
	ticker := time.NewTicker(e.cfg.Trading.FillPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.bg.Done():
			return
		case <-ticker.C:
		}

		order, err := e.client.GetOrderStatus(e.bg, key.Symbol, orderID)
		if err != nil {
			log.Warn("entry order status poll failed", utils.OrderID(orderID), utils.Err(err))
			continue
		}

		if order.FilledQty > 0 {
			e.onEntryFill(key, order)
		}

		if exchange.IsTerminalStatus(order.Status) {
			if order.Status != exchange.OrderStatusFilled && order.FilledQty == 0 {
				// Отменён/отклонён без заполнения - записи нечего ждать
				log.Info("entry order ended without fill",
					utils.OrderID(orderID), utils.State(order.Status))
				e.ledger.Remove(key)
				UpdateActiveTrades(e.ledger.ActiveCount())
			}
			return
		}
	}
}

// onEntryFill фиксирует первое заполнение входа. Идемпотентен:
// MarkEntryFilled срабатывает один раз на запись
func (e *Engine) onEntryFill(key models.Key, order *exchange.Order) {
	fillPrice := order.AvgFillPrice
	if fillPrice == 0 {
		fillPrice = order.Price
	}

	first := e.ledger.MarkEntryFilled(key, func(t *models.Trade) {
		t.State = models.StateEntryFilled
		t.EntryPrice = fillPrice
		t.EntryTime = time.Now()
		t.Quantity = order.FilledQty
		t.OrderID = order.ID
		t.ForceExitStarted = true
	})
	if !first {
		return
	}

	e.log.WithTrade(key.Symbol, key.Interval).Info("entry filled",
		utils.OrderID(order.ID), utils.Price(fillPrice), utils.Qty(order.FilledQty))

	trade, ok := e.ledger.Get(key)
	if !ok {
		return
	}

	if e.notifier != nil {
		e.notifier.TradeOpened(trade, e.ledger.ActiveCount())
	}

	e.spawn(func() { e.forceExitTimer(key) })
}
