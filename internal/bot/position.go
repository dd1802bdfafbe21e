package bot

import (
	"context"
	"fmt"
	"time"

	"tradehook/internal/config"
	"tradehook/internal/exchange"
	"tradehook/internal/models"
	"tradehook/pkg/retry"
	"tradehook/pkg/utils"
)

// ============================================================
// Выход из позиции
// ============================================================

// HandleExitSignal обрабатывает сигнальный выход (EXIT_LONG, EXIT_SHORT,
// SIGNAL_EXIT). Сигнал имеет приоритет над 2-барным таймером: флаг
// exit_signal_received выставляется до начала закрытия.
//
// Путь закрытия: лимитный ордер по экстремуму бара (если включено и
// экстремумы пришли в алерте) с откатом на market по таймауту, иначе
// сразу market
func (e *Engine) HandleExitSignal(ctx context.Context, alert models.Alert) (*Result, error) {
	symbol := alert.Symbol
	log := e.log.WithSymbol(symbol)

	pos, err := e.client.GetPosition(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("get position for %s: %w", symbol, err)
	}
	if pos == nil {
		// Позиции нет - чистим осиротевшие локальные записи
		log.Info("exit signal without open position, cleaning local state")
		e.ledger.RemoveAllForSymbol(symbol)
		UpdateActiveTrades(e.ledger.ActiveCount())
		return &Result{Status: StatusNoPosition, Symbol: symbol}, nil
	}

	interval := e.resolveInterval(symbol, alert.Interval)
	e.markExiting(symbol)

	if e.cfg.Trading.UseBarExtremesForExit && alert.HasBars {
		if err := e.executeExit(ctx, pos, interval, alert.BarHigh, alert.BarLow, models.ReasonExitSignal); err != nil {
			return nil, err
		}
		return &Result{Status: StatusExitSignalAttemptedLimit, Symbol: symbol}, nil
	}

	if _, err := e.marketExit(ctx, symbol, models.ReasonExitSignal); err != nil {
		return nil, err
	}
	return &Result{Status: StatusExitSignalMarketCalled, Symbol: symbol}, nil
}

// HandleImmediateExit обрабатывает немедленное закрытие по пересечению
// или противоположному/повторному сигналу (CROSS_EXIT_*, OPPOSITE_EXIT,
// SAME_SIDE_EXIT). Закрывает безусловно и всегда market-ордером:
// лимитный путь по экстремуму бара доступен только сигнальному выходу
func (e *Engine) HandleImmediateExit(ctx context.Context, alert models.Alert) (*Result, error) {
	symbol := alert.Symbol

	pos, err := e.client.GetPosition(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("get position for %s: %w", symbol, err)
	}
	if pos == nil {
		e.ledger.RemoveAllForSymbol(symbol)
		UpdateActiveTrades(e.ledger.ActiveCount())
		return &Result{Status: StatusNoPosition, Symbol: symbol}, nil
	}

	reason := immediateExitReason(alert.Comment)
	e.markExiting(symbol)

	// Пересечение закрывает немедленно, противоположный/повторный
	// сигнал - после настраиваемой паузы
	if d := e.cfg.Trading.OppositeCloseDelay; d > 0 && reason != models.ReasonCrossExit {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}

	if _, err := e.marketExit(ctx, symbol, reason); err != nil {
		return nil, err
	}
	return &Result{Status: StatusClosedByOppositeSameCross, Symbol: symbol}, nil
}

// immediateExitReason сопоставляет комментарий алерта с причиной закрытия
func immediateExitReason(comment string) string {
	switch comment {
	case models.CommentCrossExitLong, models.CommentCrossExitShort:
		return models.ReasonCrossExit
	case models.CommentOppositeExit:
		return models.ReasonOppositeExit
	default:
		return models.ReasonSameSideExit
	}
}

// markExiting выставляет флаг сигнального выхода и переводит записи
// символа в EXIT_PENDING. Проигравший CAS таймер отступит
func (e *Engine) markExiting(symbol string) {
	e.ledger.MarkExitSignal(symbol)
	for _, t := range e.ledger.FindBySymbol(symbol) {
		key := models.Key{Symbol: t.Symbol, Interval: t.Interval}
		e.ledger.TransitionState(key, models.StateEntryFilled, models.StateExitPending)
	}
}

// resolveInterval возвращает интервал записи из леджера, если она есть;
// иначе интервал из алерта
func (e *Engine) resolveInterval(symbol, fallback string) string {
	if trades := e.ledger.FindBySymbol(symbol); len(trades) > 0 {
		return trades[0].Interval
	}
	return fallback
}

// executeExit закрывает позицию лимитным ордером по экстремуму бара
// с откатом на market.
//
// Цена лимитки: максимум бара при закрытии лонга, минимум - при закрытии
// шорта. Если ордер не заполнился за BarExitTimeout - отмена и market
func (e *Engine) executeExit(ctx context.Context, pos *exchange.Position, interval string, barHigh, barLow float64, reason string) error {
	symbol := pos.Symbol
	log := e.log.WithTrade(symbol, interval)

	if d := e.cfg.Trading.ExitMarketDelay; d > 0 {
		log.Debug("exit delay active", utils.Float64("delay_sec", d.Seconds()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	limitPrice := barLow
	closingSide := exchange.SideBuy
	if pos.IsLong() {
		limitPrice = barHigh
		closingSide = exchange.SideSell
	}

	qty, err := e.client.RoundQuantity(ctx, symbol, pos.Size())
	if err != nil {
		return fmt.Errorf("round exit quantity for %s: %w", symbol, err)
	}

	log.Info("attempting limit exit",
		utils.Price(limitPrice), utils.Qty(qty), utils.Reason(reason))

	started := time.Now()
	order, err := e.client.PlaceLimitOrder(ctx, symbol, closingSide, qty, limitPrice)
	if err != nil {
		log.Warn("limit exit rejected, falling back to market", utils.Err(err))
		ExitFallbacks.Inc()
		_, err := e.marketExit(ctx, symbol, reason)
		return err
	}
	RecordOrder("limit", closingSide, float64(time.Since(started).Milliseconds()))

	// Опрос заполнения до таймаута
	deadline := time.Now().Add(e.cfg.Trading.BarExitTimeout)
	ticker := time.NewTicker(e.cfg.Trading.FillPollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := e.client.GetOrderStatus(ctx, symbol, order.ID)
		if err != nil {
			log.Warn("exit order status poll failed", utils.OrderID(order.ID), utils.Err(err))
			continue
		}
		if status.Status == exchange.OrderStatusFilled {
			log.Info("limit exit filled", utils.OrderID(order.ID), utils.Price(limitPrice))
			e.spawn(func() { e.finalizeTrade(symbol, reason) })
			return nil
		}
	}

	log.Info("limit exit not filled in time, switching to market",
		utils.Float64("timeout_sec", e.cfg.Trading.BarExitTimeout.Seconds()))
	if err := e.client.CancelOrder(ctx, symbol, order.ID); err != nil {
		log.Warn("cancel of unfilled exit order failed", utils.OrderID(order.ID), utils.Err(err))
	}
	ExitFallbacks.Inc()

	_, err = e.marketExit(ctx, symbol, reason)
	return err
}

// marketExit закрывает позицию рыночным ордером и запускает финализатор.
// Возвращает false если позиции на бирже нет (локальные записи чистятся)
func (e *Engine) marketExit(ctx context.Context, symbol, reason string) (bool, error) {
	log := e.log.WithSymbol(symbol)

	pos, err := e.client.GetPosition(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("get position for %s: %w", symbol, err)
	}
	if pos == nil {
		log.Info("market exit: no position on exchange, cleaning local state")
		e.ledger.RemoveAllForSymbol(symbol)
		UpdateActiveTrades(e.ledger.ActiveCount())
		return false, nil
	}

	closingSide := exchange.SideBuy
	if pos.IsLong() {
		closingSide = exchange.SideSell
	}
	qty, err := e.client.RoundQuantity(ctx, symbol, pos.Size())
	if err != nil {
		return false, fmt.Errorf("round exit quantity for %s: %w", symbol, err)
	}

	// Закрывающий ордер критичен: сетевые сбои переживаем агрессивным
	// retry, отказ биржи не повторяем - повтор получит тот же отказ
	started := time.Now()
	order, err := retry.DoWithResult(ctx, func() (*exchange.Order, error) {
		return e.client.PlaceMarketOrder(ctx, symbol, closingSide, qty)
	}, retryCfg(retry.AggressiveConfig()))
	if err != nil {
		return false, fmt.Errorf("market exit for %s: %w", symbol, err)
	}
	RecordOrder("market", closingSide, float64(time.Since(started).Milliseconds()))

	log.Info("market exit placed",
		utils.OrderID(order.ID), utils.Side(closingSide), utils.Qty(qty), utils.Reason(reason))

	e.spawn(func() { e.waitAndFinalize(symbol, order.ID, reason) })
	return true, nil
}

// retryCfg дополняет профиль повторов фильтром: отказы биржи
// (ExchangeError с кодом ответа) не повторяются
func retryCfg(cfg retry.Config) retry.Config {
	cfg.RetryIf = retry.IsRetryable
	return cfg
}

// waitAndFinalize ждёт заполнения закрывающего ордера и финализирует сделку.
// Если ордер умер незаполненным - позиция могла остаться открытой,
// повторяем market-закрытие
func (e *Engine) waitAndFinalize(symbol, orderID, reason string) {
	ticker := time.NewTicker(e.cfg.Trading.FillPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.bg.Done():
			return
		case <-ticker.C:
		}

		order, err := e.client.GetOrderStatus(e.bg, symbol, orderID)
		if err != nil {
			e.log.WithSymbol(symbol).Warn("close order status poll failed",
				utils.OrderID(orderID), utils.Err(err))
			continue
		}
		if order.Status == exchange.OrderStatusFilled {
			e.finalizeTrade(symbol, reason)
			return
		}
		if exchange.IsTerminalStatus(order.Status) {
			e.log.WithSymbol(symbol).Warn("close order ended without fill, retrying market exit",
				utils.OrderID(orderID), utils.State(order.Status))
			if _, err := e.marketExit(e.bg, symbol, reason); err != nil {
				e.log.WithSymbol(symbol).Error("market exit retry failed", utils.Err(err))
			}
			return
		}
	}
}

// finalizeTrade завершает сделку: подтягивает фактические данные
// исполнения с биржи, отправляет уведомление и чистит леджер.
//
// Последнее исполнение из userTrades авторитетно: его цена и
// realizedPnl попадают в отчёт, локальная цена входа используется
// для расчёта процента
func (e *Engine) finalizeTrade(symbol, reason string) {
	log := e.log.WithSymbol(symbol)

	fills, err := retry.DoWithResult(e.bg, func() ([]exchange.Fill, error) {
		return e.client.GetLastFills(e.bg, symbol, 20)
	}, retryCfg(retry.DefaultConfig()))
	if err != nil {
		log.Error("failed to fetch fills for finalize", utils.Err(err))
		return
	}
	if len(fills) == 0 {
		log.Warn("no fills found for finalize")
		return
	}
	last := fills[len(fills)-1]

	// Локальная запись даёт цену входа, интервал и сторону
	var local models.Trade
	if trades := e.ledger.FindBySymbol(symbol); len(trades) > 0 {
		local = trades[0]
	}
	entryPrice := local.EntryPrice
	if entryPrice == 0 {
		entryPrice = last.Price
	}

	pnl := utils.Round2(last.RealizedPnl)
	pnlPercent := utils.PnlPercent(last.RealizedPnl, last.Quantity, entryPrice)

	closed := models.ClosedTrade{
		Symbol:     symbol,
		Interval:   local.Interval,
		Side:       local.Side,
		EntryPrice: entryPrice,
		ExitPrice:  last.Price,
		Pnl:        pnl,
		PnlPercent: pnlPercent,
		Reason:     reason,
		ClosedAt:   time.Now(),
	}

	log.Info("trade closed",
		utils.Reason(reason), utils.Price(last.Price), utils.PNL(pnl),
		utils.Float64("pnl_percent", pnlPercent))

	if e.notifier != nil {
		e.notifier.TradeClosed(closed)
	}
	RecordTradeClosed(reason, pnl)

	// Позиция на бирже одна на символ - чистим записи всех интервалов
	e.ledger.RemoveAllForSymbol(symbol)
	UpdateActiveTrades(e.ledger.ActiveCount())
}

// ============================================================
// 2-барный таймер принудительного выхода
// ============================================================

// forceExitTimer закрывает позицию market-ордером через два бара после
// заполнения входа, если сигнал выхода не пришёл раньше.
//
// Таймер отступает если:
//   - записи больше нет (сделка уже закрыта)
//   - выставлен флаг сигнального выхода
//   - позиции на бирже нет (чистит локальные записи)
//   - политика loss_only и позиция в плюсе
//   - CAS ENTRY_FILLED → EXIT_PENDING проиграл гонку с сигналом
func (e *Engine) forceExitTimer(key models.Key) {
	log := e.log.WithTrade(key.Symbol, key.Interval)

	trade, ok := e.ledger.Get(key)
	if !ok {
		return
	}

	target := trade.EntryTime.Add(2 * models.IntervalDuration(key.Interval))
	if wait := time.Until(target); wait > 0 {
		log.Info("force exit timer armed", utils.String("fires_in", utils.FormatDuration(wait)))
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-e.bg.Done():
			return
		case <-timer.C:
		}
	}

	trade, ok = e.ledger.Get(key)
	if !ok {
		return
	}
	if trade.ExitSignalReceived {
		log.Info("force exit skipped: exit signal already processed")
		RecordForceExit("skipped_signal")
		return
	}

	// Один неудачный запрос не должен похоронить принудительный выход
	pos, err := retry.DoWithResult(e.bg, func() (*exchange.Position, error) {
		return e.client.GetPosition(e.bg, key.Symbol)
	}, retryCfg(retry.DefaultConfig()))
	if err != nil {
		log.Error("force exit: position check failed", utils.Err(err))
		return
	}
	if pos == nil {
		log.Info("force exit skipped: no position on exchange, cleaning local state")
		e.ledger.RemoveAllForSymbol(key.Symbol)
		UpdateActiveTrades(e.ledger.ActiveCount())
		RecordForceExit("skipped_flat")
		return
	}

	if e.cfg.Trading.ForceExitPolicy == config.ForceExitLossOnly && pos.UnrealizedPnl >= 0 {
		log.Info("force exit skipped: position profitable under loss_only policy",
			utils.PNL(pos.UnrealizedPnl))
		RecordForceExit("skipped_profit")
		return
	}

	if !e.ledger.TransitionState(key, models.StateEntryFilled, models.StateExitPending) {
		// Сигнальный выход успел первым
		RecordForceExit("skipped_signal")
		return
	}

	log.Info("forcing market exit after two bars")
	RecordForceExit("fired")

	if _, err := e.marketExit(e.bg, key.Symbol, models.ReasonForceExit); err != nil {
		log.Error("force exit failed", utils.Err(err))
	}
}
