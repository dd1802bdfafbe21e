// Package notify отвечает за уведомления о сделках и дневные отчёты.
package notify

import (
	"context"
	"sync"
	"time"

	"tradehook/internal/models"
	"tradehook/pkg/utils"
)

// Notifier - интерфейс уведомлений для торгового движка
type Notifier interface {
	// TradeOpened отправляет уведомление об открытии позиции.
	// Повторные вызовы с тем же orderID игнорируются
	TradeOpened(trade models.Trade, tradeNumber int)

	// TradeClosed отправляет уведомление о закрытии позиции
	// и учитывает сделку в дневной статистике
	TradeClosed(trade models.ClosedTrade)
}

// Sender - транспорт доставки сообщений (Telegram или лог)
type Sender interface {
	SendMessage(text string) error
}

// Service реализует Notifier поверх произвольного Sender.
//
// Хранит множество уже отправленных entry-уведомлений: наблюдатель
// заполнения может увидеть PARTIALLY_FILLED несколько раз, уведомление
// об открытии должно уйти один раз на ордер
type Service struct {
	sender Sender
	log    *utils.Logger

	mu             sync.Mutex
	notifiedOrders map[string]struct{}
	daily          models.DailyStats

	// openCount возвращает число активных позиций для строки Open в отчёте
	openCount func() int

	// статические параметры для entry-сообщений
	leverage    int
	tradeAmount float64
}

// NewService создает сервис уведомлений
func NewService(sender Sender, openCount func() int, leverage int, tradeAmount float64, log *utils.Logger) *Service {
	if log == nil {
		log = utils.L()
	}
	return &Service{
		sender:         sender,
		log:            log.WithComponent("notify"),
		notifiedOrders: make(map[string]struct{}),
		openCount:      openCount,
		leverage:       leverage,
		tradeAmount:    tradeAmount,
	}
}

// TradeOpened отправляет уведомление об открытии. Идемпотентно по orderID
func (s *Service) TradeOpened(trade models.Trade, tradeNumber int) {
	s.mu.Lock()
	if _, seen := s.notifiedOrders[trade.OrderID]; seen {
		s.mu.Unlock()
		return
	}
	s.notifiedOrders[trade.OrderID] = struct{}{}
	s.mu.Unlock()

	if err := s.sender.SendMessage(FormatTradeOpened(trade, tradeNumber, s.leverage, s.tradeAmount)); err != nil {
		s.log.Error("failed to send trade opened notification",
			utils.Symbol(trade.Symbol), utils.OrderID(trade.OrderID), utils.Err(err))
	}
}

// TradeClosed отправляет уведомление о закрытии и пополняет дневную статистику
func (s *Service) TradeClosed(trade models.ClosedTrade) {
	s.mu.Lock()
	s.daily.Add(trade)
	s.mu.Unlock()

	if err := s.sender.SendMessage(FormatTradeClosed(trade)); err != nil {
		s.log.Error("failed to send trade closed notification",
			utils.Symbol(trade.Symbol), utils.Err(err))
	}
}

// flushDaily забирает накопленную статистику и обнуляет аккумулятор
func (s *Service) flushDaily() models.DailyStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.daily
	s.daily = models.DailyStats{}
	// Множество entry-уведомлений тоже очищаем: закрытые ордера не вернутся
	s.notifiedOrders = make(map[string]struct{})
	return stats
}

// SendDailySummary отправляет дневной отчёт и сбрасывает аккумулятор
func (s *Service) SendDailySummary() {
	stats := s.flushDaily()
	if s.openCount != nil {
		stats.OpenTrades = s.openCount()
	}

	if err := s.sender.SendMessage(FormatDailySummary(stats)); err != nil {
		s.log.Error("failed to send daily summary", utils.Err(err))
	}
}

// RunDailySummary шлёт отчёт в "торговую полночь": UTC-полночь,
// сдвинутая на offset. Блокируется до отмены контекста
func (s *Service) RunDailySummary(ctx context.Context, offset time.Duration) {
	for {
		// Следующая полночь в сдвинутой временной зоне
		shifted := time.Now().UTC().Add(offset)
		wait := time.Until(utils.NextDayStart(shifted).Add(-offset))
		if wait <= 0 {
			wait = time.Minute
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.SendDailySummary()
		}
	}
}
