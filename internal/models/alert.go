package models

import (
	"strings"

	"tradehook/pkg/utils"
)

// Alert представляет распарсенный webhook-алерт от TradingView.
//
// Формат сообщения - поля через "|":
//
//	TICKER|COMMENT|CLOSE|BAR_HIGH|BAR_LOW|INTERVAL  (полный, 6+ полей)
//	TICKER|COMMENT|CLOSE|INTERVAL                   (короткий, без экстремумов бара)
type Alert struct {
	Ticker    string  `json:"ticker"`     // как пришёл в алерте ("BTCUSDT", "BTCUSDT.P")
	Symbol    string  `json:"symbol"`     // нормализованный символ фьючерса
	Comment   string  `json:"comment"`    // тип сигнала, см. константы Comment*
	Close     float64 `json:"close"`      // цена закрытия бара (цена входа)
	BarHigh   float64 `json:"bar_high"`   // максимум бара (0 в коротком формате)
	BarLow    float64 `json:"bar_low"`    // минимум бара (0 в коротком формате)
	HasBars   bool    `json:"has_bars"`   // пришли ли экстремумы бара
	Interval  string  `json:"interval"`   // нормализованный интервал
	RawFields int     `json:"raw_fields"` // число полей в исходном сообщении
}

// Типы сигналов в поле COMMENT
const (
	CommentBuyEntry  = "BUY_ENTRY"  // открыть long
	CommentSellEntry = "SELL_ENTRY" // открыть short

	CommentExitLong   = "EXIT_LONG"   // сигнальный выход из long
	CommentExitShort  = "EXIT_SHORT"  // сигнальный выход из short
	CommentSignalExit = "SIGNAL_EXIT" // сигнальный выход (сторона из леджера)

	CommentCrossExitLong  = "CROSS_EXIT_LONG"  // пересечение против long: немедленный market выход
	CommentCrossExitShort = "CROSS_EXIT_SHORT" // пересечение против short
	CommentOppositeExit   = "OPPOSITE_EXIT"    // противоположный сигнал закрыл позицию
	CommentSameSideExit   = "SAME_SIDE_EXIT"   // повторный сигнал той же стороны
)

// IsEntry возвращает true для сигналов открытия позиции
func (a *Alert) IsEntry() bool {
	return a.Comment == CommentBuyEntry || a.Comment == CommentSellEntry
}

// EntrySide возвращает сторону ордера для входного сигнала
func (a *Alert) EntrySide() string {
	if a.Comment == CommentBuyEntry {
		return "buy"
	}
	return "sell"
}

// DeriveSymbol нормализует тикер алерта в символ USDT-M фьючерса.
// TradingView может прислать "BTCUSDT.P", "BTC/USDT", "BTCUSDTPERP" и т.п. -
// убираем разделители, отрезаем всё после базы и приписываем USDT
func DeriveSymbol(ticker string) string {
	s := utils.NormalizeSymbol(ticker)
	if i := strings.Index(s, "USDT"); i >= 0 {
		s = s[:i]
	}
	return s + "USDT"
}
