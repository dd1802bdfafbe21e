package notify

import (
	"fmt"
	"strings"

	"tradehook/internal/models"
)

// Форматирование сообщений. Telegram parse_mode=HTML,
// поэтому жирный текст через <b>, без Markdown

const divider = "--- ⌁ ---"

// FormatTradeOpened строит уведомление об открытии позиции.
// tradeNumber - порядковый номер активной сделки на аккаунте
func FormatTradeOpened(trade models.Trade, tradeNumber, leverage int, tradeAmount float64) string {
	arrow, direction := "⬆️", "Long"
	side := "BUY"
	if !trade.IsLong() {
		arrow, direction = "⬇️", "Short"
		side = "SELL"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s Trade</b>\n\n", arrow, direction)
	fmt.Fprintf(&b, "Symbol: #%s (#%d)\n", trade.Symbol, tradeNumber)
	fmt.Fprintf(&b, "Side: %s\n", side)
	fmt.Fprintf(&b, "Interval: %s\n", trade.Interval)
	fmt.Fprintf(&b, "%s\n", divider)
	fmt.Fprintf(&b, "Leverage: %dx\n", leverage)
	fmt.Fprintf(&b, "Trade Amount: $%s\n", trimFloat(tradeAmount))
	fmt.Fprintf(&b, "Entry Price: %s\n", trimFloat(trade.EntryPrice))
	fmt.Fprintf(&b, "%s\n", divider)
	b.WriteString("🕐 Wait for Exit Signal..")
	return b.String()
}

// FormatTradeClosed строит уведомление о закрытии позиции
func FormatTradeClosed(trade models.ClosedTrade) string {
	header := "✅ <b>Ended in Profit!</b>"
	if trade.Pnl < 0 {
		header = "⛔️ <b>Ended in Loss!</b>"
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Reason: %s\n", trade.Reason)
	fmt.Fprintf(&b, "PnL: $%.2f | %.2f%%\n", trade.Pnl, trade.PnlPercent)
	fmt.Fprintf(&b, "%s\n", divider)
	fmt.Fprintf(&b, "Symbol: #%s\n", trade.Symbol)
	fmt.Fprintf(&b, "Interval: %s\n", trade.Interval)
	fmt.Fprintf(&b, "Entry: %s\n", trimFloat(trade.EntryPrice))
	fmt.Fprintf(&b, "Exit: %s", trimFloat(trade.ExitPrice))
	return b.String()
}

// FormatDailySummary строит дневной отчёт
func FormatDailySummary(stats models.DailyStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Daily Summary</b>\n")

	if stats.TotalTrades == 0 {
		b.WriteString("\nNo trades closed today.\n")
	} else {
		for _, t := range stats.Trades {
			mark := "✅"
			if t.Pnl < 0 {
				mark = "⛔️"
			}
			fmt.Fprintf(&b, "\n%s #%s %s (%s): $%.2f | %.2f%%",
				mark, t.Symbol, strings.ToUpper(t.Side), t.Interval, t.Pnl, t.PnlPercent)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s\n", divider)
	fmt.Fprintf(&b, "Total Trades: %d\n", stats.TotalTrades)
	fmt.Fprintf(&b, "Profitable: %d\n", stats.ProfitableTrades)
	fmt.Fprintf(&b, "Lost: %d\n", stats.LosingTrades)
	fmt.Fprintf(&b, "Open: %d\n", stats.OpenTrades)
	fmt.Fprintf(&b, "Net PnL: $%.2f | %.2f%%", stats.NetPnl, stats.NetPnlPercent)
	return b.String()
}

// trimFloat форматирует цену/объём без хвостовых нулей
func trimFloat(v float64) string {
	s := fmt.Sprintf("%.8f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
