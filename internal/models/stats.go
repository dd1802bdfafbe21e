package models

import "time"

// ClosedTrade представляет завершённую сделку для дневного отчёта
type ClosedTrade struct {
	Symbol     string    `json:"symbol"`
	Interval   string    `json:"interval"`
	Side       string    `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Pnl        float64   `json:"pnl"`
	PnlPercent float64   `json:"pnl_percent"`
	Reason     string    `json:"reason"`
	ClosedAt   time.Time `json:"closed_at"`
}

// DailyStats представляет агрегированную статистику за торговый день
type DailyStats struct {
	TotalTrades      int           `json:"total_trades"`
	ProfitableTrades int           `json:"profitable_trades"`
	LosingTrades     int           `json:"losing_trades"`
	OpenTrades       int           `json:"open_trades"` // активные позиции на момент отчёта
	NetPnl           float64       `json:"net_pnl"`
	NetPnlPercent    float64       `json:"net_pnl_percent"` // сумма процентов по сделкам
	Trades           []ClosedTrade `json:"trades"`
}

// Add учитывает завершённую сделку в дневной статистике
func (s *DailyStats) Add(t ClosedTrade) {
	s.Trades = append(s.Trades, t)
	s.TotalTrades++
	if t.Pnl >= 0 {
		s.ProfitableTrades++
	} else {
		s.LosingTrades++
	}
	s.NetPnl += t.Pnl
	s.NetPnlPercent += t.PnlPercent
}
