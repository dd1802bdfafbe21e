package handlers

import (
	"net/http"
	"sort"

	"tradehook/internal/models"
)

// TradeStore - read-only доступ к реестру активных сделок
type TradeStore interface {
	Snapshot() map[models.Key]models.Trade
}

// TradesHandler отдаёт снимок активных сделок (диагностика)
type TradesHandler struct {
	store TradeStore
}

// NewTradesHandler создает обработчик списка сделок
func NewTradesHandler(store TradeStore) *TradesHandler {
	return &TradesHandler{store: store}
}

// Handle обрабатывает GET /trades: активные записи реестра,
// отсортированные по символу и интервалу
func (h *TradesHandler) Handle(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()

	trades := make([]models.Trade, 0, len(snap))
	for _, t := range snap {
		trades = append(trades, t)
	}
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Symbol != trades[j].Symbol {
			return trades[i].Symbol < trades[j].Symbol
		}
		return trades[i].Interval < trades[j].Interval
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(trades),
		"trades": trades,
	})
}
