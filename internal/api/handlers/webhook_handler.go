package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tradehook/internal/bot"
	"tradehook/internal/models"
	"tradehook/pkg/utils"
)

// TradeEngine - операции торгового движка, нужные webhook-обработчику
type TradeEngine interface {
	// OpenPosition открывает позицию по входному сигналу
	OpenPosition(ctx context.Context, alert models.Alert) (*bot.Result, error)

	// HandleExitSignal закрывает позицию по сигнальному выходу
	// (лимитный по экстремуму бара с откатом на market)
	HandleExitSignal(ctx context.Context, alert models.Alert) (*bot.Result, error)

	// HandleImmediateExit немедленно закрывает позицию
	// (пересечение, противоположный или повторный сигнал)
	HandleImmediateExit(ctx context.Context, alert models.Alert) (*bot.Result, error)
}

// WebhookHandler принимает алерты TradingView.
//
// Тело запроса - plain text, поля через "|":
//
//	TICKER|COMMENT|CLOSE|BAR_HIGH|BAR_LOW|INTERVAL
//	TICKER|COMMENT|CLOSE|INTERVAL
type WebhookHandler struct {
	engine TradeEngine
	log    *utils.Logger
}

// NewWebhookHandler создает обработчик алертов
func NewWebhookHandler(engine TradeEngine, log *utils.Logger) *WebhookHandler {
	if log == nil {
		log = utils.L()
	}
	return &WebhookHandler{
		engine: engine,
		log:    log.WithComponent("webhook"),
	}
}

// Handle обрабатывает POST /webhook.
//
// Входные сигналы обрабатываются синхронно: ответ приходит после
// размещения входного ордера (или после замены существующей позиции).
// Наблюдение за заполнением и таймеры живут в фоне
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	alert, err := ParseAlert(string(body))
	if err != nil {
		h.log.Warn("malformed alert", utils.String("body", string(body)), utils.Err(err))
		bot.RecordAlert("unknown", "rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log := h.log.WithTrade(alert.Symbol, alert.Interval)
	log.Info("alert received",
		utils.String("comment", alert.Comment), utils.Price(alert.Close))

	var result *bot.Result
	alertType := alertMetricType(alert.Comment)

	switch alert.Comment {
	case models.CommentBuyEntry, models.CommentSellEntry:
		result, err = h.engine.OpenPosition(r.Context(), alert)

	case models.CommentCrossExitLong, models.CommentCrossExitShort,
		models.CommentOppositeExit, models.CommentSameSideExit:
		result, err = h.engine.HandleImmediateExit(r.Context(), alert)

	case models.CommentExitLong, models.CommentExitShort, models.CommentSignalExit:
		result, err = h.engine.HandleExitSignal(r.Context(), alert)

	default:
		bot.RecordAlert("unknown", "rejected")
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown comment: %s", alert.Comment))
		return
	}

	if err != nil {
		log.Error("alert processing failed", utils.Err(err))
		bot.RecordAlert(alertType, "error")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metricResult := "ok"
	if result != nil && (result.Status == bot.StatusMaxTradesReached || result.Status == bot.StatusNoPosition) {
		metricResult = "rejected"
	}
	bot.RecordAlert(alertType, metricResult)
	writeJSON(w, http.StatusOK, result)
}

// alertMetricType сворачивает комментарий в метку метрики
func alertMetricType(comment string) string {
	switch comment {
	case models.CommentBuyEntry, models.CommentSellEntry:
		return "entry"
	case models.CommentCrossExitLong, models.CommentCrossExitShort:
		return "cross_exit"
	case models.CommentOppositeExit:
		return "opposite_exit"
	case models.CommentSameSideExit:
		return "same_side_exit"
	case models.CommentExitLong, models.CommentExitShort, models.CommentSignalExit:
		return "exit"
	default:
		return "unknown"
	}
}

// ParseAlert разбирает pipe-сообщение TradingView.
//
// Полный формат (6+ полей): TICKER|COMMENT|CLOSE|BAR_HIGH|BAR_LOW|INTERVAL.
// Короткий (4-5 полей): TICKER|COMMENT|CLOSE|...|INTERVAL - интервалом
// считается последнее поле, экстремумы бара отсутствуют
func ParseAlert(body string) (models.Alert, error) {
	raw := strings.Split(body, "|")
	parts := make([]string, len(raw))
	for i, p := range raw {
		parts[i] = strings.TrimSpace(p)
	}

	if len(parts) < 4 {
		return models.Alert{}, fmt.Errorf("alert must have at least 4 fields, got %d", len(parts))
	}

	alert := models.Alert{
		Ticker:    parts[0],
		Comment:   parts[1],
		RawFields: len(parts),
	}

	closePrice, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return models.Alert{}, fmt.Errorf("invalid close price %q", parts[2])
	}
	alert.Close = closePrice

	if len(parts) >= 6 {
		barHigh, errHigh := strconv.ParseFloat(parts[3], 64)
		barLow, errLow := strconv.ParseFloat(parts[4], 64)
		if errHigh == nil && errLow == nil && barHigh > 0 && barLow > 0 {
			alert.BarHigh = barHigh
			alert.BarLow = barLow
			alert.HasBars = true
		}
		alert.Interval = models.NormalizeInterval(parts[5])
	} else {
		alert.Interval = models.NormalizeInterval(parts[len(parts)-1])
	}

	if alert.Ticker == "" {
		return models.Alert{}, fmt.Errorf("alert ticker is empty")
	}
	alert.Symbol = models.DeriveSymbol(alert.Ticker)

	if err := utils.ValidateSymbol(alert.Symbol); err != nil {
		return models.Alert{}, err
	}
	if err := utils.ValidatePrice(alert.Close); err != nil {
		return models.Alert{}, fmt.Errorf("invalid close price: %w", err)
	}

	return alert, nil
}
