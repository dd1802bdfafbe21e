package handlers

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tradehook/internal/bot"
	"tradehook/internal/models"
)

// mockEngine записывает вызовы и возвращает заготовленные ответы
type mockEngine struct {
	lastAlert models.Alert
	lastOp    string

	result *bot.Result
	err    error
}

func (m *mockEngine) OpenPosition(_ context.Context, alert models.Alert) (*bot.Result, error) {
	m.lastAlert, m.lastOp = alert, "open"
	return m.result, m.err
}

func (m *mockEngine) HandleExitSignal(_ context.Context, alert models.Alert) (*bot.Result, error) {
	m.lastAlert, m.lastOp = alert, "exit"
	return m.result, m.err
}

func (m *mockEngine) HandleImmediateExit(_ context.Context, alert models.Alert) (*bot.Result, error) {
	m.lastAlert, m.lastOp = alert, "immediate"
	return m.result, m.err
}

func postWebhook(t *testing.T, engine *mockEngine, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewWebhookHandler(engine, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestWebhook_RoutesByComment(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantOp string
	}{
		{"вход long", "BTCUSDT|BUY_ENTRY|45000|15", "open"},
		{"вход short", "BTCUSDT|SELL_ENTRY|45000|15", "open"},
		{"сигнальный выход", "BTCUSDT|EXIT_LONG|45100|45200|44900|15", "exit"},
		{"signal exit", "BTCUSDT|SIGNAL_EXIT|45100|15", "exit"},
		{"пересечение", "BTCUSDT|CROSS_EXIT_LONG|45100|45200|44900|15", "immediate"},
		{"противоположный", "BTCUSDT|OPPOSITE_EXIT|45100|15", "immediate"},
		{"повторный", "BTCUSDT|SAME_SIDE_EXIT|45100|15", "immediate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{result: &bot.Result{Status: "ok"}}
			rec := postWebhook(t, engine, tt.body)

			if rec.Code != http.StatusOK {
				t.Fatalf("код = %d, ожидался 200; тело: %s", rec.Code, rec.Body.String())
			}
			if engine.lastOp != tt.wantOp {
				t.Errorf("вызвана операция %q, ожидалась %q", engine.lastOp, tt.wantOp)
			}
		})
	}
}

func TestWebhook_UnknownComment(t *testing.T) {
	engine := &mockEngine{}
	rec := postWebhook(t, engine, "BTCUSDT|HELLO|45000|15")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("код = %d, ожидался 400", rec.Code)
	}
	var resp ErrorResponse
	if err := stdjson.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("невалидный JSON в ответе: %v", err)
	}
	if resp.Error != "Unknown comment: HELLO" {
		t.Errorf("error = %q, ожидалось %q", resp.Error, "Unknown comment: HELLO")
	}
	if engine.lastOp != "" {
		t.Errorf("движок вызван для неизвестного комментария")
	}
}

func TestWebhook_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"мало полей", "BTCUSDT|BUY_ENTRY"},
		{"нечисловая цена", "BTCUSDT|BUY_ENTRY|abc|15"},
		{"пустое тело", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(t, &mockEngine{}, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("код = %d, ожидался 400", rec.Code)
			}
		})
	}
}

func TestWebhook_EngineError(t *testing.T) {
	engine := &mockEngine{err: errors.New("exchange down")}
	rec := postWebhook(t, engine, "BTCUSDT|BUY_ENTRY|45000|15")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("код = %d, ожидался 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "exchange down") {
		t.Errorf("ответ не содержит текста ошибки: %s", rec.Body.String())
	}
}

func TestWebhook_ResponseBody(t *testing.T) {
	engine := &mockEngine{result: &bot.Result{
		Status:  bot.StatusEntryPlaced,
		Symbol:  "BTCUSDT",
		OrderID: "123",
	}}
	rec := postWebhook(t, engine, "BTCUSDT|BUY_ENTRY|45000|15")

	var resp bot.Result
	if err := stdjson.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("невалидный JSON в ответе: %v", err)
	}
	if resp.Status != bot.StatusEntryPlaced || resp.OrderID != "123" {
		t.Errorf("неожиданное тело ответа: %+v", resp)
	}
}

func TestParseAlert(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    models.Alert
		wantErr bool
	}{
		{
			name: "полный формат",
			body: "BTCUSDT|BUY_ENTRY|45000.5|45200|44800|15",
			want: models.Alert{
				Ticker: "BTCUSDT", Symbol: "BTCUSDT", Comment: "BUY_ENTRY",
				Close: 45000.5, BarHigh: 45200, BarLow: 44800, HasBars: true,
				Interval: "15m", RawFields: 6,
			},
		},
		{
			name: "короткий формат",
			body: "ETHUSDT|EXIT_LONG|2500|60",
			want: models.Alert{
				Ticker: "ETHUSDT", Symbol: "ETHUSDT", Comment: "EXIT_LONG",
				Close: 2500, Interval: "1h", RawFields: 4,
			},
		},
		{
			name: "тикер с суффиксом",
			body: "BTCUSDT.P|SELL_ENTRY|45000|1",
			want: models.Alert{
				Ticker: "BTCUSDT.P", Symbol: "BTCUSDT", Comment: "SELL_ENTRY",
				Close: 45000, Interval: "1m", RawFields: 4,
			},
		},
		{
			name: "пробелы вокруг полей",
			body: " BTCUSDT | BUY_ENTRY | 45000 | 45100 | 44900 | 5 ",
			want: models.Alert{
				Ticker: "BTCUSDT", Symbol: "BTCUSDT", Comment: "BUY_ENTRY",
				Close: 45000, BarHigh: 45100, BarLow: 44900, HasBars: true,
				Interval: "5m", RawFields: 6,
			},
		},
		{
			name: "нулевые экстремумы не считаются барами",
			body: "BTCUSDT|EXIT_LONG|45000|0|0|15",
			want: models.Alert{
				Ticker: "BTCUSDT", Symbol: "BTCUSDT", Comment: "EXIT_LONG",
				Close: 45000, HasBars: false, Interval: "15m", RawFields: 6,
			},
		},
		{name: "мало полей", body: "BTCUSDT|BUY_ENTRY|45000", wantErr: true},
		{name: "нечисловая цена", body: "BTCUSDT|BUY_ENTRY|n/a|15", wantErr: true},
		{name: "пустой тикер", body: "|BUY_ENTRY|45000|15", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlert(tt.body)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ожидалась ошибка, получен %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseAlert() =\n%+v\nожидалось\n%+v", got, tt.want)
			}
		})
	}
}
