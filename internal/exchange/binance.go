package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"tradehook/pkg/ratelimit"
	"tradehook/pkg/utils"
)

const (
	binanceBaseURL        = "https://fapi.binance.com"
	binanceTestnetBaseURL = "https://testnet.binancefuture.com"
	binanceRecvWindow     = "5000"

	// Категории rate limiter: ордера лимитируются жёстче остальных запросов
	rlOrders = "orders"
	rlOther  = "other"
)

// Binance реализует интерфейс Client для Binance USDT-M Futures
type Binance struct {
	apiKey    string
	secretKey string
	baseURL   string

	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter

	// Кэш торговых лимитов: exchangeInfo тяжёлый, дёргаем один раз на символ
	limitsCache map[string]*Limits
	limitsMu    sync.RWMutex
}

// NewBinance создает новый экземпляр Binance.
// Использует глобальный HTTP клиент с connection pooling и оптимизированными таймаутами
func NewBinance(apiKey, secretKey string, testnet bool) *Binance {
	baseURL := binanceBaseURL
	if testnet {
		baseURL = binanceTestnetBaseURL
	}

	// Лимиты Binance Futures: ~300 ордеров/мин, 2400 weight/мин на остальное
	limiter := ratelimit.NewMultiLimiter()
	limiter.Add(rlOrders, 5, 10)
	limiter.Add(rlOther, 20, 40)

	return &Binance{
		apiKey:      apiKey,
		secretKey:   secretKey,
		baseURL:     baseURL,
		httpClient:  GetGlobalHTTPClient(),
		limiter:     limiter,
		limitsCache: make(map[string]*Limits),
	}
}

func (b *Binance) GetName() string {
	return "binance"
}

// sign создает подпись HMAC-SHA256 для запроса к Binance API
func (b *Binance) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос к Binance Futures API.
// Все параметры передаются в query string (и для POST/DELETE тоже),
// подписанные запросы получают timestamp и signature
func (b *Binance) doRequest(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	category := rlOther
	if method != http.MethodGet && endpoint == "/fapi/v1/order" {
		category = rlOrders
	}
	if err := b.limiter.Wait(ctx, category); err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}

	if signed {
		query.Set("timestamp", strconv.FormatInt(utils.UnixMillis(), 10))
		query.Set("recvWindow", binanceRecvWindow)
		query.Set("signature", b.sign(query.Encode()))
	}

	reqURL := b.baseURL + endpoint
	if encoded := query.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}

	if signed {
		req.Header.Set("X-MBX-APIKEY", b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Msg == "" {
			apiErr.Msg = "HTTP " + resp.Status
		}
		exErr := &ExchangeError{
			Exchange: "binance",
			Message:  apiErr.Msg,
		}
		if apiErr.Code != 0 {
			// Код API означает отказ биржи - повтор получит тот же ответ
			exErr.Code = strconv.Itoa(apiErr.Code)
		} else if resp.StatusCode >= 500 {
			// 5xx без кода API - транспортный сбой, можно повторить
			exErr.Original = fmt.Errorf("server error: %s", resp.Status)
		}
		return nil, exErr
	}

	return body, nil
}

// binanceSide конвертирует сторону ордера в формат Binance
func binanceSide(side string) string {
	if side == SideSell {
		return "SELL"
	}
	return "BUY"
}

// binanceOrder - ответ Binance на размещение/запрос ордера
type binanceOrder struct {
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Price       string `json:"price"`
	AvgPrice    string `json:"avgPrice"`
	OrigQty     string `json:"origQty"`
	ExecutedQty string `json:"executedQty"`
	UpdateTime  int64  `json:"updateTime"`
}

// toOrder конвертирует ответ биржи в доменный Order
func (o *binanceOrder) toOrder() *Order {
	price, _ := strconv.ParseFloat(o.Price, 64)
	avgPrice, _ := strconv.ParseFloat(o.AvgPrice, 64)
	origQty, _ := strconv.ParseFloat(o.OrigQty, 64)
	executedQty, _ := strconv.ParseFloat(o.ExecutedQty, 64)

	side := SideBuy
	if o.Side == "SELL" {
		side = SideSell
	}

	orderType := "limit"
	if o.Type == "MARKET" {
		orderType = "market"
	}

	return &Order{
		ID:           strconv.FormatInt(o.OrderID, 10),
		Symbol:       o.Symbol,
		Side:         side,
		Type:         orderType,
		Price:        price,
		Quantity:     origQty,
		FilledQty:    executedQty,
		AvgFillPrice: avgPrice,
		Status:       o.Status,
		CreatedAt:    utils.FromUnixMillis(o.UpdateTime),
		UpdatedAt:    utils.FromUnixMillis(o.UpdateTime),
	}
}

func (b *Binance) PlaceLimitOrder(ctx context.Context, symbol, side string, qty, price float64) (*Order, error) {
	if err := utils.ValidateSide(side); err != nil {
		return nil, err
	}
	if err := utils.ValidateQuantity(qty); err != nil {
		return nil, err
	}

	// Цена должна быть кратна шагу цены символа, иначе биржа отклонит ордер
	if limits, err := b.GetLimits(ctx, symbol); err == nil && limits.PriceStep > 0 {
		price = math.Round(utils.RoundToTickSize(price, limits.PriceStep)*1e8) / 1e8
	}

	params := map[string]string{
		"symbol":      symbol,
		"side":        binanceSide(side),
		"type":        "LIMIT",
		"timeInForce": "GTC",
		"quantity":    strconv.FormatFloat(qty, 'f', -1, 64),
		"price":       strconv.FormatFloat(price, 'f', -1, 64),
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/fapi/v1/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp binanceOrder
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return resp.toOrder(), nil
}

func (b *Binance) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*Order, error) {
	if err := utils.ValidateSide(side); err != nil {
		return nil, err
	}
	if err := utils.ValidateQuantity(qty); err != nil {
		return nil, err
	}

	params := map[string]string{
		"symbol":   symbol,
		"side":     binanceSide(side),
		"type":     "MARKET",
		"quantity": strconv.FormatFloat(qty, 'f', -1, 64),
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/fapi/v1/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp binanceOrder
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return resp.toOrder(), nil
}

func (b *Binance) GetOrderStatus(ctx context.Context, symbol, orderID string) (*Order, error) {
	params := map[string]string{
		"symbol":  symbol,
		"orderId": orderID,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/fapi/v1/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp binanceOrder
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return resp.toOrder(), nil
}

func (b *Binance) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]string{
		"symbol":  symbol,
		"orderId": orderID,
	}

	_, err := b.doRequest(ctx, http.MethodDelete, "/fapi/v1/order", params, true)
	return err
}

func (b *Binance) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	params := map[string]string{
		"symbol": symbol,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, true)
	if err != nil {
		return nil, err
	}

	var resp []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		UnRealizedProfit string `json:"unRealizedProfit"`
		Leverage         string `json:"leverage"`
		UpdateTime       int64  `json:"updateTime"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	for _, p := range resp {
		if p.Symbol != symbol {
			continue
		}
		amount, _ := strconv.ParseFloat(p.PositionAmt, 64)
		if amount == 0 {
			return nil, nil
		}

		entryPrice, _ := strconv.ParseFloat(p.EntryPrice, 64)
		markPrice, _ := strconv.ParseFloat(p.MarkPrice, 64)
		unrealizedPnl, _ := strconv.ParseFloat(p.UnRealizedProfit, 64)
		leverage, _ := strconv.Atoi(p.Leverage)

		return &Position{
			Symbol:        p.Symbol,
			Amount:        amount,
			EntryPrice:    entryPrice,
			MarkPrice:     markPrice,
			Leverage:      leverage,
			UnrealizedPnl: unrealizedPnl,
			UpdatedAt:     utils.FromUnixMillis(p.UpdateTime),
		}, nil
	}

	return nil, nil
}

func (b *Binance) CountOpenPositions(ctx context.Context) (int, error) {
	body, err := b.doRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", nil, true)
	if err != nil {
		return 0, err
	}

	var resp []struct {
		PositionAmt string `json:"positionAmt"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}

	count := 0
	for _, p := range resp {
		amount, _ := strconv.ParseFloat(p.PositionAmt, 64)
		if amount != 0 {
			count++
		}
	}

	return count, nil
}

func (b *Binance) GetLastFills(ctx context.Context, symbol string, limit int) ([]Fill, error) {
	if limit <= 0 {
		limit = 10
	}

	params := map[string]string{
		"symbol": symbol,
		"limit":  strconv.Itoa(limit),
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/fapi/v1/userTrades", params, true)
	if err != nil {
		return nil, err
	}

	var resp []struct {
		OrderID     int64  `json:"orderId"`
		Symbol      string `json:"symbol"`
		Side        string `json:"side"`
		Price       string `json:"price"`
		Qty         string `json:"qty"`
		RealizedPnl string `json:"realizedPnl"`
		Time        int64  `json:"time"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	fills := make([]Fill, 0, len(resp))
	for _, f := range resp {
		price, _ := strconv.ParseFloat(f.Price, 64)
		qty, _ := strconv.ParseFloat(f.Qty, 64)
		pnl, _ := strconv.ParseFloat(f.RealizedPnl, 64)

		side := SideBuy
		if f.Side == "SELL" {
			side = SideSell
		}

		fills = append(fills, Fill{
			OrderID:     strconv.FormatInt(f.OrderID, 10),
			Symbol:      f.Symbol,
			Side:        side,
			Price:       price,
			Quantity:    qty,
			RealizedPnl: pnl,
			Time:        utils.FromUnixMillis(f.Time),
		})
	}

	return fills, nil
}

func (b *Binance) GetPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]string{
		"symbol": symbol,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/fapi/v1/ticker/price", params, false)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price for %s: %w", symbol, err)
	}

	return price, nil
}

func (b *Binance) GetLimits(ctx context.Context, symbol string) (*Limits, error) {
	b.limitsMu.RLock()
	if limits, ok := b.limitsCache[symbol]; ok {
		b.limitsMu.RUnlock()
		return limits, nil
	}
	b.limitsMu.RUnlock()

	params := map[string]string{
		"symbol": symbol,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
				MinQty     string `json:"minQty"`
				MaxQty     string `json:"maxQty"`
				TickSize   string `json:"tickSize"`
				Notional   string `json:"notional"`
			} `json:"filters"`
		} `json:"symbols"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	for _, s := range resp.Symbols {
		if s.Symbol != symbol {
			continue
		}

		limits := &Limits{Symbol: symbol}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				limits.QtyStep, _ = strconv.ParseFloat(f.StepSize, 64)
				limits.MinOrderQty, _ = strconv.ParseFloat(f.MinQty, 64)
				limits.MaxOrderQty, _ = strconv.ParseFloat(f.MaxQty, 64)
			case "PRICE_FILTER":
				limits.PriceStep, _ = strconv.ParseFloat(f.TickSize, 64)
			case "MIN_NOTIONAL":
				limits.MinNotional, _ = strconv.ParseFloat(f.Notional, 64)
			}
		}

		b.limitsMu.Lock()
		b.limitsCache[symbol] = limits
		b.limitsMu.Unlock()

		return limits, nil
	}

	return nil, fmt.Errorf("exchange info not found for %s", symbol)
}

// RoundQuantity приводит количество к шагу лота: floor до stepSize,
// подъём до minQty, результат округляется до 8 знаков.
// Если exchangeInfo недоступен - грубое округление до 3 знаков
func (b *Binance) RoundQuantity(ctx context.Context, symbol string, qty float64) (float64, error) {
	limits, err := b.GetLimits(ctx, symbol)
	if err != nil {
		return math.Round(qty*1000) / 1000, nil
	}

	rounded := utils.RoundToLotSize(qty, limits.QtyStep)
	if rounded < limits.MinOrderQty {
		rounded = limits.MinOrderQty
	}

	return math.Round(rounded*1e8) / 1e8, nil
}

func (b *Binance) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := map[string]string{
		"symbol":   symbol,
		"leverage": strconv.Itoa(leverage),
	}

	_, err := b.doRequest(ctx, http.MethodPost, "/fapi/v1/leverage", params, true)
	return err
}

func (b *Binance) SetMarginType(ctx context.Context, symbol, marginType string) error {
	params := map[string]string{
		"symbol":     symbol,
		"marginType": marginType,
	}

	_, err := b.doRequest(ctx, http.MethodPost, "/fapi/v1/marginType", params, true)
	if err != nil {
		// -4046: тип маржи уже установлен, это не ошибка
		var exchErr *ExchangeError
		if errors.As(err, &exchErr) && exchErr.Code == "-4046" {
			return nil
		}
		return err
	}

	return nil
}
