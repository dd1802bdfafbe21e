package utils

// validator.go - валидация данных
//
// Назначение:
// Проверка корректности входных данных вебхука и конфигурации.
//
// Функции:
// - ValidateSymbol: проверка формата символа (BTCUSDT)
// - NormalizeSymbol: приведение символа к биржевому формату
// - ValidateSide: проверка направления сделки (buy/sell)
// - ValidatePrice: проверка цены (> 0, конечная)
// - ValidateQuantity: проверка объёма
// - ValidateLeverage: проверка плеча
//
// Возвращает error с описанием проблемы или nil

import (
	"fmt"
	"math"
	"strings"
)

const (
	minSymbolLen = 2
	maxSymbolLen = 30
)

// ValidateSymbol проверяет формат торгового символа.
//
// Допустимы латинские буквы, цифры и разделители -, _, /.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is empty")
	}
	if len(symbol) < minSymbolLen {
		return fmt.Errorf("symbol %q is too short", symbol)
	}
	if len(symbol) > maxSymbolLen {
		return fmt.Errorf("symbol %q is too long", symbol)
	}
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '/':
		default:
			return fmt.Errorf("symbol %q contains invalid character %q", symbol, r)
		}
	}
	return nil
}

// NormalizeSymbol приводит символ к формату биржи: верхний регистр,
// без разделителей. "btc-usdt" -> "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "/", "")
	return s
}

// ValidateSide проверяет направление сделки.
func ValidateSide(side string) error {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "buy", "sell":
		return nil
	default:
		return fmt.Errorf("side %q is not supported (expected buy or sell)", side)
	}
}

// ValidatePrice проверяет цену: положительная и конечная.
func ValidatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("price is not a finite number")
	}
	if price <= 0 {
		return fmt.Errorf("price must be positive, got %v", price)
	}
	return nil
}

// ValidateQuantity проверяет объём позиции.
func ValidateQuantity(qty float64) error {
	if math.IsNaN(qty) || math.IsInf(qty, 0) {
		return fmt.Errorf("quantity is not a finite number")
	}
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive, got %v", qty)
	}
	if qty > 1e9 {
		return fmt.Errorf("quantity %v is unreasonably large", qty)
	}
	return nil
}

// ValidateLeverage проверяет плечо. Диапазон USDT-M фьючерсов: 1..125.
func ValidateLeverage(leverage int) error {
	if leverage < 1 {
		return fmt.Errorf("leverage must be at least 1, got %d", leverage)
	}
	if leverage > 125 {
		return fmt.Errorf("leverage must not exceed 125, got %d", leverage)
	}
	return nil
}
