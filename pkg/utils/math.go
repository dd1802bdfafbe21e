package utils

import (
	"math"
)

// math.go - математические утилиты для торговых операций
//
// Назначение:
// Вспомогательные математические функции для расчёта объёмов и PNL.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - RoundToLotSize / RoundToTickSize: округление до шага лота и цены биржи
// - CalculateQuantity: объём позиции из маржи, плеча и цены
// - PnlPercent: PNL в процентах от номинала позиции

// RoundToLotSize округляет значение ВНИЗ до ближайшего кратного lotSize.
//
// Используется для округления объёма ордера до минимального шага биржи.
// Округление вниз гарантирует, что мы не превысим доступные средства.
//
// Параметры:
//   - value: исходное значение (объём в монетах актива)
//   - lotSize: минимальный шаг изменения объёма на бирже
//
// Возвращает:
//   - Округлённое значение, кратное lotSize
//   - Если lotSize <= 0, возвращает исходное значение
//
// Примеры:
//   - RoundToLotSize(0.123456, 0.001) = 0.123
//   - RoundToLotSize(1.999, 0.01) = 1.99
//   - RoundToLotSize(100.5, 1.0) = 100.0
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	// Округляем вниз, чтобы не превысить доступные средства.
	// epsilon компенсирует погрешность деления (0.022/0.001 = 21.999...)
	return math.Floor(value/lotSize+1e-9) * lotSize
}

// RoundToTickSize округляет цену к ближайшему кратному tickSize.
//
// Биржа отклоняет лимитные ордера с ценой, не кратной шагу цены символа.
func RoundToTickSize(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	return math.Round(price/tickSize) * tickSize
}

// CalculateQuantity расчитывает объём позиции в монетах актива.
//
// Формула:
//
//	qty = (маржа × плечо) / цена
//
// Параметры:
//   - margin: сумма маржи в USDT
//   - leverage: плечо
//   - price: цена входа
//
// Возвращает:
//   - Объём в монетах актива (до округления по lotSize)
//   - 0 если параметры некорректны
//
// Пример:
//   - CalculateQuantity(100, 10, 25000) = 0.04
func CalculateQuantity(margin float64, leverage int, price float64) float64 {
	if margin <= 0 || leverage <= 0 || price <= 0 {
		return 0
	}
	return margin * float64(leverage) / price
}

// PnlPercent расчитывает PNL в процентах от номинала позиции.
//
// Формула:
//
//	pnl% = realizedPnl / (qty × entryPrice) × 100
//
// Результат округляется до двух знаков после запятой.
//
// Параметры:
//   - realizedPnl: реализованный PNL в USDT
//   - quantity: объём позиции
//   - entryPrice: цена входа
//
// Возвращает:
//   - PNL в процентах, округлённый до 2 знаков
//   - 0 если номинал позиции равен нулю
func PnlPercent(realizedPnl, quantity, entryPrice float64) float64 {
	notional := quantity * entryPrice
	if notional == 0 {
		return 0
	}
	return math.Round(realizedPnl/notional*100*100) / 100
}

// Round2 округляет число до двух знаков после запятой.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
