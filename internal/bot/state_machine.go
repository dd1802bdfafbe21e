package bot

import "tradehook/internal/models"

// ValidTransitions определяет допустимые переходы между состояниями сделки
var ValidTransitions = map[string][]string{
	models.StatePendingEntry: {models.StateEntryFilled, models.StateClosed}, // Closed при отмене лимитки без заполнения
	models.StateEntryFilled:  {models.StateExitPending},
	models.StateExitPending:  {models.StateClosed},
	models.StateClosed:       {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для логов и отладки
func StateInfo(s string) string {
	switch s {
	case models.StatePendingEntry:
		return "Лимитный ордер входа выставлен, ожидание заполнения"
	case models.StateEntryFilled:
		return "Позиция открыта, ожидание сигнала выхода"
	case models.StateExitPending:
		return "Закрытие позиции..."
	case models.StateClosed:
		return "Сделка завершена"
	default:
		return "Неизвестное состояние"
	}
}

// IsActive возвращает true если сделка ещё живёт
func IsActive(s string) bool {
	return s == models.StatePendingEntry || s == models.StateEntryFilled || s == models.StateExitPending
}
