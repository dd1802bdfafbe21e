// Package ledger реализует in-memory реестр активных сделок.
package ledger

import (
	"sync"

	"tradehook/internal/models"
)

// Ledger - потокобезопасный реестр сделок по ключу (символ, интервал).
//
// Единственный источник истины о состоянии сделок: webhook handler,
// наблюдатель заполнения, таймер принудительного выхода и поллер выхода
// работают с одной записью конкурентно. Все мутации идут через методы
// под общим мьютексом, наружу отдаются только копии
type Ledger struct {
	mu     sync.Mutex
	trades map[models.Key]*models.Trade
}

// New создает пустой реестр
func New() *Ledger {
	return &Ledger{
		trades: make(map[models.Key]*models.Trade),
	}
}

// Get возвращает копию записи (ok=false если записи нет)
func (l *Ledger) Get(key models.Key) (models.Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trades[key]
	if !ok {
		return models.Trade{}, false
	}
	return *t, true
}

// Put создает или заменяет запись
func (l *Ledger) Put(key models.Key, trade models.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades[key] = &trade
}

// Update применяет мутатор к записи под блокировкой.
// Возвращает false если записи нет (мутатор не вызывается)
func (l *Ledger) Update(key models.Key, fn func(*models.Trade)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trades[key]
	if !ok {
		return false
	}
	fn(t)
	return true
}

// TransitionState атомарно переводит запись из состояния from в to.
// Возвращает false если записи нет или она не в состоянии from -
// проигравший гонку воркер (таймер против сигнала выхода) отступает
func (l *Ledger) TransitionState(key models.Key, from, to string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trades[key]
	if !ok || t.State != from {
		return false
	}
	t.State = to
	return true
}

// MarkEntryFilled записывает факт заполнения входа. Запись один раз:
// повторные вызовы (частичное заполнение за частичным) возвращают false
func (l *Ledger) MarkEntryFilled(key models.Key, fn func(*models.Trade)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trades[key]
	if !ok || t.EntryFilled {
		return false
	}
	t.EntryFilled = true
	if fn != nil {
		fn(t)
	}
	return true
}

// MarkExitSignal выставляет флаг сигнального выхода на всех записях
// символа. Таймер принудительного выхода проверяет флаг и отступает
func (l *Ledger) MarkExitSignal(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, t := range l.trades {
		if key.Symbol == symbol {
			t.ExitSignalReceived = true
		}
	}
}

// Remove удаляет запись
func (l *Ledger) Remove(key models.Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.trades, key)
}

// RemoveAllForSymbol удаляет все записи символа (все интервалы).
// Вызывается после подтверждённого закрытия позиции: на бирже позиция
// одна на символ, локальные записи всех таймфреймов теряют смысл
func (l *Ledger) RemoveAllForSymbol(symbol string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key := range l.trades {
		if key.Symbol == symbol {
			delete(l.trades, key)
			removed++
		}
	}
	return removed
}

// FindBySymbol возвращает копии всех записей символа
func (l *Ledger) FindBySymbol(symbol string) []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.Trade
	for key, t := range l.trades {
		if key.Symbol == symbol {
			out = append(out, *t)
		}
	}
	return out
}

// ActiveCount возвращает число незакрытых записей
func (l *Ledger) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, t := range l.trades {
		if t.State != models.StateClosed {
			count++
		}
	}
	return count
}

// Snapshot возвращает копии всех записей (для отчётов и диагностики)
func (l *Ledger) Snapshot() map[models.Key]models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[models.Key]models.Trade, len(l.trades))
	for key, t := range l.trades {
		out[key] = *t
	}
	return out
}
