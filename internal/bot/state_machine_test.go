package bot

import (
	"testing"

	"tradehook/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"вход заполнен", models.StatePendingEntry, models.StateEntryFilled, true},
		{"отмена без заполнения", models.StatePendingEntry, models.StateClosed, true},
		{"начало выхода", models.StateEntryFilled, models.StateExitPending, true},
		{"завершение выхода", models.StateExitPending, models.StateClosed, true},

		{"пропуск заполнения", models.StatePendingEntry, models.StateExitPending, false},
		{"выход без позиции", models.StatePendingEntry, models.StatePendingEntry, false},
		{"закрытие минуя выход", models.StateEntryFilled, models.StateClosed, false},
		{"откат выхода", models.StateExitPending, models.StateEntryFilled, false},
		{"реанимация закрытой", models.StateClosed, models.StateEntryFilled, false},
		{"неизвестное состояние", "UNKNOWN", models.StateClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, ожидалось %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestValidTransitions_ClosedIsTerminal(t *testing.T) {
	if len(ValidTransitions[models.StateClosed]) != 0 {
		t.Errorf("из CLOSED есть переходы: %v", ValidTransitions[models.StateClosed])
	}
}

func TestIsActive(t *testing.T) {
	active := []string{models.StatePendingEntry, models.StateEntryFilled, models.StateExitPending}
	for _, s := range active {
		if !IsActive(s) {
			t.Errorf("IsActive(%q) = false, ожидалось true", s)
		}
	}
	if IsActive(models.StateClosed) {
		t.Errorf("IsActive(CLOSED) = true")
	}
	if IsActive("UNKNOWN") {
		t.Errorf("IsActive(UNKNOWN) = true")
	}
}

func TestStateInfo_KnownStates(t *testing.T) {
	states := []string{
		models.StatePendingEntry,
		models.StateEntryFilled,
		models.StateExitPending,
		models.StateClosed,
	}
	unknown := StateInfo("NOT_A_STATE")
	for _, s := range states {
		if StateInfo(s) == unknown {
			t.Errorf("StateInfo(%q) вернул описание неизвестного состояния", s)
		}
	}
}
