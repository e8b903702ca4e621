// Package progression implements the gamification core: XP, levels, login
// streaks, check-coin accounting, the cosmetic inventory, and the store's
// purchase/equip rules. Every operation is a pure transition over an Account
// value — it takes a snapshot, returns a new snapshot or an error, and never
// touches storage. Persistence and per-account serialization are the
// caller's concern; operations are deterministic so they can be re-applied
// against a fresh snapshot after an optimistic-concurrency conflict.
package progression

import "fmt"

// DayFormat is the calendar-day key used for streak idempotence and the
// daily task counter. Which timezone "today" is computed in is the caller's
// decision.
const DayFormat = "2006-01-02"

// Account is one user's progression state.
type Account struct {
	ID                   string
	Currency             int
	XP                   int // progress within the current level, [0,100)
	Level                int
	Rank                 string
	TasksCheckedOff      int
	TasksCheckedOffToday int
	TasksCheckedOffDay   string // day the today-counter belongs to
	LoginStreak          int
	LoginStreakBest      int
	LastLoginDay         string
	Goals                int
	Inventory            []string
	CurrentTheme         string
	CurrentTitle         string
	Version              int // storage optimistic-concurrency token, opaque here
}

// NewAccount returns the signup-time state. Baseline cosmetics are granted
// by Reconcile, not here.
func NewAccount(id string) Account {
	return Account{
		ID:    id,
		Level: 1,
		Rank:  RankForLevel(1),
	}
}

// Clone returns a copy that shares no mutable state with the receiver.
func (a Account) Clone() Account {
	out := a
	out.Inventory = append([]string(nil), a.Inventory...)
	return out
}

// Owns reports whether the account's inventory contains key.
func (a Account) Owns(key string) bool {
	for _, k := range a.Inventory {
		if k == key {
			return true
		}
	}
	return false
}

// CheckIntegrity validates the accounting invariants on a loaded snapshot.
// A violation means the stored state is corrupt; callers must surface it,
// not clamp it.
func (a Account) CheckIntegrity() error {
	if a.Currency < 0 {
		return fmt.Errorf("%w: negative currency %d", ErrCorruptAccount, a.Currency)
	}
	if a.XP < 0 || a.XP >= 100 {
		return fmt.Errorf("%w: xp %d out of [0,100)", ErrCorruptAccount, a.XP)
	}
	if a.Level < 1 {
		return fmt.Errorf("%w: level %d below 1", ErrCorruptAccount, a.Level)
	}
	if a.LoginStreakBest < a.LoginStreak {
		return fmt.Errorf("%w: best streak %d below current %d", ErrCorruptAccount, a.LoginStreakBest, a.LoginStreak)
	}
	if a.CurrentTheme != "" && !a.Owns(a.CurrentTheme) {
		return fmt.Errorf("%w: equipped theme %q not owned", ErrCorruptAccount, a.CurrentTheme)
	}
	if a.CurrentTitle != "" && !a.Owns(a.CurrentTitle) {
		return fmt.Errorf("%w: equipped title %q not owned", ErrCorruptAccount, a.CurrentTitle)
	}
	return nil
}
