package progression

import (
	"errors"
	"testing"
)

func TestCheckIntegrity(t *testing.T) {
	good := NewAccount("u1")
	good.Inventory = []string{"default"}
	good.CurrentTheme = "default"
	if err := good.CheckIntegrity(); err != nil {
		t.Fatalf("valid account flagged: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Account)
	}{
		{"negative currency", func(a *Account) { a.Currency = -1 }},
		{"xp at 100", func(a *Account) { a.XP = 100 }},
		{"negative xp", func(a *Account) { a.XP = -5 }},
		{"level zero", func(a *Account) { a.Level = 0 }},
		{"best below current streak", func(a *Account) { a.LoginStreak = 4; a.LoginStreakBest = 2 }},
		{"equipped theme unowned", func(a *Account) { a.CurrentTheme = "ghost" }},
		{"equipped title unowned", func(a *Account) { a.CurrentTitle = "ghost" }},
	}
	for _, tc := range cases {
		acc := good.Clone()
		tc.mutate(&acc)
		err := acc.CheckIntegrity()
		if !errors.Is(err, ErrCorruptAccount) {
			t.Fatalf("%s: expected ErrCorruptAccount, got %v", tc.name, err)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	acc := NewAccount("u1")
	acc.Inventory = []string{"default"}
	clone := acc.Clone()
	clone.Inventory[0] = "mutated"
	if acc.Inventory[0] != "default" {
		t.Fatalf("clone shares inventory backing array")
	}
}
