package progression

import (
	"errors"
	"reflect"
	"testing"

	"github.com/FLG2005/todo-api/internal/catalog"
)

func TestEquipRequiresOwnership(t *testing.T) {
	cat := testCatalog(t)
	acc := NewAccount("u1")

	out, err := Equip(acc, cat, "cozy", catalog.KindTheme)
	if !errors.Is(err, ErrNotOwned) {
		t.Fatalf("expected not owned, got %v", err)
	}
	if !reflect.DeepEqual(out, acc) {
		t.Fatalf("failed equip must leave account unchanged")
	}
}

func TestEquipSetsCurrentTheme(t *testing.T) {
	cat := testCatalog(t)
	acc := NewAccount("u1")
	acc.Inventory = []string{"cozy", "streakLord"}

	out, err := Equip(acc, cat, "cozy", catalog.KindTheme)
	if err != nil {
		t.Fatalf("equip theme: %v", err)
	}
	if out.CurrentTheme != "cozy" {
		t.Fatalf("theme not set: %q", out.CurrentTheme)
	}

	out, err = Equip(out, cat, "streakLord", catalog.KindTitle)
	if err != nil {
		t.Fatalf("equip title: %v", err)
	}
	if out.CurrentTitle != "streakLord" || out.CurrentTheme != "cozy" {
		t.Fatalf("title equip clobbered state: theme=%q title=%q", out.CurrentTheme, out.CurrentTitle)
	}
}

func TestEquipKindMustMatch(t *testing.T) {
	cat := testCatalog(t)
	acc := NewAccount("u1")
	acc.Inventory = []string{"cozy"}

	if _, err := Equip(acc, cat, "cozy", catalog.KindTitle); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("a theme must not be wearable as a title, got %v", err)
	}
}

func TestReEquipIsNoOp(t *testing.T) {
	cat := testCatalog(t)
	acc := NewAccount("u1")
	acc.Inventory = []string{"cozy"}

	once, err := Equip(acc, cat, "cozy", catalog.KindTheme)
	if err != nil {
		t.Fatalf("equip: %v", err)
	}
	twice, err := Equip(once, cat, "cozy", catalog.KindTheme)
	if err != nil {
		t.Fatalf("re-equip: %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("re-equip changed state")
	}
}

func TestEquipHasNoSideEffects(t *testing.T) {
	cat := testCatalog(t)
	acc := NewAccount("u1")
	acc.Currency = 75
	acc.Inventory = []string{"cozy"}

	out, err := Equip(acc, cat, "cozy", catalog.KindTheme)
	if err != nil {
		t.Fatalf("equip: %v", err)
	}
	if out.Currency != 75 || len(out.Inventory) != 1 {
		t.Fatalf("equip must not touch currency or inventory")
	}
}
