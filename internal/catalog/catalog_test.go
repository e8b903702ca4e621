package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogValid(t *testing.T) {
	cat := Default()
	if cat.Len() == 0 {
		t.Fatalf("default catalog is empty")
	}
	if _, ok := cat.Item("royalGarden"); !ok {
		t.Fatalf("royalGarden missing from default catalog")
	}
	football, ok := cat.Item("football")
	if !ok {
		t.Fatalf("football missing from default catalog")
	}
	if football.Purchasable || football.UnlockLevel != 10 {
		t.Fatalf("football should be auto-unlock-only at level 10: %+v", football)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]Item{
		{Key: "cozy", Kind: KindTheme},
		{Key: "cozy", Kind: KindTitle},
	})
	if err == nil {
		t.Fatalf("duplicate keys should be rejected")
	}
}

func TestNewRejectsBadItems(t *testing.T) {
	if _, err := New([]Item{{Key: "", Kind: KindTheme}}); err == nil {
		t.Fatalf("empty key should be rejected")
	}
	if _, err := New([]Item{{Key: "x", Kind: "hat"}}); err == nil {
		t.Fatalf("unknown kind should be rejected")
	}
	if _, err := New([]Item{{Key: "x", Kind: KindTheme, Price: -5}}); err == nil {
		t.Fatalf("negative price should be rejected")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yml")
	raw := `themes:
  - key: default
  - key: cozy
    price: 60
    purchasable: true
titles:
  - key: earlyBird
    price: 40
    purchasable: true
  - key: completionist
    unlock_inventory_count: 3
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cat, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cat.Len() != 4 {
		t.Fatalf("expected 4 items, got %d", cat.Len())
	}
	cozy, ok := cat.Item("cozy")
	if !ok || cozy.Kind != KindTheme || cozy.Price != 60 || !cozy.Purchasable {
		t.Fatalf("cozy parsed wrong: %+v", cozy)
	}
	comp, ok := cat.Item("completionist")
	if !ok || comp.Kind != KindTitle || comp.UnlockInventoryCount != 3 {
		t.Fatalf("completionist parsed wrong: %+v", comp)
	}
}

func TestItemsPreservesOrderAndCopies(t *testing.T) {
	cat := Default()
	items := cat.Items()
	if items[0].Key != "default" {
		t.Fatalf("catalog order not preserved: first item %q", items[0].Key)
	}
	items[0].Key = "mutated"
	if again := cat.Items(); again[0].Key != "default" {
		t.Fatalf("Items() exposes internal slice")
	}
}
