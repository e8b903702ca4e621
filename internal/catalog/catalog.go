package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind distinguishes the two cosmetic namespaces.
type Kind string

const (
	KindTheme Kind = "theme"
	KindTitle Kind = "title"
)

// Item is one purchasable or auto-unlocking cosmetic. Items with
// Purchasable=false can never be bought; they are granted when their
// unlock thresholds are met. An item with no thresholds and
// Purchasable=false is part of the baseline every account starts with.
type Item struct {
	Key                  string `yaml:"key" json:"key"`
	Kind                 Kind   `yaml:"-" json:"kind"`
	Price                int    `yaml:"price" json:"price"`
	Purchasable          bool   `yaml:"purchasable" json:"purchasable"`
	UnlockLevel          int    `yaml:"unlock_level" json:"unlock_level,omitempty"`
	UnlockInventoryCount int    `yaml:"unlock_inventory_count" json:"unlock_inventory_count,omitempty"`
}

// Catalog is the fixed, ordered item configuration. It is loaded once at
// startup and never mutated afterwards.
type Catalog struct {
	items []Item
	byKey map[string]Item
}

func New(items []Item) (*Catalog, error) {
	byKey := make(map[string]Item, len(items))
	for _, item := range items {
		if item.Key == "" {
			return nil, fmt.Errorf("catalog item with empty key")
		}
		if item.Kind != KindTheme && item.Kind != KindTitle {
			return nil, fmt.Errorf("catalog item %q: unknown kind %q", item.Key, item.Kind)
		}
		if item.Price < 0 {
			return nil, fmt.Errorf("catalog item %q: negative price %d", item.Key, item.Price)
		}
		if _, dup := byKey[item.Key]; dup {
			return nil, fmt.Errorf("catalog item %q: duplicate key", item.Key)
		}
		byKey[item.Key] = item
	}
	return &Catalog{items: append([]Item(nil), items...), byKey: byKey}, nil
}

type catalogFile struct {
	Themes []Item `yaml:"themes"`
	Titles []Item `yaml:"titles"`
}

// Load reads a catalog from a YAML file with `themes` and `titles` sections.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %q: %w", path, err)
	}
	items := make([]Item, 0, len(file.Themes)+len(file.Titles))
	for _, item := range file.Themes {
		item.Kind = KindTheme
		items = append(items, item)
	}
	for _, item := range file.Titles {
		item.Kind = KindTitle
		items = append(items, item)
	}
	return New(items)
}

// Default is the compiled-in catalog used when no CATALOG_PATH is set.
func Default() *Catalog {
	cat, err := New([]Item{
		{Key: "default", Kind: KindTheme},
		{Key: "minimal", Kind: KindTheme},
		{Key: "cozy", Kind: KindTheme, Price: 60, Purchasable: true},
		{Key: "space", Kind: KindTheme, Price: 100, Purchasable: true, UnlockLevel: 3},
		{Key: "royalGarden", Kind: KindTheme, Price: 150, Purchasable: true},
		{Key: "football", Kind: KindTheme, UnlockLevel: 10},
		{Key: "earlyBird", Kind: KindTitle, Price: 40, Purchasable: true},
		{Key: "nightOwl", Kind: KindTitle, Price: 40, Purchasable: true},
		{Key: "streakLord", Kind: KindTitle, UnlockLevel: 8},
		{Key: "completionist", Kind: KindTitle, UnlockInventoryCount: 9},
	})
	if err != nil {
		panic(err)
	}
	return cat
}

// Items returns the ordered item list as a copy.
func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

func (c *Catalog) Item(key string) (Item, bool) {
	item, ok := c.byKey[key]
	return item, ok
}

func (c *Catalog) Len() int {
	return len(c.items)
}
