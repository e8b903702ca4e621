package progression

import "github.com/FLG2005/todo-api/internal/catalog"

// Equip switches the active theme or title to itemKey. The item must be
// owned and must actually be of the requested kind — owning a theme does
// not let it be worn as a title. Re-equipping the current item is a
// harmless no-op. No currency or inventory changes.
func Equip(acc Account, cat *catalog.Catalog, itemKey string, kind catalog.Kind) (Account, error) {
	if !IsEquippable(acc, itemKey) {
		return acc, ErrNotOwned
	}
	item, ok := cat.Item(itemKey)
	if !ok || item.Kind != kind {
		return acc, ErrNotOwned
	}
	out := acc.Clone()
	switch kind {
	case catalog.KindTheme:
		out.CurrentTheme = itemKey
	case catalog.KindTitle:
		out.CurrentTitle = itemKey
	}
	return out, nil
}
