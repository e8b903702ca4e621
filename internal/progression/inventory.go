package progression

import "github.com/FLG2005/todo-api/internal/catalog"

// Reconcile grants every auto-unlock item the account now qualifies for.
// Only non-purchasable items auto-unlock; a purchasable item with an unlock
// level is gated, not granted. Inventory is an append-only set: adding an
// owned key is a no-op, and re-running on the same state is a fixed point,
// so retried or duplicated events are harmless.
func Reconcile(acc Account, cat *catalog.Catalog) Account {
	out := acc.Clone()
	// Granting one item can satisfy another item's inventory-count
	// threshold, so loop until nothing changes.
	for {
		changed := false
		for _, item := range cat.Items() {
			if item.Purchasable || out.Owns(item.Key) {
				continue
			}
			if !autoUnlockMet(out, item) {
				continue
			}
			out.Inventory = append(out.Inventory, item.Key)
			changed = true
		}
		if !changed {
			return out
		}
	}
}

func autoUnlockMet(acc Account, item catalog.Item) bool {
	if !LevelRequirementMet(acc.Level, item.UnlockLevel) {
		return false
	}
	if item.UnlockInventoryCount > 0 && len(acc.Inventory) < item.UnlockInventoryCount {
		return false
	}
	return true
}

// IsOwned is the membership test over the account's inventory.
func IsOwned(acc Account, key string) bool {
	return acc.Owns(key)
}

// IsEquippable reports whether key may be equipped: ownership is the only
// requirement.
func IsEquippable(acc Account, key string) bool {
	return acc.Owns(key)
}
