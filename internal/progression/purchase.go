package progression

import "github.com/FLG2005/todo-api/internal/catalog"

// Purchase validates and executes a store purchase. Preconditions run in a
// fixed order and the first failure wins; on any failure the input account
// is returned unchanged, so a failed purchase can never leave a partial
// debit behind. expectedPrice is the price the client displayed, checked
// against the catalog to reject stale client data.
func Purchase(acc Account, cat *catalog.Catalog, itemKey string, expectedPrice int) (Account, error) {
	item, ok := cat.Item(itemKey)
	if !ok {
		return acc, ErrUnknownItem
	}
	if !item.Purchasable {
		return acc, ErrNotPurchasable
	}
	if !LevelRequirementMet(acc.Level, item.UnlockLevel) {
		return acc, ErrLevelTooLow
	}
	if acc.Owns(itemKey) {
		return acc, ErrAlreadyOwned
	}
	if acc.Currency < item.Price {
		return acc, ErrInsufficientFunds
	}
	if expectedPrice != item.Price {
		return acc, ErrPriceMismatch
	}
	out := acc.Clone()
	out.Currency -= item.Price
	out.Inventory = append(out.Inventory, itemKey)
	return out, nil
}
