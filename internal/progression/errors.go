package progression

import "errors"

// All errors are recoverable and map to user-facing messages at the HTTP
// boundary; none of them should crash the process. ErrCorruptAccount is the
// exception in spirit: it signals a data-integrity problem an operator has
// to look at, and is never clamped away.
var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrUnknownItem            = errors.New("unknown store item")
	ErrNotPurchasable         = errors.New("item is not purchasable")
	ErrLevelTooLow            = errors.New("level too low")
	ErrAlreadyOwned           = errors.New("item already owned")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrPriceMismatch          = errors.New("price mismatch")
	ErrNotOwned               = errors.New("item not owned")
	ErrCorruptAccount         = errors.New("account state failed integrity check")
)
