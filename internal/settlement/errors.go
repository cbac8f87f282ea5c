package settlement

import "errors"

var (
	// ErrInsufficientFunds means the debited account holds less than the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotOwner means the NFT is not held by the sender of the transfer.
	ErrNotOwner = errors.New("nft not owned by sender")
	// ErrInvalidTransfer means a transfer leg is malformed.
	ErrInvalidTransfer = errors.New("invalid transfer")
)

// IsPermanent reports whether retrying err cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrInvalidTransfer)
}
