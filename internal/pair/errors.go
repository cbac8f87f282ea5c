package pair

import "errors"

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidConfig     = errors.New("invalid pair config")
	ErrNoQuote           = errors.New("pair cannot quote in this direction")
	ErrInsufficientFunds = errors.New("insufficient pair tokens")
	ErrNFTNotDeposited   = errors.New("nft not deposited in pair")
	ErrNFTAlreadyHeld    = errors.New("nft already deposited in pair")
	ErrUnknownType       = errors.New("unknown pair type")
)
