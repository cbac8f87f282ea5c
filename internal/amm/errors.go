package amm

import "errors"

var (
	// ErrInvalidRequest wraps every command validation failure.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrAlreadyMinted means a dev mint targeted an NFT that has an owner.
	ErrAlreadyMinted = errors.New("nft already minted")
)
