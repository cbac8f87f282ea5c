package amm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
)

// Command is an owner or dev operation. Validate only checks the command's
// own fields; state-dependent checks happen inside the transaction.
type Command interface {
	GetType() string
	Validate() error
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

type CreatePairCommand struct {
	Sender         string              `json:"sender"`
	Collection     string              `json:"collection"`
	Denom          string              `json:"denom"`
	Type           pair.TypeDescriptor `json:"pair_type"`
	Curve          curve.Descriptor    `json:"bonding_curve"`
	AssetRecipient string              `json:"asset_recipient,omitempty"`
}

func (c CreatePairCommand) GetType() string { return "create_pair" }

func (c CreatePairCommand) Validate() error {
	if c.Sender == "" {
		return invalid("sender cannot be empty")
	}
	if c.Collection == "" {
		return invalid("collection cannot be empty")
	}
	if c.Denom == "" {
		return invalid("denom cannot be empty")
	}
	return nil
}

type DepositTokensCommand struct {
	Sender string      `json:"sender"`
	Pair   string      `json:"pair"`
	Amount uint256.Int `json:"-"`
}

func (c DepositTokensCommand) GetType() string { return "deposit_tokens" }

func (c DepositTokensCommand) Validate() error {
	if err := validatePairCommand(c.Sender, c.Pair); err != nil {
		return err
	}
	if c.Amount.IsZero() {
		return invalid("amount must be positive")
	}
	return nil
}

type WithdrawTokensCommand struct {
	Sender string      `json:"sender"`
	Pair   string      `json:"pair"`
	Amount uint256.Int `json:"-"`
	// Recipient defaults to the pair's asset recipient.
	Recipient string `json:"recipient,omitempty"`
}

func (c WithdrawTokensCommand) GetType() string { return "withdraw_tokens" }

func (c WithdrawTokensCommand) Validate() error {
	if err := validatePairCommand(c.Sender, c.Pair); err != nil {
		return err
	}
	if c.Amount.IsZero() {
		return invalid("amount must be positive")
	}
	return nil
}

type DepositNFTsCommand struct {
	Sender   string   `json:"sender"`
	Pair     string   `json:"pair"`
	TokenIDs []string `json:"token_ids"`
}

func (c DepositNFTsCommand) GetType() string { return "deposit_nfts" }

func (c DepositNFTsCommand) Validate() error {
	if err := validatePairCommand(c.Sender, c.Pair); err != nil {
		return err
	}
	return validateTokenIDs(c.TokenIDs)
}

type WithdrawNFTsCommand struct {
	Sender    string   `json:"sender"`
	Pair      string   `json:"pair"`
	TokenIDs  []string `json:"token_ids"`
	Recipient string   `json:"recipient,omitempty"`
}

func (c WithdrawNFTsCommand) GetType() string { return "withdraw_nfts" }

func (c WithdrawNFTsCommand) Validate() error {
	if err := validatePairCommand(c.Sender, c.Pair); err != nil {
		return err
	}
	return validateTokenIDs(c.TokenIDs)
}

// WithdrawAnyNFTsCommand withdraws the Count lowest token ids.
type WithdrawAnyNFTsCommand struct {
	Sender    string `json:"sender"`
	Pair      string `json:"pair"`
	Count     int    `json:"count"`
	Recipient string `json:"recipient,omitempty"`
}

func (c WithdrawAnyNFTsCommand) GetType() string { return "withdraw_any_nfts" }

func (c WithdrawAnyNFTsCommand) Validate() error {
	if err := validatePairCommand(c.Sender, c.Pair); err != nil {
		return err
	}
	if c.Count <= 0 {
		return invalid("count must be positive, got: %d", c.Count)
	}
	return nil
}

// WithdrawAllCommand empties the pair and deactivates it.
type WithdrawAllCommand struct {
	Sender    string `json:"sender"`
	Pair      string `json:"pair"`
	Recipient string `json:"recipient,omitempty"`
}

func (c WithdrawAllCommand) GetType() string { return "withdraw_all" }

func (c WithdrawAllCommand) Validate() error {
	return validatePairCommand(c.Sender, c.Pair)
}

// UpdatePairConfigCommand changes only the fields that are set.
type UpdatePairConfigCommand struct {
	Sender         string               `json:"sender"`
	Pair           string               `json:"pair"`
	Type           *pair.TypeDescriptor `json:"pair_type,omitempty"`
	Curve          *curve.Descriptor    `json:"bonding_curve,omitempty"`
	IsActive       *bool                `json:"is_active,omitempty"`
	AssetRecipient *string              `json:"asset_recipient,omitempty"`
}

func (c UpdatePairConfigCommand) GetType() string { return "update_pair_config" }

func (c UpdatePairConfigCommand) Validate() error {
	if err := validatePairCommand(c.Sender, c.Pair); err != nil {
		return err
	}
	if c.Type == nil && c.Curve == nil && c.IsActive == nil && c.AssetRecipient == nil {
		return invalid("nothing to update")
	}
	return nil
}

// patch builds the typed patch. Curves are validated here; the pair checks
// the combination.
func (c UpdatePairConfigCommand) patch() (pair.ConfigPatch, error) {
	patch := pair.ConfigPatch{IsActive: c.IsActive, AssetRecipient: c.AssetRecipient}
	if c.Type != nil {
		t, err := c.Type.Build()
		if err != nil {
			return patch, fmt.Errorf("%w: %v", pair.ErrInvalidConfig, err)
		}
		patch.Type = t
	}
	if c.Curve != nil {
		cv, err := c.Curve.Build()
		if err != nil {
			return patch, fmt.Errorf("%w: %v", pair.ErrInvalidConfig, err)
		}
		patch.Curve = cv
	}
	return patch, nil
}

// CreditCommand mints tokens into an account (dev mode).
type CreditCommand struct {
	Account string      `json:"account"`
	Denom   string      `json:"denom"`
	Amount  uint256.Int `json:"-"`
}

func (c CreditCommand) GetType() string { return "credit" }

func (c CreditCommand) Validate() error {
	if c.Account == "" || c.Denom == "" {
		return invalid("account and denom are required")
	}
	if c.Amount.IsZero() {
		return invalid("amount must be positive")
	}
	return nil
}

// MintCommand assigns fresh NFTs to an owner (dev mode).
type MintCommand struct {
	Collection string   `json:"collection"`
	Owner      string   `json:"owner"`
	TokenIDs   []string `json:"token_ids"`
}

func (c MintCommand) GetType() string { return "mint" }

func (c MintCommand) Validate() error {
	if c.Collection == "" || c.Owner == "" {
		return invalid("collection and owner are required")
	}
	return validateTokenIDs(c.TokenIDs)
}

func validatePairCommand(sender, address string) error {
	if sender == "" {
		return invalid("sender cannot be empty")
	}
	if address == "" {
		return invalid("pair cannot be empty")
	}
	return nil
}

func validateTokenIDs(ids []string) error {
	if len(ids) == 0 {
		return invalid("token_ids cannot be empty")
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return invalid("token id cannot be empty")
		}
		if _, dup := seen[id]; dup {
			return invalid("duplicate token id %s", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
