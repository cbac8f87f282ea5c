package pair

import (
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/nft-amm/internal/types"
)

// TypeKind identifies a pair type.
type TypeKind string

const (
	KindToken TypeKind = "token"
	KindNft   TypeKind = "nft"
	KindTrade TypeKind = "trade"
)

// Type decides which directions a pair trades and what it does with proceeds.
// Implementations are TokenType, NftType and TradeType.
type Type interface {
	Kind() TypeKind
	sealed()
}

// TokenType pairs hold tokens and only buy NFTs.
type TokenType struct{}

// NftType pairs hold NFTs and only sell them.
type NftType struct{}

// TradeType pairs trade both ways and may keep proceeds as liquidity.
type TradeType struct {
	SwapFeePercent decimal.Decimal
	ReinvestTokens bool
	ReinvestNFTs   bool
}

func (TokenType) Kind() TypeKind { return KindToken }
func (NftType) Kind() TypeKind   { return KindNft }
func (TradeType) Kind() TypeKind { return KindTrade }

func (TokenType) sealed() {}
func (NftType) sealed()   {}
func (TradeType) sealed() {}

// accepts reports whether t trades in direction d.
func accepts(t Type, d types.Direction) bool {
	switch t.(type) {
	case TokenType:
		return d == types.SellToPair
	case NftType:
		return d == types.BuyFromPair
	case TradeType:
		return true
	default:
		return false
	}
}

func swapFeePercent(t Type) decimal.Decimal {
	if trade, ok := t.(TradeType); ok {
		return trade.SwapFeePercent
	}
	return decimal.Zero
}

func reinvestTokens(t Type) bool {
	trade, ok := t.(TradeType)
	return ok && trade.ReinvestTokens
}

func reinvestNFTs(t Type) bool {
	trade, ok := t.(TradeType)
	return ok && trade.ReinvestNFTs
}

// TypeDescriptor is the flat form of a Type for storage and the API.
type TypeDescriptor struct {
	Kind           TypeKind `json:"type" yaml:"type"`
	SwapFeePercent string   `json:"swap_fee_percent,omitempty" yaml:"swap_fee_percent"`
	ReinvestTokens bool     `json:"reinvest_tokens,omitempty" yaml:"reinvest_tokens"`
	ReinvestNFTs   bool     `json:"reinvest_nfts,omitempty" yaml:"reinvest_nfts"`
}

// DescribeType flattens t.
func DescribeType(t Type) TypeDescriptor {
	switch t := t.(type) {
	case TokenType:
		return TypeDescriptor{Kind: KindToken}
	case NftType:
		return TypeDescriptor{Kind: KindNft}
	case TradeType:
		return TypeDescriptor{
			Kind:           KindTrade,
			SwapFeePercent: t.SwapFeePercent.String(),
			ReinvestTokens: t.ReinvestTokens,
			ReinvestNFTs:   t.ReinvestNFTs,
		}
	default:
		return TypeDescriptor{}
	}
}

// Build parses d into a Type.
func (d TypeDescriptor) Build() (Type, error) {
	switch d.Kind {
	case KindToken:
		return TokenType{}, nil
	case KindNft:
		return NftType{}, nil
	case KindTrade:
		fee := decimal.Zero
		if d.SwapFeePercent != "" {
			var err error
			if fee, err = decimal.NewFromString(d.SwapFeePercent); err != nil {
				return nil, err
			}
		}
		return TradeType{SwapFeePercent: fee, ReinvestTokens: d.ReinvestTokens, ReinvestNFTs: d.ReinvestNFTs}, nil
	default:
		return nil, ErrUnknownType
	}
}
