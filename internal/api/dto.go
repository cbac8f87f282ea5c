package api

import (
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/swap"
	"github.com/rovshanmuradov/nft-amm/internal/types"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// Amounts travel as base-10 strings so that 256-bit values survive JSON.

type errorResponse struct {
	Error string `json:"error"`
}

type tokensRequest struct {
	Sender    string `json:"sender"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient,omitempty"`
}

type creditRequest struct {
	Account string `json:"account"`
	Denom   string `json:"denom"`
	Amount  string `json:"amount"`
}

type sellOrderRequest struct {
	TokenID   string `json:"token_id"`
	MinOutput string `json:"min_output"`
}

type sellRequest struct {
	Sender     string             `json:"sender"`
	Collection string             `json:"collection"`
	Denom      string             `json:"denom"`
	Orders     []sellOrderRequest `json:"orders"`
	Params     swap.Params        `json:"params"`
}

type buyRequest struct {
	Sender     string      `json:"sender"`
	Collection string      `json:"collection"`
	Denom      string      `json:"denom"`
	MaxInputs  []string    `json:"max_inputs"`
	Params     swap.Params `json:"params"`
}

type directSwapRequest struct {
	Sender  string `json:"sender"`
	TokenID string `json:"token_id,omitempty"`
	// Bound is the minimum output of a sell or the maximum input of a buy.
	Bound  string      `json:"bound"`
	Params swap.Params `json:"params"`
}

type pageQuery struct {
	Limit      int    `query:"limit"`
	StartAfter string `query:"start_after"`
	Descending bool   `query:"descending"`
}

func (q pageQuery) options() types.QueryOptions {
	return types.QueryOptions{Limit: q.Limit, StartAfter: q.StartAfter, Descending: q.Descending}
}

type listPairsQuery struct {
	Collection string `query:"collection"`
	Owner      string `query:"owner"`
	Limit      int    `query:"limit"`
	StartAfter string `query:"start_after"`
	Descending bool   `query:"descending"`
}

func (q listPairsQuery) options() types.QueryOptions {
	return pageQuery{Limit: q.Limit, StartAfter: q.StartAfter, Descending: q.Descending}.options()
}

type directionQuery struct {
	Direction string `query:"direction"`
	Limit     int    `query:"limit"`
}

type bestQuotesQuery struct {
	Denom       string `query:"denom"`
	Direction   string `query:"direction"`
	Limit       int    `query:"limit"`
	CursorPrice string `query:"cursor_price"`
	CursorPair  string `query:"cursor_pair"`
}

type simSwapsQuery struct {
	Denom     string `query:"denom"`
	Direction string `query:"direction"`
	N         int    `query:"n"`
}

type historyQuery struct {
	Pair   string `query:"pair"`
	Trader string `query:"trader"`
	Limit  int    `query:"limit"`
}

type pairView struct {
	Address          string               `json:"address"`
	Collection       string               `json:"collection"`
	Owner            string               `json:"owner"`
	Denom            string               `json:"denom"`
	PairType         pair.TypeDescriptor  `json:"pair_type"`
	BondingCurve     curve.Descriptor     `json:"bonding_curve"`
	IsActive         bool                 `json:"is_active"`
	AssetRecipient   string               `json:"asset_recipient,omitempty"`
	TotalTokens      string               `json:"total_tokens"`
	TotalNFTs        uint64               `json:"total_nfts"`
	SellToPairQuote  *payout.QuoteSummary `json:"sell_to_pair_quote"`
	BuyFromPairQuote *payout.QuoteSummary `json:"buy_from_pair_quote"`
}

func newPairView(p *pair.Pair) pairView {
	return pairView{
		Address:          p.Address,
		Collection:       p.Immutable.Collection,
		Owner:            p.Immutable.Owner,
		Denom:            p.Immutable.Denom,
		PairType:         pair.DescribeType(p.Config.Type),
		BondingCurve:     curve.Describe(p.Config.Curve),
		IsActive:         p.Config.IsActive,
		AssetRecipient:   p.Config.AssetRecipient,
		TotalTokens:      p.TotalTokens.Dec(),
		TotalNFTs:        p.Internal.TotalNFTs,
		SellToPairQuote:  p.Internal.SellToPairQuote,
		BuyFromPairQuote: p.Internal.BuyFromPairQuote,
	}
}

type entryView struct {
	Pair       string          `json:"pair"`
	Collection string          `json:"collection"`
	Denom      string          `json:"denom"`
	Direction  types.Direction `json:"direction"`
	Price      string          `json:"price"`
}

func newEntryViews(entries []index.Entry) []entryView {
	views := make([]entryView, len(entries))
	for i, e := range entries {
		views[i] = entryView{
			Pair:       e.Pair,
			Collection: e.Collection,
			Denom:      e.Denom,
			Direction:  e.Direction,
			Price:      e.Price.Dec(),
		}
	}
	return views
}

type fillView struct {
	swap.Fill
	Price string `json:"price"`
}

type skippedView struct {
	Unit    int    `json:"unit"`
	TokenID string `json:"token_id,omitempty"`
	Error   string `json:"error"`
}

type resultView struct {
	Fills   []fillView    `json:"fills"`
	Skipped []skippedView `json:"skipped"`
	Volume  string        `json:"volume"`
}

func newFillView(f swap.Fill) fillView {
	return fillView{Fill: f, Price: f.Price.Dec()}
}

func newResultView(r *swap.Result) resultView {
	view := resultView{
		Fills:   make([]fillView, len(r.Fills)),
		Skipped: make([]skippedView, len(r.Skipped)),
		Volume:  r.Volume.Dec(),
	}
	for i, f := range r.Fills {
		view.Fills[i] = newFillView(f)
	}
	for i, s := range r.Skipped {
		view.Skipped[i] = skippedView{Unit: s.Unit, TokenID: s.TokenID, Error: s.Err.Error()}
	}
	return view
}

// parseAmount reads a required amount field.
func parseAmount(field, s string) (uint256.Int, error) {
	v, err := fixedpoint.ParseAmount(s)
	if err != nil {
		return uint256.Int{}, badRequest("invalid " + field + ": " + err.Error())
	}
	return *v, nil
}

func parseDirection(s string) (types.Direction, error) {
	d, err := types.ParseDirection(s)
	if err != nil {
		return "", badRequest(err.Error())
	}
	return d, nil
}
