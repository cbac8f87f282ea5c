package payout

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

// Payment is one transfer implied by a quote.
type Payment struct {
	Recipient string
	Amount    uint256.Int
}

// QuoteSummary is the fee breakdown of one unit. FairBurn, Royalty, Swap and
// SellerAmount always add up to the gross amount.
type QuoteSummary struct {
	FairBurn     Payment
	Royalty      *Payment
	Swap         *Payment
	SellerAmount uint256.Int
}

// Total is the gross amount.
func (q *QuoteSummary) Total() *uint256.Int {
	total := new(uint256.Int).Add(&q.FairBurn.Amount, &q.SellerAmount)
	if q.Royalty != nil {
		total.Add(total, &q.Royalty.Amount)
	}
	if q.Swap != nil {
		total.Add(total, &q.Swap.Amount)
	}
	return total
}

// Fees lists the non-seller payments in the order they were taken.
func (q *QuoteSummary) Fees() []Payment {
	fees := []Payment{q.FairBurn}
	if q.Royalty != nil {
		fees = append(fees, *q.Royalty)
	}
	if q.Swap != nil {
		fees = append(fees, *q.Swap)
	}
	return fees
}

type paymentJSON struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type summaryJSON struct {
	FairBurn     paymentJSON  `json:"fair_burn"`
	Royalty      *paymentJSON `json:"royalty,omitempty"`
	Swap         *paymentJSON `json:"swap,omitempty"`
	SellerAmount string       `json:"seller_amount"`
	Total        string       `json:"total"`
}

func toPaymentJSON(p *Payment) *paymentJSON {
	if p == nil {
		return nil
	}
	return &paymentJSON{Recipient: p.Recipient, Amount: p.Amount.Dec()}
}

func fromPaymentJSON(p *paymentJSON) (*Payment, error) {
	if p == nil {
		return nil, nil
	}
	amount, err := fixedpoint.ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	return &Payment{Recipient: p.Recipient, Amount: *amount}, nil
}

func (q QuoteSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		FairBurn:     *toPaymentJSON(&q.FairBurn),
		Royalty:      toPaymentJSON(q.Royalty),
		Swap:         toPaymentJSON(q.Swap),
		SellerAmount: q.SellerAmount.Dec(),
		Total:        q.Total().Dec(),
	})
}

func (q *QuoteSummary) UnmarshalJSON(data []byte) error {
	var raw summaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	burn, err := fromPaymentJSON(&raw.FairBurn)
	if err != nil {
		return fmt.Errorf("fair_burn: %w", err)
	}
	royalty, err := fromPaymentJSON(raw.Royalty)
	if err != nil {
		return fmt.Errorf("royalty: %w", err)
	}
	swap, err := fromPaymentJSON(raw.Swap)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	seller, err := fixedpoint.ParseAmount(raw.SellerAmount)
	if err != nil {
		return fmt.Errorf("seller_amount: %w", err)
	}

	*q = QuoteSummary{FairBurn: *burn, Royalty: royalty, Swap: swap, SellerAmount: *seller}
	return nil
}
