package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rovshanmuradov/nft-amm/internal/amm"
	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
)

func (s *Server) createPair(c fiber.Ctx) error {
	var cmd amm.CreatePairCommand
	if err := c.Bind().Body(&cmd); err != nil {
		return ErrInvalidBody
	}
	p, err := s.svc.CreatePair(c.Context(), cmd)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newPairView(p))
}

func (s *Server) listPairs(c fiber.Ctx) error {
	var q listPairsQuery
	if err := c.Bind().Query(&q); err != nil {
		return ErrInvalidQueryParameters
	}
	pairs, err := s.svc.ListPairs(c.Context(), storage.PairFilter{Collection: q.Collection, Owner: q.Owner}, q.options())
	if err != nil {
		return err
	}
	views := make([]pairView, len(pairs))
	for i, p := range pairs {
		views[i] = newPairView(p)
	}
	return c.JSON(views)
}

func (s *Server) getPair(c fiber.Ctx) error {
	p, err := s.svc.GetPair(c.Context(), c.Params("address"))
	if err != nil {
		return err
	}
	return c.JSON(newPairView(p))
}

// quotePair returns null when the pair cannot trade in the direction.
func (s *Server) quotePair(c fiber.Ctx) error {
	var q directionQuery
	if err := c.Bind().Query(&q); err != nil {
		return ErrInvalidQueryParameters
	}
	d, err := parseDirection(q.Direction)
	if err != nil {
		return err
	}
	quote, err := s.svc.QuotePair(c.Context(), c.Params("address"), d)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"direction": d, "quote": quote})
}

func (s *Server) nftDeposits(c fiber.Ctx) error {
	var q pageQuery
	if err := c.Bind().Query(&q); err != nil {
		return ErrInvalidQueryParameters
	}
	ids, err := s.svc.NftDeposits(c.Context(), c.Params("address"), q.options())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"token_ids": ids})
}

func (s *Server) simPairSwaps(c fiber.Ctx) error {
	var q directionQuery
	if err := c.Bind().Query(&q); err != nil {
		return ErrInvalidQueryParameters
	}
	d, err := parseDirection(q.Direction)
	if err != nil {
		return err
	}
	quotes, err := s.svc.SimPairSwaps(c.Context(), c.Params("address"), d, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"direction": d, "quotes": quotes})
}

func (s *Server) bestQuotes(c fiber.Ctx) error {
	var q bestQuotesQuery
	if err := c.Bind().Query(&q); err != nil {
		return ErrInvalidQueryParameters
	}
	d, err := parseDirection(q.Direction)
	if err != nil {
		return err
	}

	query := amm.BestQuotesQuery{
		Collection: c.Params("collection"),
		Denom:      q.Denom,
		Direction:  d,
		Limit:      q.Limit,
	}
	if q.CursorPair != "" {
		price, err := parseAmount("cursor_price", q.CursorPrice)
		if err != nil {
			return err
		}
		query.Cursor = &index.Cursor{Price: price, Pair: q.CursorPair}
	}

	entries, err := s.svc.BestQuotes(c.Context(), query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"direction": d, "quotes": newEntryViews(entries)})
}

func (s *Server) depositTokens(c fiber.Ctx) error {
	var req tokensRequest
	if err := c.Bind().Body(&req); err != nil {
		return ErrInvalidBody
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	return s.pairResult(c)(s.svc.DepositTokens(c.Context(), amm.DepositTokensCommand{
		Sender: req.Sender,
		Pair:   c.Params("address"),
		Amount: amount,
	}))
}

func (s *Server) withdrawTokens(c fiber.Ctx) error {
	var req tokensRequest
	if err := c.Bind().Body(&req); err != nil {
		return ErrInvalidBody
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	return s.pairResult(c)(s.svc.WithdrawTokens(c.Context(), amm.WithdrawTokensCommand{
		Sender:    req.Sender,
		Pair:      c.Params("address"),
		Amount:    amount,
		Recipient: req.Recipient,
	}))
}

func (s *Server) depositNFTs(c fiber.Ctx) error {
	var cmd amm.DepositNFTsCommand
	if err := c.Bind().Body(&cmd); err != nil {
		return ErrInvalidBody
	}
	cmd.Pair = c.Params("address")
	return s.pairResult(c)(s.svc.DepositNFTs(c.Context(), cmd))
}

func (s *Server) withdrawNFTs(c fiber.Ctx) error {
	var cmd amm.WithdrawNFTsCommand
	if err := c.Bind().Body(&cmd); err != nil {
		return ErrInvalidBody
	}
	cmd.Pair = c.Params("address")
	return s.pairResult(c)(s.svc.WithdrawNFTs(c.Context(), cmd))
}

func (s *Server) withdrawAnyNFTs(c fiber.Ctx) error {
	var cmd amm.WithdrawAnyNFTsCommand
	if err := c.Bind().Body(&cmd); err != nil {
		return ErrInvalidBody
	}
	cmd.Pair = c.Params("address")
	return s.pairResult(c)(s.svc.WithdrawAnyNFTs(c.Context(), cmd))
}

func (s *Server) withdrawAll(c fiber.Ctx) error {
	var cmd amm.WithdrawAllCommand
	if err := c.Bind().Body(&cmd); err != nil {
		return ErrInvalidBody
	}
	cmd.Pair = c.Params("address")
	return s.pairResult(c)(s.svc.WithdrawAll(c.Context(), cmd))
}

func (s *Server) updatePairConfig(c fiber.Ctx) error {
	var cmd amm.UpdatePairConfigCommand
	if err := c.Bind().Body(&cmd); err != nil {
		return ErrInvalidBody
	}
	cmd.Pair = c.Params("address")
	return s.pairResult(c)(s.svc.UpdatePairConfig(c.Context(), cmd))
}

// pairResult renders the pair returned by an owner operation.
func (s *Server) pairResult(c fiber.Ctx) func(*pair.Pair, error) error {
	return func(p *pair.Pair, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(newPairView(p))
	}
}
