package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rovshanmuradov/nft-amm/internal/amm"
)

func (s *Server) balance(c fiber.Ctx) error {
	account, denom := c.Params("account"), c.Params("denom")
	b, err := s.svc.Balance(c.Context(), account, denom)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"account": account, "denom": denom, "amount": b.Dec()})
}

// ownerOf answers with an empty owner for NFTs that were never minted.
func (s *Server) ownerOf(c fiber.Ctx) error {
	collection, tokenID := c.Params("collection"), c.Params("token_id")
	owner, err := s.svc.OwnerOf(c.Context(), collection, tokenID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"collection": collection, "token_id": tokenID, "owner": owner})
}

func (s *Server) history(c fiber.Ctx) error {
	var q historyQuery
	if err := c.Bind().Query(&q); err != nil {
		return ErrInvalidQueryParameters
	}
	return c.JSON(s.svc.History(amm.HistoryFilter{Pair: q.Pair, Trader: q.Trader, Limit: q.Limit}))
}

func (s *Server) credit(c fiber.Ctx) error {
	var req creditRequest
	if err := c.Bind().Body(&req); err != nil {
		return ErrInvalidBody
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	if err := s.svc.Credit(c.Context(), amm.CreditCommand{Account: req.Account, Denom: req.Denom, Amount: amount}); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) mint(c fiber.Ctx) error {
	var cmd amm.MintCommand
	if err := c.Bind().Body(&cmd); err != nil {
		return ErrInvalidBody
	}
	if err := s.svc.Mint(c.Context(), cmd); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
