package api

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/nft-amm/internal/swap"
)

func (r sellRequest) toSwap() (swap.SellRequest, error) {
	orders := make([]swap.SellOrder, len(r.Orders))
	for i, o := range r.Orders {
		minOutput, err := parseAmount(fmt.Sprintf("orders[%d].min_output", i), o.MinOutput)
		if err != nil {
			return swap.SellRequest{}, err
		}
		orders[i] = swap.SellOrder{TokenID: o.TokenID, MinOutput: minOutput}
	}
	return swap.SellRequest{
		Sender:     r.Sender,
		Collection: r.Collection,
		Denom:      r.Denom,
		Orders:     orders,
		Params:     r.Params,
	}, nil
}

func (r buyRequest) toSwap() (swap.BuyRequest, error) {
	maxInputs := make([]uint256.Int, len(r.MaxInputs))
	for i, s := range r.MaxInputs {
		v, err := parseAmount(fmt.Sprintf("max_inputs[%d]", i), s)
		if err != nil {
			return swap.BuyRequest{}, err
		}
		maxInputs[i] = v
	}
	return swap.BuyRequest{
		Sender:     r.Sender,
		Collection: r.Collection,
		Denom:      r.Denom,
		MaxInputs:  maxInputs,
		Params:     r.Params,
	}, nil
}

func (s *Server) bindSell(c fiber.Ctx) (swap.SellRequest, error) {
	var req sellRequest
	if err := c.Bind().Body(&req); err != nil {
		return swap.SellRequest{}, ErrInvalidBody
	}
	if req.Sender == "" || req.Collection == "" || req.Denom == "" {
		return swap.SellRequest{}, badRequest("sender, collection and denom are required")
	}
	return req.toSwap()
}

func (s *Server) bindBuy(c fiber.Ctx) (swap.BuyRequest, error) {
	var req buyRequest
	if err := c.Bind().Body(&req); err != nil {
		return swap.BuyRequest{}, ErrInvalidBody
	}
	if req.Sender == "" || req.Collection == "" || req.Denom == "" {
		return swap.BuyRequest{}, badRequest("sender, collection and denom are required")
	}
	return req.toSwap()
}

func (s *Server) swapNftsForTokens(c fiber.Ctx) error {
	req, err := s.bindSell(c)
	if err != nil {
		return err
	}
	return s.swapResult(c)(s.svc.SwapNftsForTokens(c.Context(), req))
}

func (s *Server) swapTokensForNfts(c fiber.Ctx) error {
	req, err := s.bindBuy(c)
	if err != nil {
		return err
	}
	return s.swapResult(c)(s.svc.SwapTokensForNfts(c.Context(), req))
}

func (s *Server) simSwapNftsForTokens(c fiber.Ctx) error {
	req, err := s.bindSell(c)
	if err != nil {
		return err
	}
	return s.swapResult(c)(s.svc.SimSwapNftsForTokens(c.Context(), req))
}

func (s *Server) simSwapTokensForNfts(c fiber.Ctx) error {
	req, err := s.bindBuy(c)
	if err != nil {
		return err
	}
	return s.swapResult(c)(s.svc.SimSwapTokensForNfts(c.Context(), req))
}

func (s *Server) simSwaps(c fiber.Ctx) error {
	var q simSwapsQuery
	if err := c.Bind().Query(&q); err != nil {
		return ErrInvalidQueryParameters
	}
	d, err := parseDirection(q.Direction)
	if err != nil {
		return err
	}
	if q.Denom == "" {
		return badRequest("denom is required")
	}
	return s.swapResult(c)(s.svc.SimSwaps(c.Context(), c.Params("collection"), q.Denom, d, q.N))
}

func (s *Server) bindDirect(c fiber.Ctx) (directSwapRequest, uint256.Int, error) {
	var req directSwapRequest
	if err := c.Bind().Body(&req); err != nil {
		return req, uint256.Int{}, ErrInvalidBody
	}
	bound, err := parseAmount("bound", req.Bound)
	return req, bound, err
}

func (s *Server) swapNftForTokens(c fiber.Ctx) error {
	req, bound, err := s.bindDirect(c)
	if err != nil {
		return err
	}
	return s.fillResult(c)(s.svc.SwapNftForTokens(c.Context(), swap.DirectSellRequest{
		Sender:    req.Sender,
		Pair:      c.Params("address"),
		TokenID:   req.TokenID,
		MinOutput: bound,
		Params:    req.Params,
	}))
}

func (s *Server) swapTokensForNft(c fiber.Ctx) error {
	req, bound, err := s.bindDirect(c)
	if err != nil {
		return err
	}
	return s.fillResult(c)(s.svc.SwapTokensForNft(c.Context(), swap.DirectBuyRequest{
		Sender:   req.Sender,
		Pair:     c.Params("address"),
		TokenID:  req.TokenID,
		MaxInput: bound,
		Params:   req.Params,
	}))
}

func (s *Server) swapResult(c fiber.Ctx) func(*swap.Result, error) error {
	return func(r *swap.Result, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(newResultView(r))
	}
}

func (s *Server) fillResult(c fiber.Ctx) func(*swap.Fill, error) error {
	return func(f *swap.Fill, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(newFillView(*f))
	}
}
