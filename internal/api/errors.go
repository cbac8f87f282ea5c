package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/rovshanmuradov/nft-amm/internal/amm"
	"github.com/rovshanmuradov/nft-amm/internal/curve"
	"github.com/rovshanmuradov/nft-amm/internal/global"
	"github.com/rovshanmuradov/nft-amm/internal/pair"
	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/swap"
)

// ErrInvalidQueryParameters means the query string could not be bound.
var ErrInvalidQueryParameters = fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")

// ErrInvalidBody means the request body is not valid JSON for the route.
var ErrInvalidBody = fiber.NewError(fiber.StatusBadRequest, "invalid request body")

// ErrInternal hides unexpected failures from clients.
var ErrInternal = fiber.NewError(fiber.StatusInternalServerError, "internal error")

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}

type errorMapping struct {
	target error
	status int
}

// mappings is checked in order; the first sentinel found in the chain wins.
var mappings = []errorMapping{
	{amm.ErrInvalidRequest, fiber.StatusBadRequest},
	{pair.ErrInvalidConfig, fiber.StatusBadRequest},
	{pair.ErrUnknownType, fiber.StatusBadRequest},
	{curve.ErrInvalidCurve, fiber.StatusBadRequest},
	{curve.ErrUnknownCurve, fiber.StatusBadRequest},
	{global.ErrUnsupportedDenom, fiber.StatusBadRequest},
	{swap.ErrEmptyRequest, fiber.StatusBadRequest},
	{swap.ErrInvalidOrder, fiber.StatusBadRequest},
	{settlement.ErrInvalidTransfer, fiber.StatusBadRequest},

	{pair.ErrUnauthorized, fiber.StatusForbidden},
	{storage.ErrNotFound, fiber.StatusNotFound},

	{amm.ErrAlreadyMinted, fiber.StatusConflict},
	{pair.ErrNFTAlreadyHeld, fiber.StatusConflict},

	{swap.ErrDeadlineExceeded, fiber.StatusUnprocessableEntity},
	{swap.ErrSlippage, fiber.StatusUnprocessableEntity},
	{swap.ErrNoLiquidity, fiber.StatusUnprocessableEntity},
	{swap.ErrNoSwaps, fiber.StatusUnprocessableEntity},
	{pair.ErrNoQuote, fiber.StatusUnprocessableEntity},
	{pair.ErrNFTNotDeposited, fiber.StatusUnprocessableEntity},
	{pair.ErrInsufficientFunds, fiber.StatusUnprocessableEntity},
	{settlement.ErrInsufficientFunds, fiber.StatusUnprocessableEntity},
	{settlement.ErrNotOwner, fiber.StatusUnprocessableEntity},

	{context.DeadlineExceeded, fiber.StatusServiceUnavailable},
	{context.Canceled, fiber.StatusServiceUnavailable},
}

// httpError converts a service error into the fiber error sent to the client.
// The second result is false for errors that are not the client's fault.
func httpError(err error) (*fiber.Error, bool) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe, fe.Code < fiber.StatusInternalServerError
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return fiber.NewError(m.status, err.Error()), m.status < fiber.StatusInternalServerError
		}
	}
	return ErrInternal, false
}
