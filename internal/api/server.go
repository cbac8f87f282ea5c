// Package api exposes the AMM service over HTTP.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/nft-amm/internal/amm"
)

type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// DevMode mounts the ledger credit and mint routes.
	DevMode bool
}

type Server struct {
	app    *fiber.App
	svc    *amm.Service
	logger *zap.Logger
}

// New builds the fiber app. A nil gatherer serves the default registry.
func New(cfg Config, svc *amm.Service, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{svc: svc, logger: logger.Named("api")}
	s.app = fiber.New(fiber.Config{
		AppName:      "nft-amm",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: s.handleError,
	})
	s.app.Use(recoverer.New())
	s.app.Use(s.logRequests)

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	s.app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.routes(cfg.DevMode)
	return s
}

func (s *Server) routes(devMode bool) {
	v1 := s.app.Group("/v1")
	v1.Get("/status", s.status)
	v1.Post("/index/rebuild", s.rebuildIndex)
	v1.Get("/history", s.history)
	v1.Get("/accounts/:account/balances/:denom", s.balance)

	pairs := v1.Group("/pairs")
	pairs.Get("/", s.listPairs)
	pairs.Post("/", s.createPair)
	pairs.Get("/:address", s.getPair)
	pairs.Patch("/:address", s.updatePairConfig)
	pairs.Get("/:address/quote", s.quotePair)
	pairs.Get("/:address/nfts", s.nftDeposits)
	pairs.Get("/:address/sim", s.simPairSwaps)
	pairs.Post("/:address/tokens/deposit", s.depositTokens)
	pairs.Post("/:address/tokens/withdraw", s.withdrawTokens)
	pairs.Post("/:address/nfts/deposit", s.depositNFTs)
	pairs.Post("/:address/nfts/withdraw", s.withdrawNFTs)
	pairs.Post("/:address/nfts/withdraw-any", s.withdrawAnyNFTs)
	pairs.Post("/:address/withdraw-all", s.withdrawAll)
	pairs.Post("/:address/swap/sell", s.swapNftForTokens)
	pairs.Post("/:address/swap/buy", s.swapTokensForNft)

	collections := v1.Group("/collections/:collection")
	collections.Get("/quotes", s.bestQuotes)
	collections.Get("/sim", s.simSwaps)
	collections.Get("/nfts/:token_id/owner", s.ownerOf)

	swaps := v1.Group("/swaps")
	swaps.Post("/nfts-for-tokens", s.swapNftsForTokens)
	swaps.Post("/tokens-for-nfts", s.swapTokensForNfts)
	swaps.Post("/nfts-for-tokens/simulate", s.simSwapNftsForTokens)
	swaps.Post("/tokens-for-nfts/simulate", s.simSwapTokensForNfts)

	if devMode {
		dev := v1.Group("/dev")
		dev.Post("/credit", s.credit)
		dev.Post("/mint", s.mint)
		s.logger.Warn("Dev routes enabled")
	}
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c fiber.Ctx, err error) error {
	fe, clientErr := httpError(err)
	if !clientErr {
		s.logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(fe.Code).JSON(errorResponse{Error: fe.Message})
}

func (s *Server) logRequests(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		fe, _ := httpError(err)
		status = fe.Code
	}
	s.logger.Debug("Request handled",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)))
	return err
}

func (s *Server) status(c fiber.Ctx) error {
	return c.JSON(s.svc.Stats())
}

// rebuildIndex reprices every pair under the current global parameters.
func (s *Server) rebuildIndex(c fiber.Ctx) error {
	stats, err := s.svc.Reindex(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
