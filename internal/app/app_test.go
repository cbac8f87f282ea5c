package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/nft-amm/internal/amm"
	"github.com/rovshanmuradov/nft-amm/internal/config"
	"github.com/rovshanmuradov/nft-amm/internal/storage/memory"
	"github.com/rovshanmuradov/nft-amm/internal/storage/sqldb"
)

func TestShutdownRunsInReverseOrder(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)

	var order []string
	for _, name := range []string{"store", "bus", "history"} {
		name := name
		sh.AddCloser(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, sh.Shutdown(context.Background()))
	assert.Equal(t, []string{"history", "bus", "store"}, order)

	// a second shutdown has nothing left to close
	require.NoError(t, sh.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestShutdownJoinsErrors(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)
	boom := errors.New("boom")
	closed := false

	sh.AddCloser("ok", func() error {
		closed = true
		return nil
	})
	sh.AddCloser("broken", func() error { return boom })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
	assert.True(t, closed, "later failures do not stop earlier components from closing")
}

func TestShutdownTimeout(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	sh.Add("stuck", func(context.Context) error {
		<-release
		return nil
	})

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown timeout")
}

func TestOpenStore(t *testing.T) {
	logger := zaptest.NewLogger(t)

	store, err := OpenStore(context.Background(), sqldb.Config{Driver: config.DriverMemory}, logger)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)

	_, err = OpenStore(context.Background(), sqldb.Config{Driver: "oracle", DSN: "x"}, logger)
	assert.Error(t, err)
}

func TestRunnerBuildsService(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.History.Dir = t.TempDir()
	cfg.HTTP.ShutdownTimeout = time.Second

	r, err := NewRunner(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, r.Service())

	ctx := context.Background()
	require.NoError(t, r.Service().Credit(ctx, amm.CreditCommand{Account: "a", Denom: "ustars", Amount: *amountOf(5)}))
	balance, err := r.Service().Balance(ctx, "a", "ustars")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance.Uint64())

	require.NoError(t, r.Close(ctx))

	entries, err := os.ReadDir(filepath.Join(cfg.History.Dir, "fills"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunnerRejectsBadGlobals(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Global.FairBurnFeePercent = "2"

	_, err = NewRunner(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func amountOf(v uint64) *uint256.Int { return uint256.NewInt(v) }
