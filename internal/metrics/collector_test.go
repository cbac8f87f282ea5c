package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/types"
)

func newTestCollector() *Collector {
	return NewCollector(prometheus.NewRegistry())
}

func TestRecordSwapStatus(t *testing.T) {
	c := newTestCollector()

	c.RecordSwap(context.Background(), types.SellToPair, false, time.Millisecond, nil)
	c.RecordSwap(context.Background(), types.SellToPair, true, time.Millisecond, errors.New("no swaps"))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	c.RecordSwap(cancelled, types.BuyFromPair, false, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.swaps.WithLabelValues("success", "sell_to_pair", "strict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.swaps.WithLabelValues("failed", "sell_to_pair", "robust")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.swaps.WithLabelValues("cancelled", "buy_from_pair", "strict")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestRecordFillAddsVolume(t *testing.T) {
	c := newTestCollector()

	c.RecordFill(types.BuyFromPair, "punks", "ustars", uint256.NewInt(1100))
	c.RecordFill(types.BuyFromPair, "punks", "ustars", uint256.NewInt(900))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.fills.WithLabelValues("buy_from_pair", "punks")))
	assert.Equal(t, 2000.0, testutil.ToFloat64(c.volume.WithLabelValues("buy_from_pair", "ustars")))
}

func TestSettlementRetriedAndReset(t *testing.T) {
	c := newTestCollector()

	c.SettlementRetried(settlement.KindToken)
	c.SettlementRetried(settlement.KindToken)
	c.SettlementRetried(settlement.KindNFT)
	c.RecordSkipped(types.SellToPair, 0)
	c.RecordSkipped(types.SellToPair, 3)
	c.RecordPairCreated("punks", "ustars")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.retries.WithLabelValues("token")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retries.WithLabelValues("nft")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.skipped.WithLabelValues("sell_to_pair")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pairs.WithLabelValues("punks", "ustars")))

	c.Reset()
	assert.Zero(t, testutil.CollectAndCount(c.retries))
	assert.Zero(t, testutil.CollectAndCount(c.pairs))
}

func TestCollectorsUseSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		newTestCollector()
		newTestCollector()
	})
}
