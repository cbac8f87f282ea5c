package types

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlippageBound(t *testing.T) {
	quoted := uint256.NewInt(1000)

	tests := []struct {
		name string
		cfg  SlippageConfig
		dir  Direction
		want string
	}{
		{"fixed", SlippageConfig{Type: SlippageFixed, Value: "950"}, SellToPair, "950"},
		{"percent sell rounds down", SlippageConfig{Type: SlippagePercent, Value: "1.5"}, SellToPair, "985"},
		{"percent buy rounds up", SlippageConfig{Type: SlippagePercent, Value: "1.55"}, BuyFromPair, "1016"},
		{"none sell", SlippageConfig{Type: SlippageNone}, SellToPair, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Bound(tt.dir, quoted)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dec())
		})
	}
}

func TestSlippageRejectsBadInput(t *testing.T) {
	_, err := SlippageConfig{Type: SlippagePercent, Value: "101"}.Bound(SellToPair, uint256.NewInt(1))
	assert.Error(t, err)

	_, err = SlippageConfig{Type: "weird"}.Bound(SellToPair, uint256.NewInt(1))
	assert.Error(t, err)
}

func TestDirectionOrdering(t *testing.T) {
	assert.Equal(t, Descending, SellToPair.BestFirst())
	assert.Equal(t, Ascending, BuyFromPair.BestFirst())

	assert.True(t, SellToPair.Better(uint256.NewInt(2), uint256.NewInt(1)))
	assert.True(t, BuyFromPair.Better(uint256.NewInt(1), uint256.NewInt(2)))

	_, err := ParseDirection("sideways")
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultQueryLimit, ClampLimit(0))
	assert.Equal(t, MaxQueryLimit, ClampLimit(1000))
	assert.Equal(t, 7, ClampLimit(7))
}
