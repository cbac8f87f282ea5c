package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulRounding(t *testing.T) {
	tests := []struct {
		name      string
		amount    uint64
		fraction  string
		wantFloor uint64
		wantCeil  uint64
	}{
		{"exact", 1000, "0.01", 10, 10},
		{"fractional", 999, "0.01", 9, 10},
		{"zero fraction", 1000, "0", 0, 0},
		{"one plus delta", 1000, "1.1", 1100, 1100},
		{"tiny", 1, "0.005", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := decimal.RequireFromString(tt.fraction)
			a := uint256.NewInt(tt.amount)

			floor, err := MulFloor(a, f)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFloor, floor.Uint64())

			ceil, err := MulCeil(a, f)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCeil, ceil.Uint64())
		})
	}
}

func TestDivFloor(t *testing.T) {
	got, err := DivFloor(uint256.NewInt(1000), decimal.RequireFromString("1.1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(909), got.Uint64())

	got, err = DivFloor(uint256.NewInt(1100), decimal.RequireFromString("1.1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got.Uint64())

	_, err = DivFloor(uint256.NewInt(1), decimal.Zero)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestOverflowIsReported(t *testing.T) {
	maxU256 := new(uint256.Int).SetAllOne()

	_, err := MulCeil(maxU256, decimal.RequireFromString("1.5"))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Add(maxU256, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Sub(uint256.NewInt(1), uint256.NewInt(2))
	assert.ErrorIs(t, err, ErrUnderflow)

	_, err = MulFloor(uint256.NewInt(1), decimal.RequireFromString("-0.1"))
	assert.ErrorIs(t, err, ErrNegative)
}

func TestSortKeyOrdersNumerically(t *testing.T) {
	small := SortKey(uint256.NewInt(9))
	large := SortKey(uint256.NewInt(10))
	assert.Less(t, small, large)
	assert.Len(t, small, sortKeyWidth)
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" 1000000 ")
	require.NoError(t, err)
	assert.Equal(t, "1000000", v.Dec())

	_, err = ParseAmount("")
	assert.Error(t, err)
	_, err = ParseAmount("-5")
	assert.Error(t, err)
}
