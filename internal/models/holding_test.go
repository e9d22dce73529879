package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplyBuy_WeightedAverageExact(t *testing.T) {
	h := Holding{Quantity: dec("2"), WeightedAvgBuyPrice: dec("40000")}

	require.NoError(t, h.ApplyBuy(dec("1"), dec("50000")))

	// (40000*2 + 50000*1) / 3
	assert.True(t, h.Quantity.Equal(dec("3")))
	assert.True(t, h.WeightedAvgBuyPrice.Equal(dec("130000").Div(dec("3"))),
		h.WeightedAvgBuyPrice.String())
}

func TestApplyBuy_FirstBuySetsAverageToPrice(t *testing.T) {
	h := Holding{Quantity: decimal.Zero, WeightedAvgBuyPrice: decimal.Zero}

	require.NoError(t, h.ApplyBuy(dec("0.5"), dec("61234.56")))

	assert.True(t, h.WeightedAvgBuyPrice.Equal(dec("61234.56")))
	assert.True(t, h.Quantity.Equal(dec("0.5")))
}

func TestApplyBuy_FractionalQuantities(t *testing.T) {
	h := Holding{Quantity: dec("0.3"), WeightedAvgBuyPrice: dec("100")}

	require.NoError(t, h.ApplyBuy(dec("0.7"), dec("200")))

	// (100*0.3 + 200*0.7) / 1.0 = 170
	assert.True(t, h.Quantity.Equal(dec("1")))
	assert.True(t, h.WeightedAvgBuyPrice.Equal(dec("170")))
}

func TestApplyBuy_RejectsNonPositiveQuantity(t *testing.T) {
	h := Holding{Quantity: dec("1"), WeightedAvgBuyPrice: dec("100")}

	assert.ErrorIs(t, h.ApplyBuy(decimal.Zero, dec("100")), ErrInvalidQuantity)
	assert.ErrorIs(t, h.ApplyBuy(dec("-1"), dec("100")), ErrInvalidQuantity)
	// Holding unchanged.
	assert.True(t, h.Quantity.Equal(dec("1")))
}

func TestApplySell_ReducesQuantityKeepsAverage(t *testing.T) {
	h := Holding{Quantity: dec("3"), WeightedAvgBuyPrice: dec("150")}

	closed, err := h.ApplySell(dec("1"))
	require.NoError(t, err)

	assert.False(t, closed)
	assert.True(t, h.Quantity.Equal(dec("2")))
	assert.True(t, h.WeightedAvgBuyPrice.Equal(dec("150")),
		"selling must not move the average buy price")
}

func TestApplySell_FullSellClosesPosition(t *testing.T) {
	h := Holding{Quantity: dec("2"), WeightedAvgBuyPrice: dec("150")}

	closed, err := h.ApplySell(dec("2"))
	require.NoError(t, err)

	assert.True(t, closed)
	assert.True(t, h.Quantity.IsZero())
}

func TestApplySell_OversellRejected(t *testing.T) {
	h := Holding{Quantity: dec("1"), WeightedAvgBuyPrice: dec("150")}

	_, err := h.ApplySell(dec("2"))
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
	assert.True(t, h.Quantity.Equal(dec("1")), "quantity never goes negative")
}
