package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limit(id uint64, side Side, price float64, qty uint64) Order {
	return Order{OrderID: id, Side: side, Type: Limit, Price: price, Quantity: qty}
}

func market(id uint64, side Side, qty uint64) Order {
	return Order{OrderID: id, Side: side, Type: Market, Quantity: qty}
}

// S1 - resting build-up.
func TestOrderBook_S1_RestingBuildUp(t *testing.T) {
	ob := NewOrderBook()

	trades, err := ob.Submit(limit(1, Buy, 100.00, 200))
	require.NoError(t, err)
	assert.Empty(t, trades)

	trades, err = ob.Submit(limit(2, Buy, 99.50, 300))
	require.NoError(t, err)
	assert.Empty(t, trades)

	trades, err = ob.Submit(limit(3, Sell, 101.00, 150))
	require.NoError(t, err)
	assert.Empty(t, trades)

	trades, err = ob.Submit(limit(4, Sell, 102.00, 400))
	require.NoError(t, err)
	assert.Empty(t, trades)

	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.00, bid)

	ask, ok := ob.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 101.00, ask)

	spread, ok := ob.Spread()
	require.True(t, ok)
	assert.InDelta(t, 1.00, spread, 1e-9)
}

// S2 - exact cross.
func TestOrderBook_S2_ExactCross(t *testing.T) {
	ob := NewOrderBook()
	mustSubmit(t, ob, limit(1, Buy, 100.00, 200))
	mustSubmit(t, ob, limit(2, Buy, 99.50, 300))
	mustSubmit(t, ob, limit(3, Sell, 101.00, 150))
	mustSubmit(t, ob, limit(4, Sell, 102.00, 400))

	trades := mustSubmit(t, ob, limit(5, Buy, 101.00, 150))
	require.Len(t, trades, 1)
	assert.Equal(t, Trade{BuyOrderID: 5, SellOrderID: 3, Price: 101.00, Quantity: 150}, trades[0])

	ask, ok := ob.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 102.00, ask)

	assert.False(t, ob.Cancel(3), "id 3 should no longer be resting")
}

// S3 - partial fill + rest.
func TestOrderBook_S3_PartialFillAndRest(t *testing.T) {
	ob := NewOrderBook()
	mustSubmit(t, ob, limit(1, Buy, 100.00, 200))
	mustSubmit(t, ob, limit(2, Buy, 99.50, 300))
	mustSubmit(t, ob, limit(3, Sell, 101.00, 150))
	mustSubmit(t, ob, limit(4, Sell, 102.00, 400))
	mustSubmit(t, ob, limit(5, Buy, 101.00, 150))

	trades := mustSubmit(t, ob, limit(6, Buy, 102.00, 600))
	require.Len(t, trades, 1)
	assert.Equal(t, Trade{BuyOrderID: 6, SellOrderID: 4, Price: 102.00, Quantity: 400}, trades[0])

	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.Equal(t, 102.00, bid)
	assert.Equal(t, uint64(200), ob.BidQuantityAt(102.00))

	_, ok = ob.BestAsk()
	assert.False(t, ok)
}

// S4 - market sweep.
func TestOrderBook_S4_MarketSweep(t *testing.T) {
	ob := NewOrderBook()
	mustSubmit(t, ob, limit(100, Sell, 103.00, 500)) // id=A
	mustSubmit(t, ob, limit(200, Sell, 104.00, 300)) // id=B

	trades := mustSubmit(t, ob, market(300, Buy, 400)) // id=C
	require.Len(t, trades, 1)
	assert.Equal(t, Trade{BuyOrderID: 300, SellOrderID: 100, Price: 103.00, Quantity: 400}, trades[0])

	assert.Equal(t, uint64(100), ob.AskQuantityAt(103.00))
	assert.Equal(t, uint64(300), ob.AskQuantityAt(104.00))
}

// S5 - cancel.
func TestOrderBook_S5_Cancel(t *testing.T) {
	ob := NewOrderBook()
	mustSubmit(t, ob, limit(1, Buy, 99.00, 1000))

	assert.True(t, ob.Cancel(1))
	assert.Equal(t, uint64(0), ob.BidQuantityAt(99.00))
	_, ok := ob.BestBid()
	assert.False(t, ok)

	assert.False(t, ob.Cancel(1), "double cancel must return false")
}

// S6 - symbol isolation (exercised at the Engine level).
func TestEngine_S6_SymbolIsolation(t *testing.T) {
	eng := NewEngine()
	mustSubmitEngine(t, eng, "RELIANCE", limit(1, Buy, 2500.00, 10))
	mustSubmitEngine(t, eng, "AAPL", limit(2, Buy, 190.00, 10))

	bid, ok := eng.BestBid("RELIANCE")
	require.True(t, ok)
	assert.Equal(t, 2500.00, bid)

	bid, ok = eng.BestBid("AAPL")
	require.True(t, ok)
	assert.Equal(t, 190.00, bid)
}

func TestOrderBook_MarketOnEmptySideIsNoop(t *testing.T) {
	ob := NewOrderBook()
	trades := mustSubmit(t, ob, market(1, Buy, 100))
	assert.Empty(t, trades)
	_, ok := ob.BestBid()
	assert.False(t, ok)
}

func TestOrderBook_ZeroQuantityIsNoop(t *testing.T) {
	ob := NewOrderBook()
	trades := mustSubmit(t, ob, limit(1, Buy, 100.00, 0))
	assert.Empty(t, trades)
	_, ok := ob.BestBid()
	assert.False(t, ok)
}

func TestOrderBook_FullyFilledLimitNeverRests(t *testing.T) {
	ob := NewOrderBook()
	mustSubmit(t, ob, limit(1, Sell, 100.00, 50))
	trades := mustSubmit(t, ob, limit(2, Buy, 100.00, 50))
	require.Len(t, trades, 1)

	assert.False(t, ob.Cancel(2), "fully filled taker must not be resting")
	_, ok := ob.BestBid()
	assert.False(t, ok)
}

func TestOrderBook_SubmitCancelRoundTripRestoresState(t *testing.T) {
	ob := NewOrderBook()
	mustSubmit(t, ob, limit(1, Buy, 100.00, 50))

	before := ob.BidQuantityAt(100.00)

	mustSubmit(t, ob, limit(2, Buy, 99.00, 25))
	assert.True(t, ob.Cancel(2))

	after := ob.BidQuantityAt(100.00)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(0), ob.BidQuantityAt(99.00))
}

func TestOrderBook_PriceTimePriorityWithinLevel(t *testing.T) {
	ob := NewOrderBook()
	mustSubmit(t, ob, limit(1, Sell, 100.00, 50)) // A, earlier
	mustSubmit(t, ob, limit(2, Sell, 100.00, 50)) // B, later

	trades := mustSubmit(t, ob, limit(3, Buy, 100.00, 20))
	require.Len(t, trades, 1)
	assert.Equal(t, uint64(1), trades[0].SellOrderID, "earlier order at the same price fills first")
}

func TestOrderBook_DuplicateOrderIDRejected(t *testing.T) {
	ob := NewOrderBook()
	mustSubmit(t, ob, limit(1, Buy, 100.00, 50))

	_, err := ob.Submit(limit(1, Buy, 99.00, 10))
	assert.ErrorIs(t, err, ErrDuplicateOrderID)
}

func TestOrderBook_NonFinitePriceRejected(t *testing.T) {
	ob := NewOrderBook()
	bad := limit(1, Buy, 0, 10)
	bad.Price = 1.0 / zero()
	_, err := ob.Submit(bad)
	assert.ErrorIs(t, err, ErrNonFinitePrice)
}

func TestOrderBook_CancelUnknownReturnsFalse(t *testing.T) {
	ob := NewOrderBook()
	assert.False(t, ob.Cancel(12345))
}

func zero() float64 { return 0 }

func mustSubmit(t *testing.T, ob *OrderBook, o Order) []Trade {
	t.Helper()
	trades, err := ob.Submit(o)
	require.NoError(t, err)
	return trades
}

func mustSubmitEngine(t *testing.T, eng *Engine, symbol string, o Order) []Trade {
	t.Helper()
	trades, err := eng.Submit(symbol, o)
	require.NoError(t, err)
	return trades
}
