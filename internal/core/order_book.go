package core

import (
	"math"

	"github.com/tidwall/btree"
)

// orderLocation is where a resting order lives: which side, at which price.
type orderLocation struct {
	price float64
	side  Side
}

// OrderBook is the per-symbol matching state: two price-ordered sides, a
// FIFO queue at each occupied price, and an id -> location locator so
// cancel never has to walk either side.
//
// Single-writer model: no concurrent modification of one book is
// supported, so OrderBook carries no internal locking. Callers wanting
// parallelism across symbols must serialize access per book themselves
// (one goroutine per book, or an external per-symbol lock).
type OrderBook struct {
	Bids *btree.BTreeG[*PriceLevel] // highest price first
	Asks *btree.BTreeG[*PriceLevel] // lowest price first

	locator map[uint64]orderLocation
}

// NewOrderBook returns an empty book. Bids are ordered highest-first, asks
// lowest-first, by giving each side's btree its own comparator (the Go
// analogue of a std::greater<double> comparator on the bid side).
func NewOrderBook() *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price > b.Price })
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool { return a.Price < b.Price })
	return &OrderBook{
		Bids:    bids,
		Asks:    asks,
		locator: make(map[uint64]orderLocation),
	}
}

// Submit dispatches by order.Type and returns the trades produced. A LIMIT
// whose quantity is fully consumed is never inserted as a resting order; a
// MARKET's unfilled remainder is discarded, never recorded.
func (ob *OrderBook) Submit(order Order) ([]Trade, error) {
	switch order.Type {
	case Cancel:
		ob.Cancel(order.OrderID)
		return nil, nil
	case Market:
		if order.Quantity == 0 {
			return nil, nil
		}
		return ob.matchMarket(order), nil
	default: // Limit
		if err := ob.validateLimit(order); err != nil {
			return nil, err
		}
		if order.Quantity == 0 {
			return nil, nil
		}
		return ob.matchLimit(order)
	}
}

func (ob *OrderBook) validateLimit(order Order) error {
	if math.IsNaN(order.Price) || math.IsInf(order.Price, 0) {
		return ErrNonFinitePrice
	}
	if _, resting := ob.locator[order.OrderID]; resting {
		return ErrDuplicateOrderID
	}
	return nil
}

// matchLimit runs the matching loop against the opposite side, then rests
// any residual quantity on the order's own side.
func (ob *OrderBook) matchLimit(order Order) ([]Trade, error) {
	passive, own := ob.Asks, ob.Bids
	if order.Side == Sell {
		passive, own = ob.Bids, ob.Asks
	}

	trades := ob.runMatchingLoop(&order, passive)

	if order.Quantity > 0 {
		level, ok := own.GetMut(&PriceLevel{Price: order.Price})
		if !ok {
			level = newPriceLevel(order.Price)
			own.Set(level)
		}
		level.add(&order)
		ob.locator[order.OrderID] = orderLocation{price: order.Price, side: order.Side}
	}

	return trades, nil
}

// matchMarket sweeps the opposite side until filled or the side is
// exhausted; any unfilled remainder is simply discarded.
func (ob *OrderBook) matchMarket(order Order) []Trade {
	passive := ob.Asks
	if order.Side == Sell {
		passive = ob.Bids
	}
	return ob.runMatchingLoop(&order, passive)
}

// runMatchingLoop is the central matching algorithm: walk the passive
// side best-price-first, filling the incoming order against each level's
// FIFO head until quantity is exhausted or the price no longer crosses.
func (ob *OrderBook) runMatchingLoop(order *Order, passive *btree.BTreeG[*PriceLevel]) []Trade {
	var trades []Trade

	for order.Quantity > 0 {
		best, ok := passive.MinMut()
		if !ok || !crosses(order, best.Price) {
			break
		}

		resting := best.front()
		fill := min(order.Quantity, resting.Quantity)
		restingID := resting.OrderID

		buyID, sellID := order.OrderID, restingID
		if order.Side == Sell {
			buyID, sellID = restingID, order.OrderID
		}
		trades = append(trades, Trade{
			BuyOrderID:  buyID,
			SellOrderID: sellID,
			Price:       best.Price,
			Quantity:    uint32(fill),
		})

		order.Quantity -= fill
		best.fillFront(fill)

		if resting.Quantity == 0 {
			delete(ob.locator, restingID)
		}
		if best.isEmpty() {
			passive.Delete(best)
		}
	}

	return trades
}

// crosses reports whether order can match against a resting level at
// bestPrice. MARKET orders ignore order.Price and always cross: a
// branch on order.Type here, rather than sentinel +/-Inf prices.
func crosses(order *Order, bestPrice float64) bool {
	if order.Type == Market {
		return true
	}
	if order.Side == Buy {
		return order.Price >= bestPrice
	}
	return order.Price <= bestPrice
}

// Cancel removes a resting order by id in O(1) expected time. Returns
// false, with no state change, if the id is not currently resting.
func (ob *OrderBook) Cancel(orderID uint64) bool {
	loc, ok := ob.locator[orderID]
	if !ok {
		return false
	}

	side := ob.Bids
	if loc.side == Sell {
		side = ob.Asks
	}
	if level, ok := side.GetMut(&PriceLevel{Price: loc.price}); ok {
		level.cancel(orderID)
		if level.isEmpty() {
			side.Delete(level)
		}
	}
	delete(ob.locator, orderID)
	return true
}

// BestBid returns the highest resting bid price, if any.
func (ob *OrderBook) BestBid() (float64, bool) {
	level, ok := ob.Bids.Min()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// BestAsk returns the lowest resting ask price, if any.
func (ob *OrderBook) BestAsk() (float64, bool) {
	level, ok := ob.Asks.Min()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// Spread is best ask minus best bid, or empty if either side is empty.
// Never negative: the book is never left crossed across a submission
// boundary.
func (ob *OrderBook) Spread() (float64, bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask - bid, true
}

// BidQuantityAt returns the aggregate resting quantity at price on the bid
// side, or 0 if no level exists there.
func (ob *OrderBook) BidQuantityAt(price float64) uint64 {
	level, ok := ob.Bids.Get(&PriceLevel{Price: price})
	if !ok {
		return 0
	}
	return level.totalQuantity()
}

// AskQuantityAt returns the aggregate resting quantity at price on the ask
// side, or 0 if no level exists there.
func (ob *OrderBook) AskQuantityAt(price float64) uint64 {
	level, ok := ob.Asks.Get(&PriceLevel{Price: price})
	if !ok {
		return 0
	}
	return level.totalQuantity()
}
