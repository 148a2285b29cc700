package core

import "container/list"

// PriceLevel is the FIFO queue of resting orders at a single price. It is
// built on container/list rather than a slice because cancel-by-id must be
// O(1) regardless of queue depth or position: a slice erase is O(n), but an
// intrusive list node erase is O(1) once we hold the node's *list.Element.
type PriceLevel struct {
	Price    float64
	orders   *list.List          // of *Order, head oldest / tail newest
	index    map[uint64]*list.Element
	totalQty uint64
}

func newPriceLevel(price float64) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		orders: list.New(),
		index:  make(map[uint64]*list.Element),
	}
}

// add appends order to the tail. The caller must ensure order.Quantity > 0
// and that order.OrderID is not already present in this level.
func (pl *PriceLevel) add(order *Order) {
	elem := pl.orders.PushBack(order)
	pl.index[order.OrderID] = elem
	pl.totalQty += order.Quantity
}

// cancel removes order_id in O(1) via its list.Element handle. Absent ids
// are silently ignored.
func (pl *PriceLevel) cancel(orderID uint64) {
	elem, ok := pl.index[orderID]
	if !ok {
		return
	}
	o := elem.Value.(*Order)
	pl.totalQty -= o.Quantity
	pl.orders.Remove(elem)
	delete(pl.index, orderID)
}

// fillFront subtracts n from the head order's quantity. Requires a
// non-empty queue and n <= front quantity. If the front is exhausted it is
// removed from both the queue and the id index.
func (pl *PriceLevel) fillFront(n uint64) {
	elem := pl.orders.Front()
	front := elem.Value.(*Order)
	front.Quantity -= n
	pl.totalQty -= n
	if front.Quantity == 0 {
		delete(pl.index, front.OrderID)
		pl.orders.Remove(elem)
	}
}

// front returns the head order. Panics if the level is empty: this is a
// programmer error, callers must check isEmpty() first.
func (pl *PriceLevel) front() *Order {
	elem := pl.orders.Front()
	if elem == nil {
		panic("core: front() called on empty PriceLevel")
	}
	return elem.Value.(*Order)
}

func (pl *PriceLevel) isEmpty() bool {
	return pl.orders.Len() == 0
}

func (pl *PriceLevel) totalQuantity() uint64 {
	return pl.totalQty
}

// Orders returns a snapshot of the resting orders, head first. Intended for
// tests and diagnostics, not the matching hot path.
func (pl *PriceLevel) Orders() []*Order {
	out := make([]*Order, 0, pl.orders.Len())
	for e := pl.orders.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Order))
	}
	return out
}
