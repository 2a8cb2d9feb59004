package matching

import (
	"github.com/google/uuid"

	"github.com/openalpha/disorderbook/internal/models"
)

// cross executes one standing trade between a resting maker order and the
// incoming taker order. It is a free function borrowing both orders
// mutably rather than a method hung off either one, so Order and Book
// never need a back-reference to each other.
func cross(b *Book, resting, incoming *models.Order) {
	qty := min(incoming.Qty, resting.Qty)
	price := resting.Price // taker always gets the maker's price
	ts := b.now()

	incoming.Qty -= qty
	incoming.TotalFilled += qty
	resting.Qty -= qty
	resting.TotalFilled += qty

	fill := models.Fill{Price: price, Qty: qty, Ts: ts}
	incoming.Fills = append(incoming.Fills, fill)
	resting.Fills = append(resting.Fills, fill)

	if incoming.Qty == 0 {
		incoming.Open = false
	}
	if resting.Qty == 0 {
		resting.Open = false
	}

	b.lastTradeSet = true
	b.lastTradePrice = price
	b.lastTradeSize = qty
	b.lastTradeTime = ts

	if b.metrics != nil {
		b.metrics.TradesExecuted.WithLabelValues(b.Venue, b.Symbol).Inc()
	}

	buyer, seller := buyerSeller(incoming, resting)
	exec := models.Execution{
		ID:            uuid.New().String(),
		BuyerOrderID:  buyer.ID,
		SellerOrderID: seller.ID,
		Price:         price,
		Qty:           qty,
		Ts:            ts,
	}
	b.log.Debug().Str("execution", exec.String()).Msg("cross")
}

func buyerSeller(a, b *models.Order) (buyer, seller *models.Order) {
	if a.Direction == models.Buy {
		return a, b
	}
	return b, a
}

// matchAgainst walks the opposite ladder from incoming's direction in
// priority order, executing standing crosses while the best remaining
// price is still acceptable and incoming has quantity left.
// It is shared by limit, IOC, FOK (once fok-fillable), and market dispatch
// — they differ only in what happens before/after the walk (dispatch.go),
// not in the walk itself.
func (b *Book) matchAgainst(incoming *models.Order) {
	tree := b.oppositeTreeFor(incoming.Direction)
	it := tree.Iterator()
	it.Begin()

outer:
	for it.Next() {
		if incoming.Qty == 0 {
			break
		}
		price := it.Key().(int64)
		if !acceptable(incoming.Direction, incoming.Price, price) {
			break
		}
		for _, resting := range it.Value().(level) {
			if !resting.Open {
				continue
			}
			if incoming.Qty == 0 {
				break outer
			}
			cross(b, resting, incoming)
		}
	}
}

// fokCanFill pre-scans the opposite ladder, summing acceptable-price
// quantity until it reaches qty or the ladder runs out of acceptable
// levels, without mutating anything.
func (b *Book) fokCanFill(dir models.Side, price, qty int64) bool {
	tree := b.oppositeTreeFor(dir)
	it := tree.Iterator()
	it.Begin()

	var avail int64
	for it.Next() {
		levelPrice := it.Key().(int64)
		if !acceptable(dir, price, levelPrice) {
			break
		}
		for _, o := range it.Value().(level) {
			if o.Open {
				avail += o.Qty
			}
		}
		if avail >= qty {
			return true
		}
	}
	return avail >= qty
}
