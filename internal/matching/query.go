package matching

import (
	"fmt"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/openalpha/disorderbook/internal/models"
)

// LevelEntry is one resting order as it appears in a BookSnapshot — one
// entry per order rather than aggregated by price level, since queue
// position within a level is information a client can act on.
type LevelEntry struct {
	Price int64  `json:"price"`
	Qty   int64  `json:"qty"`
	IsBuy bool   `json:"isBuy"`
	Ts    string `json:"ts"`
}

// BookSnapshot is the wire shape for "GET .../book".
type BookSnapshot struct {
	Ok     bool         `json:"ok"`
	Venue  string       `json:"venue"`
	Symbol string       `json:"symbol"`
	Bids   []LevelEntry `json:"bids"`
	Asks   []LevelEntry `json:"asks"`
	Ts     string       `json:"ts"`
}

// Quote is the wire shape for "GET .../quote".
type Quote struct {
	Ok        bool   `json:"ok"`
	Venue     string `json:"venue"`
	Symbol    string `json:"symbol"`
	Bid       int64  `json:"bid,omitempty"`
	BidSize   int64  `json:"bidSize"`
	BidDepth  int64  `json:"bidDepth"`
	Ask       int64  `json:"ask,omitempty"`
	AskSize   int64  `json:"askSize"`
	AskDepth  int64  `json:"askDepth"`
	HasLast   bool   `json:"-"`
	Last      int64  `json:"last,omitempty"`
	LastSize  int64  `json:"lastSize,omitempty"`
	LastTrade string `json:"lastTrade,omitempty"`
	QuoteTime string `json:"quoteTime"`
}

// GetBook returns a snapshot of every open resting order, best-priority
// first on each side.
func (b *Book) GetBook() BookSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BookSnapshot{
		Ok:     true,
		Venue:  b.Venue,
		Symbol: b.Symbol,
		Bids:   ordersInPriorityOrder(b.bids, true),
		Asks:   ordersInPriorityOrder(b.asks, false),
		Ts:     b.now(),
	}
}

func ordersInPriorityOrder(tree *redblacktree.Tree, isBuy bool) []LevelEntry {
	var out []LevelEntry
	it := tree.Iterator()
	it.Begin()
	for it.Next() {
		for _, o := range it.Value().(level) {
			if !o.Open {
				continue
			}
			out = append(out, LevelEntry{Price: o.Price, Qty: o.Qty, IsBuy: isBuy, Ts: o.Ts})
		}
	}
	return out
}

// GetQuote returns the current top-of-book and last-trade tape.
func (b *Book) GetQuote() Quote {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := Quote{
		Ok:        true,
		Venue:     b.Venue,
		Symbol:    b.Symbol,
		BidDepth:  sumQty(b.bids),
		AskDepth:  sumQty(b.asks),
		QuoteTime: b.now(),
	}
	if bid, ok := bestOrder(b.bids); ok {
		q.Bid = bid.Price
		q.BidSize = sizeAtBest(b.bids)
	}
	if ask, ok := bestOrder(b.asks); ok {
		q.Ask = ask.Price
		q.AskSize = sizeAtBest(b.asks)
	}
	if b.lastTradeSet {
		q.HasLast = true
		q.Last = b.lastTradePrice
		q.LastSize = b.lastTradeSize
		q.LastTrade = b.lastTradeTime
	}
	return q
}

// GetStatus returns the current state of order id.
func (b *Book) GetStatus(id int64) (*models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.idIndex[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return o, nil
}

// AccountFromOrderID resolves the account that placed order id.
func (b *Book) AccountFromOrderID(id int64) (string, error) {
	o, err := b.GetStatus(id)
	if err != nil {
		return "", err
	}
	return o.Account, nil
}

// GetAllOrders returns every order ever submitted by account, oldest first.
func (b *Book) GetAllOrders(account string) []*models.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders := b.accountIndex[account]
	out := make([]*models.Order, len(orders))
	copy(out, orders)
	return out
}

// Cancel closes order id if it is still open, removing it from the ladder
// on the next sweep. Cancelling an already-closed order is an idempotent
// no-op that still returns the order.
func (b *Book) Cancel(id int64) (*models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.idIndex[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if !o.Open {
		return o, nil
	}

	o.Qty = 0
	o.Open = false
	b.log.Debug().Int64("id", id).Msg("cancelled order")
	sweep(b.bids)
	sweep(b.asks)
	if b.metrics != nil {
		b.metrics.OrdersCancelled.WithLabelValues(b.Venue, b.Symbol).Inc()
		b.metrics.OrdersResting.WithLabelValues(b.Venue, b.Symbol, "buy").Set(float64(sumQty(b.bids)))
		b.metrics.OrdersResting.WithLabelValues(b.Venue, b.Symbol, "sell").Set(float64(sumQty(b.asks)))
	}
	return o, nil
}
