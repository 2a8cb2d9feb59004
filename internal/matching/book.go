// Package matching implements the price-time-priority limit order book and
// matching engine: one Book per (venue, symbol) pair, generalized by a thin
// Registry (registry.go). Every mutating operation and every read that must
// be internally consistent takes the Book's single serialization point
// — there are no suspension points inside a cross.
package matching

import (
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
	"github.com/rs/zerolog"

	"github.com/openalpha/disorderbook/internal/metrics"
	"github.com/openalpha/disorderbook/internal/models"
)

// level is a FIFO queue of open orders resting at one price. Orders are
// always appended to the tail on insert, which is what gives a stable
// time-priority within a price level without needing a separate tie key.
type level []*models.Order

// Book owns one (venue, symbol) order book. Bids and asks are price-indexed
// red-black trees: bids compare price descending so the highest bid
// sorts first, asks compare ascending so the lowest ask sorts first.
// Orders carry dense per-Book int64 ids, indexed here by id and by account.
type Book struct {
	Venue  string
	Symbol string

	bids *redblacktree.Tree
	asks *redblacktree.Tree

	idIndex      map[int64]*models.Order
	accountIndex map[string][]*models.Order
	nextID       int64

	lastTradeSet   bool
	lastTradePrice int64
	lastTradeSize  int64
	lastTradeTime  string

	mu      sync.Mutex
	log     zerolog.Logger
	now     func() string
	metrics *metrics.Metrics
}

// NewBook creates an empty Book for one (venue, symbol) pair. m may be nil,
// in which case the Book simply does not report metrics (used by tests).
func NewBook(venue, symbol string, log zerolog.Logger, m *metrics.Metrics) *Book {
	return &Book{
		Venue:  venue,
		Symbol: symbol,
		bids: redblacktree.NewWith(func(a, b interface{}) int {
			return utils.Int64Comparator(b, a) // reversed: highest price first
		}),
		asks:         redblacktree.NewWith(utils.Int64Comparator),
		idIndex:      make(map[int64]*models.Order),
		accountIndex: make(map[string][]*models.Order),
		log:          log,
		now:          nowISO,
		metrics:      m,
	}
}

func (b *Book) treeFor(side models.Side) *redblacktree.Tree {
	if side == models.Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) oppositeTreeFor(side models.Side) *redblacktree.Tree {
	if side == models.Buy {
		return b.asks
	}
	return b.bids
}

// insert appends o to the tail of its price level, creating the level if
// this is the first order at that price.
func (b *Book) insert(o *models.Order) {
	tree := b.treeFor(o.Direction)
	if existing, found := tree.Get(o.Price); found {
		tree.Put(o.Price, append(existing.(level), o))
		return
	}
	tree.Put(o.Price, level{o})
}

// sweep drops closed orders from every price level of tree and removes any
// level left empty. It runs over the whole side after every mutation rather
// than tracking individually touched levels; a full pass costs O(ladder)
// but stays simple and correct even when a cross touches several levels.
func sweep(tree *redblacktree.Tree) {
	type update struct {
		price int64
		lvl   level
	}
	var updates []update
	var removals []int64

	it := tree.Iterator()
	it.Begin()
	for it.Next() {
		price := it.Key().(int64)
		lvl := it.Value().(level)
		kept := make(level, 0, len(lvl))
		for _, o := range lvl {
			if o.Open {
				kept = append(kept, o)
			}
		}
		switch {
		case len(kept) == 0:
			removals = append(removals, price)
		case len(kept) != len(lvl):
			updates = append(updates, update{price, kept})
		}
	}
	for _, u := range updates {
		tree.Put(u.price, u.lvl)
	}
	for _, price := range removals {
		tree.Remove(price)
	}
}

// bestOrder returns the highest-priority order resting in tree, if any.
func bestOrder(tree *redblacktree.Tree) (*models.Order, bool) {
	node := tree.Left()
	if node == nil {
		return nil, false
	}
	lvl := node.Value.(level)
	if len(lvl) == 0 {
		return nil, false
	}
	return lvl[0], true
}

// worstPrice returns the lowest-priority (last-in-line) resting price on
// tree — what a market order temporarily borrows.
func worstPrice(tree *redblacktree.Tree) (int64, bool) {
	node := tree.Right()
	if node == nil {
		return 0, false
	}
	return node.Key.(int64), true
}

func sumQty(tree *redblacktree.Tree) int64 {
	var total int64
	it := tree.Iterator()
	it.Begin()
	for it.Next() {
		for _, o := range it.Value().(level) {
			total += o.Qty
		}
	}
	return total
}

func sizeAtBest(tree *redblacktree.Tree) int64 {
	node := tree.Left()
	if node == nil {
		return 0
	}
	var total int64
	for _, o := range node.Value.(level) {
		total += o.Qty
	}
	return total
}

// acceptable reports whether a resting order at restingPrice is marketable
// against an incoming order of direction dir quoting incomingPrice: a
// resting sell is acceptable only at or below the incoming buy's price,
// and a resting buy only at or above the incoming sell's price.
func acceptable(dir models.Side, incomingPrice, restingPrice int64) bool {
	if dir == models.Buy {
		return incomingPrice >= restingPrice
	}
	return incomingPrice <= restingPrice
}
