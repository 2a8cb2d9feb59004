package matching

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/disorderbook/internal/models"
)

func newTestBook() *Book {
	return NewBook("TEST", "BTCUSD", zerolog.Nop(), nil)
}

func limitReq(account string, dir models.Side, price, qty int64) models.SubmitRequest {
	return models.SubmitRequest{
		Venue: "TEST", Symbol: "BTCUSD",
		Direction: dir, OrderType: models.Limit,
		Price: price, Qty: qty, Account: account,
	}
}

func TestSubmit_SimpleMatchFullyFills(t *testing.T) {
	b := newTestBook()

	sell, err := b.Submit(limitReq("seller1", models.Sell, 100, 10))
	require.NoError(t, err)
	assert.True(t, sell.Open)

	buy, err := b.Submit(limitReq("buyer1", models.Buy, 100, 10))
	require.NoError(t, err)

	assert.Equal(t, int64(10), buy.TotalFilled)
	assert.Equal(t, int64(0), buy.Qty)
	assert.False(t, buy.Open)
	require.Len(t, buy.Fills, 1)
	assert.Equal(t, int64(100), buy.Fills[0].Price)

	snap := b.GetBook()
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

func TestSubmit_PartialFillLeavesResidualOnBook(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitReq("seller1", models.Sell, 100, 5))
	require.NoError(t, err)

	buy, err := b.Submit(limitReq("buyer1", models.Buy, 100, 10))
	require.NoError(t, err)

	assert.Equal(t, int64(5), buy.TotalFilled)
	assert.Equal(t, int64(5), buy.Qty)
	assert.True(t, buy.Open)

	snap := b.GetBook()
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(5), snap.Bids[0].Qty)
	assert.Empty(t, snap.Asks)
}

func TestSubmit_MultiLevelMatchRespectsPricePriority(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitReq("seller1", models.Sell, 100, 5))
	require.NoError(t, err)
	_, err = b.Submit(limitReq("seller2", models.Sell, 101, 5))
	require.NoError(t, err)

	buy, err := b.Submit(limitReq("buyer1", models.Buy, 101, 8))
	require.NoError(t, err)

	require.Len(t, buy.Fills, 2)
	assert.Equal(t, int64(100), buy.Fills[0].Price)
	assert.Equal(t, int64(5), buy.Fills[0].Qty)
	assert.Equal(t, int64(101), buy.Fills[1].Price)
	assert.Equal(t, int64(3), buy.Fills[1].Qty)

	snap := b.GetBook()
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, int64(2), snap.Asks[0].Qty)
}

func TestSubmit_ImmediateOrCancelNeverRests(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitReq("seller1", models.Sell, 100, 5))
	require.NoError(t, err)

	req := limitReq("buyer1", models.Buy, 100, 10)
	req.OrderType = models.ImmediateOrCancel
	ioc, err := b.Submit(req)
	require.NoError(t, err)

	assert.Equal(t, int64(5), ioc.TotalFilled)
	assert.Equal(t, int64(5), ioc.Qty)
	assert.False(t, ioc.Open)

	snap := b.GetBook()
	assert.Empty(t, snap.Bids)
	assert.Empty(t, snap.Asks)
}

func TestSubmit_FillOrKillUnfillableLeavesOriginalQtyAndClosed(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitReq("seller1", models.Sell, 100, 5))
	require.NoError(t, err)

	req := limitReq("buyer1", models.Buy, 100, 10)
	req.OrderType = models.FillOrKill
	fok, err := b.Submit(req)
	require.NoError(t, err)

	assert.Equal(t, int64(0), fok.TotalFilled)
	assert.Equal(t, int64(10), fok.Qty)
	assert.False(t, fok.Open)

	snap := b.GetBook()
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, int64(5), snap.Asks[0].Qty, "resting sell order must be untouched")
}

func TestSubmit_FillOrKillFillableExecutesInFull(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitReq("seller1", models.Sell, 100, 10))
	require.NoError(t, err)

	req := limitReq("buyer1", models.Buy, 100, 10)
	req.OrderType = models.FillOrKill
	fok, err := b.Submit(req)
	require.NoError(t, err)

	assert.Equal(t, int64(10), fok.TotalFilled)
	assert.Equal(t, int64(0), fok.Qty)
	assert.False(t, fok.Open)
}

func TestSubmit_MarketOrderSweepsEmptyOppositeSide(t *testing.T) {
	b := newTestBook()

	req := models.SubmitRequest{
		Venue: "TEST", Symbol: "BTCUSD",
		Direction: models.Buy, OrderType: models.Market,
		Qty: 10, Account: "buyer1",
	}
	order, err := b.Submit(req)
	require.NoError(t, err)

	assert.Equal(t, int64(0), order.TotalFilled)
	assert.Equal(t, int64(10), order.Qty)
	assert.False(t, order.Open, "market orders never rest, even unfilled")
	assert.Equal(t, int64(0), order.Price, "submitted price field is unchanged by the temporary override")
}

func TestSubmit_MarketOrderTakesRestingPrices(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitReq("seller1", models.Sell, 100, 5))
	require.NoError(t, err)
	_, err = b.Submit(limitReq("seller2", models.Sell, 105, 10))
	require.NoError(t, err)

	req := models.SubmitRequest{
		Venue: "TEST", Symbol: "BTCUSD",
		Direction: models.Buy, OrderType: models.Market,
		Qty: 8, Account: "buyer1",
	}
	order, err := b.Submit(req)
	require.NoError(t, err)

	assert.Equal(t, int64(8), order.TotalFilled)
	require.Len(t, order.Fills, 2)
	assert.Equal(t, int64(100), order.Fills[0].Price)
	assert.Equal(t, int64(105), order.Fills[1].Price)
	assert.False(t, order.Open)
}

func TestCancel_RemovesRestingOrderFromBook(t *testing.T) {
	b := newTestBook()

	order, err := b.Submit(limitReq("buyer1", models.Buy, 100, 10))
	require.NoError(t, err)

	cancelled, err := b.Cancel(order.ID)
	require.NoError(t, err)
	assert.False(t, cancelled.Open)
	assert.Equal(t, int64(0), cancelled.Qty)

	snap := b.GetBook()
	assert.Empty(t, snap.Bids)
	assert.NotEmpty(t, snap.Ts)
	assert.True(t, snap.Ok)
}

func TestCancel_IsIdempotent(t *testing.T) {
	b := newTestBook()

	order, err := b.Submit(limitReq("buyer1", models.Buy, 100, 10))
	require.NoError(t, err)

	_, err = b.Cancel(order.ID)
	require.NoError(t, err)
	again, err := b.Cancel(order.ID)
	require.NoError(t, err)
	assert.False(t, again.Open)
	assert.Equal(t, int64(0), again.Qty)
}

func TestCancel_DoesNotZeroAnAlreadyClosedOrdersResidualQty(t *testing.T) {
	b := newTestBook()

	ioc, err := b.Submit(models.SubmitRequest{
		Venue: "TEST", Symbol: "BTCUSD",
		Direction: models.Buy, OrderType: models.ImmediateOrCancel,
		Price: 100, Qty: 10, Account: "buyer1",
	})
	require.NoError(t, err)
	require.False(t, ioc.Open)
	require.Equal(t, int64(10), ioc.Qty, "unfilled IOC closes with its residual qty intact")

	unchanged, err := b.Cancel(ioc.ID)
	require.NoError(t, err)
	assert.False(t, unchanged.Open)
	assert.Equal(t, int64(10), unchanged.Qty, "cancelling an already-closed order must not mutate it")
}

func TestCancel_UnknownIDReturnsNotFound(t *testing.T) {
	b := newTestBook()
	_, err := b.Cancel(999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetStatus_UnknownIDReturnsNotFound(t *testing.T) {
	b := newTestBook()
	_, err := b.GetStatus(999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAccountFromOrderID(t *testing.T) {
	b := newTestBook()
	order, err := b.Submit(limitReq("buyer1", models.Buy, 100, 10))
	require.NoError(t, err)

	account, err := b.AccountFromOrderID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "buyer1", account)
}

func TestGetAllOrders_ReturnsOnlyThatAccountsOrders(t *testing.T) {
	b := newTestBook()
	_, err := b.Submit(limitReq("buyer1", models.Buy, 100, 10))
	require.NoError(t, err)
	_, err = b.Submit(limitReq("buyer2", models.Buy, 99, 10))
	require.NoError(t, err)

	orders := b.GetAllOrders("buyer1")
	require.Len(t, orders, 1)
	assert.Equal(t, "buyer1", orders[0].Account)
}

func TestGetQuote_ReflectsTopOfBookAndLastTrade(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limitReq("seller1", models.Sell, 105, 5))
	require.NoError(t, err)
	_, err = b.Submit(limitReq("buyer1", models.Buy, 95, 5))
	require.NoError(t, err)

	q := b.GetQuote()
	assert.Equal(t, int64(105), q.Ask)
	assert.Equal(t, int64(95), q.Bid)
	assert.Equal(t, int64(5), q.BidDepth)
	assert.Equal(t, int64(5), q.AskDepth)
	assert.NotEmpty(t, q.QuoteTime)
	assert.True(t, q.Ok)
	assert.False(t, q.HasLast)

	_, err = b.Submit(limitReq("buyer2", models.Buy, 105, 5))
	require.NoError(t, err)

	q = b.GetQuote()
	assert.True(t, q.HasLast)
	assert.Equal(t, int64(105), q.Last)
	assert.NotEmpty(t, q.LastTrade)
}

func TestSubmit_RejectsInvalidRequest(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(models.SubmitRequest{
		Venue: "TEST", Symbol: "BTCUSD",
		Direction: models.Buy, OrderType: models.Limit,
		Price: 100, Qty: 0, Account: "buyer1",
	})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestSubmit_SymbolAliasStockFallsBackWhenSymbolEmpty(t *testing.T) {
	b := newTestBook()

	req := models.SubmitRequest{
		Venue: "TEST", Stock: "BTCUSD",
		Direction: models.Buy, OrderType: models.Limit,
		Price: 100, Qty: 10, Account: "buyer1",
	}
	order, err := b.Submit(req)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", order.Symbol)
}

// Invariant I1: no open bid crosses an open ask once a Submit call returns,
// checked after a fixed interleaved sequence of limit orders.
func TestInvariant_NoCrossAfterSettling(t *testing.T) {
	b := newTestBook()
	prices := []int64{100, 101, 99, 102, 98, 100, 101}

	for i, p := range prices {
		dir := models.Buy
		if i%2 == 0 {
			dir = models.Sell
		}
		_, err := b.Submit(limitReq(fmt.Sprintf("acct-%d", i), dir, p, 3))
		require.NoError(t, err)
	}

	snap := b.GetBook()
	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		assert.Less(t, snap.Bids[0].Price, snap.Asks[0].Price, "best bid must not cross best ask")
	}
}

func TestInvariant_QtyZeroImpliesClosed(t *testing.T) {
	b := newTestBook()
	_, err := b.Submit(limitReq("seller1", models.Sell, 100, 10))
	require.NoError(t, err)
	buy, err := b.Submit(limitReq("buyer1", models.Buy, 100, 10))
	require.NoError(t, err)

	if buy.Qty == 0 {
		assert.False(t, buy.Open)
	}
}

func TestConcurrentSubmit(t *testing.T) {
	b := newTestBook()
	const goroutines = 50
	const ordersEach = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < ordersEach; j++ {
				dir := models.Buy
				if (i+j)%2 == 0 {
					dir = models.Sell
				}
				_, err := b.Submit(limitReq(fmt.Sprintf("acct-%d-%d", i, j), dir, 100, 1))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
}
