package matching

import (
	"github.com/openalpha/disorderbook/internal/models"
)

// Submit validates and dispatches one order request against the Book. It is
// the sole entry point that allocates an id and adds orders to the ladders;
// every order type that crosses does so through matchAgainst and differs
// only in what happens around it (an unfillable fill-or-kill never reaches
// matchAgainst).
func (b *Book) Submit(req models.SubmitRequest) (*models.Order, error) {
	symbol := req.ResolvedSymbol()
	if err := req.Validate(b.Venue, b.Symbol); err != nil {
		b.log.Debug().Err(err).Msg("rejected order")
		if b.metrics != nil {
			b.metrics.OrdersRejected.WithLabelValues(b.Venue, symbol).Inc()
		}
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	o := &models.Order{
		Ok:          true,
		ID:          b.nextID,
		Venue:       b.Venue,
		Symbol:      symbol,
		Account:     req.Account,
		Direction:   req.Direction,
		OrderType:   req.OrderType,
		Price:       req.Price,
		OriginalQty: req.Qty,
		Qty:         req.Qty,
		Open:        true,
		Ts:          b.now(),
	}
	b.nextID++

	switch req.OrderType {
	case models.Limit:
		b.matchAgainst(o)
		if o.Qty > 0 {
			b.insert(o)
		} else {
			o.Open = false
		}

	case models.ImmediateOrCancel:
		b.matchAgainst(o)
		o.Open = false

	case models.FillOrKill:
		if b.fokCanFill(o.Direction, o.Price, o.Qty) {
			b.matchAgainst(o)
		}
		o.Open = false

	case models.Market:
		opposite := b.oppositeTreeFor(o.Direction)
		submittedPrice := o.Price
		if worst, ok := worstPrice(opposite); ok {
			o.Price = worst
		}
		b.matchAgainst(o)
		o.Price = submittedPrice
		o.Open = false
	}

	b.idIndex[o.ID] = o
	b.accountIndex[o.Account] = append(b.accountIndex[o.Account], o)

	sweep(b.bids)
	sweep(b.asks)

	if b.metrics != nil {
		b.metrics.OrdersReceived.WithLabelValues(b.Venue, symbol).Inc()
		if o.TotalFilled > 0 {
			b.metrics.OrdersMatched.WithLabelValues(b.Venue, symbol).Inc()
		}
		b.metrics.OrdersResting.WithLabelValues(b.Venue, symbol, "buy").Set(float64(sumQty(b.bids)))
		b.metrics.OrdersResting.WithLabelValues(b.Venue, symbol, "sell").Set(float64(sumQty(b.asks)))
	}

	b.log.Info().
		Int64("id", o.ID).
		Str("venue", o.Venue).
		Str("symbol", o.Symbol).
		Str("account", o.Account).
		Str("direction", o.Direction.String()).
		Str("order_type", o.OrderType.String()).
		Int64("qty_filled", o.TotalFilled).
		Bool("open", o.Open).
		Msg("order submitted")

	return o, nil
}
