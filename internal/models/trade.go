package models

import "fmt"

// Execution is an internal audit record of one cross: it carries the uuid
// execution id used for structured logging alongside both participants'
// order ids. It never appears on the wire — the Fill struct appended to
// each Order is what clients see.
type Execution struct {
	ID            string
	BuyerOrderID  int64
	SellerOrderID int64
	Price         int64
	Qty           int64
	Ts            string
}

func (e Execution) String() string {
	return fmt.Sprintf("execution[id=%s buyer=%d seller=%d price=%d qty=%d ts=%s]",
		e.ID, e.BuyerOrderID, e.SellerOrderID, e.Price, e.Qty, e.Ts)
}
