package matching

import "errors"

// ErrNotFound is returned by GetStatus, Cancel, and AccountFromOrderID for
// an id outside [0, nextID) of the Book consulted.
var ErrNotFound = errors.New("order not found")
