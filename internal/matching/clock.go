package matching

import "time"

// nowISO is the single monotonic timestamp source for the whole package:
// every call yields an ISO-8601 UTC string with sub-second resolution.
// Ties between textually-equal timestamps are broken by insertion order,
// since a Book always appends new resting orders to the tail of their
// price level.
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
