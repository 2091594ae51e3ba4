package storage

import "fmt"

// Key schema for Pebble storage:
//
//	ord:<id>  → Order (id zero-padded to 20 digits for ordered iteration)
//	prm       → ParamsState
const (
	prefixOrder = "ord:"
	keyParams   = "prm"
)

// orderKey returns the key for an order.
// Format: "ord:{id}"
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
