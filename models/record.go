package models

import (
	"encoding/json"
	"time"
)

// Table names of the synchronized data set. Every record the engine moves
// belongs to exactly one of these tables.
const (
	TableItems     = "items"
	TableTrips     = "trips"
	TableTripItems = "trip_items"
	TableOutfits   = "outfits"
	TableWishlist  = "wishlist"
)

// SyncTables is the canonical ordering of the synchronized tables.
// Pull application and image reconciliation iterate tables in this order so
// that crash recovery reasoning stays simple (apply is sequential per table).
var SyncTables = []string{TableItems, TableTrips, TableTripItems, TableOutfits, TableWishlist}

// KnownTable reports whether name is one of the synchronized tables.
func KnownTable(name string) bool {
	for _, t := range SyncTables {
		if t == name {
			return true
		}
	}
	return false
}

// Record is a single table-scoped entity as the sync engine sees it.
//
// The engine is deliberately opaque to the domain: all application fields of
// an item, trip, outfit or wishlist entry live inside Data as a raw JSON
// document. Only the three sync-relevant attributes are lifted out:
//
//   - ID is the stable string key of the record within its table.
//   - UpdatedAt is the last modification timestamp; it is the tie-breaker
//     for last-write-wins conflict resolution.
//   - Deleted is the soft-delete marker. Hard deletes are never propagated;
//     a record is retired by marking it deleted so that the deletion itself
//     can be synchronized as an upsert.
type Record struct {
	// ID is the unique identifier of the record within its table.
	ID string `json:"id"`

	// UpdatedAt is the timestamp of the last modification, used for
	// last-write-wins tie-breaking during push conflict resolution.
	UpdatedAt time.Time `json:"updatedAt"`

	// Deleted marks the record as soft-deleted. Deleted records keep their
	// row so the deletion can reach every device.
	Deleted bool `json:"_deleted,omitempty"`

	// Data is the full domain document after the mutation (never a diff),
	// opaque to the engine and to the remote store.
	Data json.RawMessage `json:"data,omitempty"`
}
