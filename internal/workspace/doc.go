// Package workspace holds the book currently open and caches its child
// collections.
//
// Every mutation writes through the store and then refetches the owning
// collection, so the cache never holds a value the store has not confirmed.
// A failed write leaves the cache untouched. After a successful write the
// workspace announces the change on the bus; it never calls the library or
// statistics engine directly.
//
// Lifecycle:
//
//	Closed --Open(id)--> Loading --fetch done--> Ready
//	Ready|Loading --Open(other)--> Loading
//	any --Close()--> Closed
//
// A failed fetch still ends in Ready, with empty collections and Err set.
package workspace
