// Package queue owns the extraction job queue: the persisted item list, its
// status state machine, and the durable JSON representation.
//
// The store is a single-writer guarded handle. Every mutation is persisted
// synchronously by rewriting the queue file through an atomic rename, so a
// reload always reconstructs exactly the last saved item set. Items are
// unique on (product id, image filename) and kept in insertion order.
package queue
