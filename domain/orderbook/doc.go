// Package orderbook holds the in-memory limit order book: per-price FIFO
// queues, the red-black price index with cached top-of-book, and the
// order-id index that makes cancel and modify O(log N).
//
// The package is allocation-free on the matching hot path: orders are
// pooled by the caller and linked intrusively, and price levels are only
// allocated when a new price first appears. Nothing in here locks; the
// book assumes a single writer.
package orderbook
