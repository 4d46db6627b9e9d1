// Package dedup decides whether an order-book snapshot carries new
// information.
//
// A snapshot is a duplicate when the most recent stored snapshot for the same
// asset has the same bids and asks: same number of levels and the same price
// and quantity at every index. Only the latest snapshot is compared, so a book
// that returns to an earlier state after changing is recorded again.
package dedup
