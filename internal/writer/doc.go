// Package writer persists routed market data.
//
// Writers:
//   - Order-book writer: one raw snapshot plus one row per price level,
//     skipped when the book is unchanged since the last stored snapshot
//   - Trade writer: one row per exchange trade id
//
// Each unit of work runs in a single per-asset transaction; any failure
// rolls back everything written for that message. Amounts are stored as
// integer base units (for HASH-USD, microUSD and nanoHASH) next to their
// display values.
package writer
