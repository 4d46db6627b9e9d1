// Package recorder wires the connection manager, message router, writers
// and metrics reporter into one service.
//
// Data flow:
//
//	exchange ──ws──▶ connection.Manager ──▶ router.Router ──▶ writer.OrderBookWriter ──▶ store
//	                                                     └──▶ writer.TradeWriter     ──▶ store
//
// Shutdown runs in the reverse order: the socket closes first, the router
// closes its buffers, and the writers drain what is queued before the
// store is released by the caller.
package recorder
