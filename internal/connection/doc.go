// Package connection owns the exchange WebSocket session.
//
// The Manager:
//   - Dials the exchange and reconnects with capped exponential backoff
//   - Replays every tracked subscription after each connect
//   - Runs the listener, health monitor and heartbeat monitor per session
//   - Gives up after a configured number of consecutive failures
//   - Forwards raw timestamped frames to the router
package connection
