// Package protocol encodes subscription commands and decodes inbound frames
// of the Figure Markets exchange WebSocket.
//
// Outbound commands:
//
//	{"action":"SUBSCRIBE","channel":"ORDER_BOOK","symbol":"HASH-USD",
//	 "channelUuid":"<uuid v4>","timestamp":1700000000000}
//
// Inbound frames are classified once by Decode into one of a closed set of
// message variants; callers type-switch over the result.
package protocol
