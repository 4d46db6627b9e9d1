// Package router decodes raw frames and hands data to the writers.
//
// Each frame is classified once by the protocol codec, counted, resolved to
// a symbol and queued on a GrowableBuffer. Acks and exchange errors are
// logged; frames that fail to decode are counted and dropped.
package router
