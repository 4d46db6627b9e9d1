// Package market keeps the set of tradable assets the recorder knows about.
//
// Configured assets are written to the store at startup with an idempotent
// upsert. Lookups are served from memory and fall back to the store once for
// symbols added by another process.
package market
