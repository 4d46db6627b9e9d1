// Package model defines the persisted market-data types and unit conversion.
//
// Conventions:
//   - Amounts are stored twice: as integer base units (microUSD, nanoHASH)
//     for exact arithmetic, and as decimal display units for reading.
//   - base = display × factor, truncated toward zero.
//   - display = base ÷ factor, rounded half-up.
//   - Timestamps are UTC time.Time values set at receipt.
//
// Struct tags carry the relational schema for the gorm-backed store; the
// Postgres store issues equivalent DDL itself.
package model
