// Package database opens the configured relational store.
//
// Two backends are available:
//   - sqlite: an embedded file (default ./market_data.db), no server needed
//   - postgres: a pgx connection pool for shared or production deployments
package database
