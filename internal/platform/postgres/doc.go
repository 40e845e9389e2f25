// Package postgres implements the store interfaces against PostgreSQL.
//
// Implementations take a store.DBTX so they run unchanged against a plain
// connection or inside a transaction. The chapter schedule and batch audit
// trail are persisted as typed JSONB columns; driver errors are mapped onto
// the store sentinels by MapError. Schema migrations live under migrations/
// and are applied with goose.
package postgres
