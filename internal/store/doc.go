// Package store defines the persistence interfaces for sections and
// generated questions, the DBTX abstraction that lets implementations run
// inside or outside a transaction, and the sentinel errors callers classify
// with errors.Is.
package store
