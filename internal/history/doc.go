// Package history keeps a SQLite ledger of finished uploads. The ledger is
// an audit record only: the live queue is in-memory and is never restored
// from it.
package history
