// Package history persists a ledger of terminal job outcomes in SQLite.
//
// Every outcome delivered to the result sink becomes one row. The ledger is
// append-only apart from Clear and is read back by `swc history`. The schema
// is embedded and versioned; a database written by a different schema version
// is rejected with ErrSchemaMismatch and must be cleared.
package history
