// Package storage provides audit sink backends: an in-memory sink for tests
// and single-process use, and a SQLite sink for durable, multi-process
// ledgers.
package storage
