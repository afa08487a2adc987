// Package store persists incident records, the system's store of record.
// Two implementations are provided: a SQLite-backed store with an FTS5 index
// for keyword retrieval, and a volatile in-memory store suited for tests and
// demos. Both enforce partial uniqueness of report ids (only when present)
// and implement the fuzzy duplicate query used by the news pipeline.
package store
