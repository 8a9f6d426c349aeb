// Package storage provides SQLite-based persistence for session state.
//
// The state store remembers, per agent session, which symbols were last
// delivered and with which etag. The context pack engine asks it for a
// delta before packing so that symbols the agent already holds are sent
// as unchanged references instead of code.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations
//   - sessions: one row per session (fingerprint, language, timestamps)
//   - deliveries: last delivery per (session, symbol) pair
//
// Timestamps are stored as unix milliseconds.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(storage.DefaultPath(root))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	_, err = store.OpenSession(ctx, sessionID, idx.Fingerprint(), "go")
//
//	delta, err := store.CheckDelta(ctx, sessionID, map[string]string{
//	    "main.go:main": etag,
//	})
//
//	err = store.RecordDeliveriesBatch(ctx, records)
//
// # Build Tags
//
// The default build uses the pure Go modernc.org/sqlite driver. Building
// with the sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo"
package storage
