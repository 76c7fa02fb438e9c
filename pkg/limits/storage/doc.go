// Package storage journals rate-limit violations.
//
// # Overview
//
// Every denied admission check can be recorded as a Violation. The journal
// is an audit trail for operators; limiter state itself is never restored
// from it. Two backends are provided:
//
//   - Memory: bounded in-memory journal, lost on exit
//   - SQLite: file-backed journal using the pure-Go modernc driver
//
// # Usage
//
//	backend := storage.NewMemoryBackend()
//	defer backend.Close()
//
//	err := backend.Record(ctx, &storage.Violation{
//	    ID:        uuid.NewString(),
//	    SessionID: "session-1",
//	    Dimension: "tool_specific",
//	})
//
//	recent, err := backend.List(ctx, storage.Filter{SessionID: "session-1", Limit: 10})
//
// # Thread Safety
//
// All backends are safe for concurrent use. Locking is handled internally.
package storage
