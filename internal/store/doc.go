// Package store implements core.RoomStore.
//
// Memory keeps rooms in a mutex-guarded map and is the default for a single
// process. SQLite keeps them in a local database through a zombiezen
// connection pool; the table is cleared on open, so rooms never outlive the
// process that created them.
package store
