package store

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS chatrooms (
	name       TEXT PRIMARY KEY,
	occupant   TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	namespace  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS chatrooms_waiting ON chatrooms (namespace, started_at);
`

const selectColumns = `SELECT name, occupant, started_at, namespace FROM chatrooms`

// SQLiteConfig holds the parameters for opening the room database.
type SQLiteConfig struct {
	// Path is the database file. The parent directory must exist.
	Path string
	// PoolSize defaults to max(runtime.NumCPU(), 4).
	PoolSize int
	// Now overrides the time source used for CreatedAt.
	Now func() time.Time
}

// SQLite is a RoomStore backed by a local SQLite database.
type SQLite struct {
	pool *sqlitex.Pool
	path string
	now  func() time.Time
}

var _ core.RoomStore = (*SQLite)(nil)

// OpenSQLite opens the pool, creates the schema and clears rooms left over
// from a previous run.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize < 4 {
			poolSize = 4
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: opening %s: %w", cfg.Path, err)
	}
	s := &SQLite{pool: pool, path: cfg.Path, now: now}

	conn, err := pool.Take(ctx)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("sqlite store: take: %w", err)
	}
	err = sqlitex.ExecuteTransient(conn, `DELETE FROM chatrooms`, nil)
	pool.Put(conn)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("sqlite store: clearing rooms: %w", err)
	}

	log.Info().Str("module", "store.sqlite").Str("path", cfg.Path).Int("pool_size", poolSize).Msg("room store opened")
	return s, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite store: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite store: schema: %w", err)
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("sqlite store: %s: %w: %w", op, domain.ErrStoreIO, err)
}

func (s *SQLite) take(ctx context.Context, op string) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return conn, nil
}

func (s *SQLite) CreateRoom(ctx context.Context, name domain.RoomName, occupant domain.OccupantToken, ns domain.Namespace) (*domain.Room, error) {
	if name == "" {
		name = generateName()
	}
	if err := domain.ValidateRoomName(name); err != nil {
		return nil, err
	}
	conn, err := s.take(ctx, "create")
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	room := domain.Room{
		Name:      name,
		Occupant:  occupant,
		CreatedAt: s.now(),
		Namespace: ns,
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO chatrooms (name, occupant, started_at, namespace) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{string(room.Name), string(room.Occupant), room.CreatedAt.UnixNano(), string(room.Namespace)},
		})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateName
		}
		return nil, storeErr("create "+string(name), err)
	}
	log.Debug().Str("module", "store.sqlite").Str("room", string(name)).Str("namespace", string(ns)).Msg("room created")
	return &room, nil
}

func (s *SQLite) GetRoom(ctx context.Context, name domain.RoomName) (*domain.Room, error) {
	conn, err := s.take(ctx, "get")
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)
	return getRoom(conn, name)
}

func getRoom(conn *sqlite.Conn, name domain.RoomName) (*domain.Room, error) {
	var found *domain.Room
	err := sqlitex.Execute(conn, selectColumns+` WHERE name = ?`, &sqlitex.ExecOptions{
		Args: []any{string(name)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			room := scanRoom(stmt)
			found = &room
			return nil
		},
	})
	if err != nil {
		return nil, storeErr("get "+string(name), err)
	}
	if found == nil {
		return nil, domain.ErrRoomNotFound
	}
	return found, nil
}

func (s *SQLite) FindAvailable(ctx context.Context, ns domain.Namespace) ([]domain.Room, error) {
	conn, err := s.take(ctx, "find available")
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	rooms, err := queryRooms(conn,
		selectColumns+` WHERE occupant != '' AND namespace = ? ORDER BY started_at, rowid`,
		string(ns))
	if err != nil {
		return nil, storeErr("find available", err)
	}
	return rooms, nil
}

func (s *SQLite) MarkJoined(ctx context.Context, name domain.RoomName) (err error) {
	conn, err := s.take(ctx, "mark joined")
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return storeErr("mark joined: begin", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `UPDATE chatrooms SET occupant = '' WHERE name = ? AND occupant != ''`,
		&sqlitex.ExecOptions{Args: []any{string(name)}})
	if err != nil {
		return storeErr("mark joined "+string(name), err)
	}
	if conn.Changes() == 1 {
		return nil
	}
	// Nothing updated: tell a vanished room from an already paired one.
	if _, err = getRoom(conn, name); err != nil {
		return err
	}
	return domain.ErrRoomNotWaiting
}

func (s *SQLite) DeleteRoom(ctx context.Context, name domain.RoomName) error {
	conn, err := s.take(ctx, "delete")
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM chatrooms WHERE name = ?`,
		&sqlitex.ExecOptions{Args: []any{string(name)}})
	if err != nil {
		return storeErr("delete "+string(name), err)
	}
	return nil
}

func (s *SQLite) CountByNamespace(ctx context.Context, ns domain.Namespace) (int, error) {
	conn, err := s.take(ctx, "count")
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	var n int
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM chatrooms WHERE namespace = ?`, &sqlitex.ExecOptions{
		Args: []any{string(ns)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

func (s *SQLite) ExpireWaiting(ctx context.Context, before time.Time) (rooms []domain.Room, err error) {
	conn, err := s.take(ctx, "expire")
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, storeErr("expire: begin", err)
	}
	defer endTransaction(&err)

	cutoff := before.UnixNano()
	rooms, err = queryRooms(conn,
		selectColumns+` WHERE occupant != '' AND started_at < ? ORDER BY started_at, rowid`,
		cutoff)
	if err != nil {
		return nil, storeErr("expire: select", err)
	}
	err = sqlitex.Execute(conn, `DELETE FROM chatrooms WHERE occupant != '' AND started_at < ?`,
		&sqlitex.ExecOptions{Args: []any{cutoff}})
	if err != nil {
		return nil, storeErr("expire: delete", err)
	}
	return rooms, nil
}

func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		log.Error().Err(err).Str("module", "store.sqlite").Str("path", s.path).Msg("close error")
		return fmt.Errorf("sqlite store: closing %s: %w", s.path, err)
	}
	log.Info().Str("module", "store.sqlite").Str("path", s.path).Msg("room store closed")
	return nil
}

func queryRooms(conn *sqlite.Conn, query string, args ...any) ([]domain.Room, error) {
	rooms := []domain.Room{}
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rooms = append(rooms, scanRoom(stmt))
			return nil
		},
	})
	return rooms, err
}

func scanRoom(stmt *sqlite.Stmt) domain.Room {
	return domain.Room{
		Name:      domain.RoomName(stmt.ColumnText(0)),
		Occupant:  domain.OccupantToken(stmt.ColumnText(1)),
		CreatedAt: time.Unix(0, stmt.ColumnInt64(2)),
		Namespace: domain.Namespace(stmt.ColumnText(3)),
	}
}

func isUniqueViolation(err error) bool {
	switch sqlite.ErrCode(err) {
	case sqlite.ResultConstraintPrimaryKey, sqlite.ResultConstraintUnique:
		return true
	}
	return false
}
