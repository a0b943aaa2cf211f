// Package recorder stores every frame of ACP connections in SQLite so
// sessions can be inspected after the fact.
package recorder

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

//go:embed schema.sql
var schemaSQL string

// Recorder owns the SQLite database
type Recorder struct {
	db     *sql.DB
	path   string
	logger logging.Logger
}

// Frame is one recorded line
type Frame struct {
	ID           int64
	ConnectionID string
	Direction    transport.Direction
	Kind         string
	Method       string
	// JSONRPCID is the raw id text, empty for notifications
	JSONRPCID  string
	Raw        string
	RecordedAt time.Time
}

// Open creates or opens the database at path. ":memory:" keeps it in memory.
func Open(ctx context.Context, path string, logger logging.Logger) (*Recorder, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create recorder directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// frames arrive from the read loop and the writer at the same time
	db.SetMaxOpenConns(1)

	r := &Recorder{db: db, path: path, logger: logger.WithFields(logging.Component("recorder"))}
	if err := r.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Path returns the database file path
func (r *Recorder) Path() string {
	return r.path
}

// Close releases the database
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Session records the frames of one connection
type Session struct {
	ID  string
	rec *Recorder
}

// StartSession registers a connection and returns its recording session
func (r *Recorder) StartSession(ctx context.Context, name string) (*Session, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO connections (id, name, started_at) VALUES (?, ?, ?)",
		id, name, time.Now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection record: %w", err)
	}
	return &Session{ID: id, rec: r}, nil
}

// Observer returns a FrameObserver for transport.WithFrameObserver. Storage
// failures are logged and never disturb the connection.
func (s *Session) Observer() transport.FrameObserver {
	return func(dir transport.Direction, line []byte) {
		if err := s.Record(context.Background(), dir, line); err != nil {
			s.rec.logger.WithError(err).Warn("Failed to record frame",
				logging.String("connection_id", s.ID))
		}
	}
}

// Record stores one line. Lines that are not valid JSON-RPC are kept with
// kind "invalid".
func (s *Session) Record(ctx context.Context, dir transport.Direction, line []byte) error {
	kind := protocol.KindInvalid
	var method, id sql.NullString
	if msg, err := protocol.ParseMessage(line); err == nil {
		kind = msg.Kind()
		if msg.Method != "" {
			method = sql.NullString{String: msg.Method, Valid: true}
		}
		if len(msg.ID) > 0 {
			id = sql.NullString{String: string(msg.ID), Valid: true}
		}
	}

	_, err := s.rec.db.ExecContext(ctx,
		`INSERT INTO frames (connection_id, direction, kind, method, jsonrpc_id, raw, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, string(dir), kind.String(), method, id, string(line), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record frame: %w", err)
	}
	return nil
}

// Close marks the connection as closed
func (s *Session) Close(ctx context.Context) error {
	_, err := s.rec.db.ExecContext(ctx,
		"UPDATE connections SET closed_at = ? WHERE id = ?",
		time.Now().UnixMilli(), s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to close connection record: %w", err)
	}
	return nil
}

// Frames returns the frames of a connection in recording order
func (r *Recorder) Frames(ctx context.Context, connectionID string) ([]Frame, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, connection_id, direction, kind, method, jsonrpc_id, raw, recorded_at
		 FROM frames WHERE connection_id = ? ORDER BY id ASC`,
		connectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var dir string
		var method, id sql.NullString
		var recordedAt int64
		if err := rows.Scan(&f.ID, &f.ConnectionID, &dir, &f.Kind, &method, &id, &f.Raw, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		f.Direction = transport.Direction(dir)
		f.Method = method.String
		f.JSONRPCID = id.String
		f.RecordedAt = time.UnixMilli(recordedAt)
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// ErrUnknownConnection is returned for a connection id that was never recorded
var ErrUnknownConnection = errors.New("unknown connection")

// ConnectionInfo describes a recorded connection
type ConnectionInfo struct {
	ID        string
	Name      string
	StartedAt time.Time
	ClosedAt  *time.Time
}

// Connection returns the record of a connection
func (r *Recorder) Connection(ctx context.Context, id string) (*ConnectionInfo, error) {
	var info ConnectionInfo
	var startedAt int64
	var closedAt sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, started_at, closed_at FROM connections WHERE id = ?", id,
	).Scan(&info.ID, &info.Name, &startedAt, &closedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownConnection
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	info.StartedAt = time.UnixMilli(startedAt)
	if closedAt.Valid {
		t := time.UnixMilli(closedAt.Int64)
		info.ClosedAt = &t
	}
	return &info, nil
}
