package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresmejia3/skingrid/internal/types"
	"github.com/jackc/pgx/v5"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("session not found")

// Store manages the PostgreSQL connection holding recorded sessions.
type Store struct {
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ended_at TIMESTAMPTZ,
			work_width INT NOT NULL,
			work_height INT NOT NULL,
			box_width INT NOT NULL,
			box_height INT NOT NULL,
			lower_bound INT[] NOT NULL,
			upper_bound INT[] NOT NULL
		);
		CREATE TABLE IF NOT EXISTS frame_stats (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			frame_index INT NOT NULL,
			captured_at TIMESTAMPTZ NOT NULL,
			grid_rows INT NOT NULL,
			grid_cols INT NOT NULL,
			mean DOUBLE PRECISION NOT NULL,
			fps DOUBLE PRECISION NOT NULL,
			highlighted INT[] NOT NULL
		);
		CREATE INDEX IF NOT EXISTS frame_stats_session_id_idx ON frame_stats (session_id, frame_index);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// CreateSession registers a new session with its calibration.
func (s *Store) CreateSession(ctx context.Context, info types.SessionInfo) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO sessions (id, label, source, started_at, work_width, work_height, box_width, box_height, lower_bound, upper_bound)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, info.ID, info.Label, info.Source, info.StartedAt,
		info.WorkWidth, info.WorkHeight, info.BoxWidth, info.BoxHeight,
		info.Lower[:], info.Upper[:])
	return err
}

// FinishSession stamps the session end time.
func (s *Store) FinishSession(ctx context.Context, id string) error {
	tag, err := s.conn.Exec(ctx, "UPDATE sessions SET ended_at = NOW() WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// InsertFrameStats bulk-loads frame statistics with COPY.
func (s *Store) InsertFrameStats(ctx context.Context, stats []types.FrameStats) (int64, error) {
	if len(stats) == 0 {
		return 0, nil
	}
	return s.conn.CopyFrom(ctx,
		pgx.Identifier{"frame_stats"},
		[]string{"session_id", "frame_index", "captured_at", "grid_rows", "grid_cols", "mean", "fps", "highlighted"},
		pgx.CopyFromSlice(len(stats), func(i int) ([]any, error) {
			f := stats[i]
			highlighted := f.Highlighted
			if highlighted == nil {
				highlighted = []int{}
			}
			return []any{f.SessionID, f.Index, f.CapturedAt, f.Rows, f.Cols, f.Mean, f.FPS, highlighted}, nil
		}),
	)
}

const sessionColumns = `
	s.id, s.label, s.source, s.started_at, s.ended_at,
	s.work_width, s.work_height, s.box_width, s.box_height,
	s.lower_bound, s.upper_bound,
	COUNT(f.id),
	COALESCE(AVG(f.fps), 0)::float8,
	COALESCE(AVG(cardinality(f.highlighted)), 0)::float8
`

func scanSession(row pgx.Row) (types.SessionInfo, error) {
	var info types.SessionInfo
	var lower, upper []int
	err := row.Scan(&info.ID, &info.Label, &info.Source, &info.StartedAt, &info.EndedAt,
		&info.WorkWidth, &info.WorkHeight, &info.BoxWidth, &info.BoxHeight,
		&lower, &upper, &info.Frames, &info.AvgFPS, &info.AvgHighlighted)
	if err != nil {
		return info, err
	}
	copy(info.Lower[:], lower)
	copy(info.Upper[:], upper)
	return info, nil
}

// ListSessions returns every session, newest first, with frame aggregates.
func (s *Store) ListSessions(ctx context.Context) ([]types.SessionInfo, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions s LEFT JOIN frame_stats f ON f.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []types.SessionInfo
	for rows.Next() {
		info, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

// GetSession returns one session with frame aggregates.
func (s *Store) GetSession(ctx context.Context, id string) (types.SessionInfo, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions s LEFT JOIN frame_stats f ON f.session_id = s.id
		WHERE s.id = $1
		GROUP BY s.id
	`, id)
	info, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return info, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return info, err
}

// RecentFrames returns the last limit frames of a session in frame order.
func (s *Store) RecentFrames(ctx context.Context, id string, limit int) ([]types.FrameStats, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT session_id, frame_index, captured_at, grid_rows, grid_cols, mean, fps, highlighted
		FROM (
			SELECT * FROM frame_stats WHERE session_id = $1 ORDER BY frame_index DESC LIMIT $2
		) recent
		ORDER BY frame_index ASC
	`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []types.FrameStats
	for rows.Next() {
		var f types.FrameStats
		if err := rows.Scan(&f.SessionID, &f.Index, &f.CapturedAt, &f.Rows, &f.Cols, &f.Mean, &f.FPS, &f.Highlighted); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// RenameSession updates the label of a session.
func (s *Store) RenameSession(ctx context.Context, id, label string) error {
	tag, err := s.conn.Exec(ctx, "UPDATE sessions SET label = $1 WHERE id = $2", label, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS frame_stats CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
	`)
	return err
}
