package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	// Pure-Go sqlite driver, registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS placements (
	id             TEXT PRIMARY KEY,
	username       TEXT NOT NULL,
	x              REAL NOT NULL,
	y              REAL NOT NULL,
	avatar_source  TEXT NOT NULL,
	is_ai_placed   INTEGER NOT NULL,
	explanation    TEXT,
	lawful_chaotic INTEGER,
	good_evil      INTEGER,
	timestamp      TEXT NOT NULL
);
`

// SQLiteStore implements Store on an embedded sqlite database.
type SQLiteStore struct {
	path string

	mu          sync.Mutex
	db          *sql.DB
	initialized bool
}

// NewSQLiteStore creates a store for the database file at path.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and applies the schema. Safe to call more than
// once and from multiple goroutines: the mutex makes concurrent callers
// wait on the single in-flight open instead of racing independent ones.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply schema: %w", err)
	}

	s.db = db
	s.initialized = true
	return nil
}

func (s *SQLiteStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

// LoadAll returns every stored placement ordered by creation time.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]model.Placement, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, username, x, y, avatar_source, is_ai_placed,
		       explanation, lawful_chaotic, good_evil, timestamp
		FROM placements ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("load placements: %w", err)
	}
	defer rows.Close()

	var placements []model.Placement
	for rows.Next() {
		var (
			p           model.Placement
			aiPlaced    int
			explanation sql.NullString
			lc, ge      sql.NullInt64
			ts          string
		)
		if err := rows.Scan(&p.ID, &p.Username, &p.Position.X, &p.Position.Y,
			&p.AvatarSource, &aiPlaced, &explanation, &lc, &ge, &ts); err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		p.IsAiPlaced = aiPlaced != 0
		if explanation.Valid {
			p.Analysis = &model.Analysis{
				Explanation:   explanation.String,
				LawfulChaotic: int(lc.Int64),
				GoodEvil:      int(ge.Int64),
			}
		}
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			p.Timestamp = parsed
		}
		placements = append(placements, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load placements: %w", err)
	}
	return placements, nil
}

// SaveAll replaces the stored chart in a single transaction.
func (s *SQLiteStore) SaveAll(ctx context.Context, placements []model.Placement) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreSaveLatency(float64(time.Since(start).Milliseconds()))
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM placements`); err != nil {
		return fmt.Errorf("clear placements: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO placements
			(id, username, x, y, avatar_source, is_ai_placed,
			 explanation, lawful_chaotic, good_evil, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range placements {
		var (
			explanation sql.NullString
			lc, ge      sql.NullInt64
		)
		if p.Analysis != nil {
			explanation = sql.NullString{String: p.Analysis.Explanation, Valid: true}
			lc = sql.NullInt64{Int64: int64(p.Analysis.LawfulChaotic), Valid: true}
			ge = sql.NullInt64{Int64: int64(p.Analysis.GoodEvil), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Username, p.Position.X, p.Position.Y, p.AvatarSource,
			boolToInt(p.IsAiPlaced), explanation, lc, ge,
			p.Timestamp.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert placement %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Remove deletes one placement by id.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM placements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove placement: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear deletes every placement.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM placements`); err != nil {
		return fmt.Errorf("clear placements: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}
	s.initialized = false
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
