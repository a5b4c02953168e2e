package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/hmi-forge/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// ErrClosed is returned by a ledger whose session has been torn down.
var ErrClosed = errors.New("screen ledger closed")

// Screen ledger row status values.
const (
	ScreenRendered = "rendered"
	ScreenFailed   = "failed"
)

// ScreenRecord is one row of the per-session screen ledger.
type ScreenRecord struct {
	Index        int    `json:"index" msgpack:"index"`
	Name         string `json:"name" msgpack:"name"`
	Type         string `json:"type" msgpack:"type"`
	Status       string `json:"status" msgpack:"status"`
	Source       string `json:"source" msgpack:"source"`
	ElementCount int    `json:"elementCount" msgpack:"elementCount"`
	SpecJSON     string `json:"-" msgpack:"-"`
	ImagePath    string `json:"imagePath,omitempty" msgpack:"imagePath,omitempty"`
	Error        string `json:"error,omitempty" msgpack:"error,omitempty"`
	RenderMs     int64  `json:"renderMs" msgpack:"renderMs"`
}

// LedgerOptions tune the DuckDB connection.
type LedgerOptions struct {
	Threads     int
	MemoryLimit string
}

// ScreenStore keeps the screens of one generation session in a
// temporary DuckDB file. Close removes the file.
type ScreenStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
	logger *slog.Logger
}

// NewScreenStore creates the ledger for sessionID in tempDir.
func NewScreenStore(tempDir, sessionID string, opts LedgerOptions, logger *slog.Logger) (*ScreenStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	if opts.Threads <= 0 {
		opts.Threads = 2
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = "256MB"
	}
	dbPath := filepath.Join(tempDir, fmt.Sprintf("session_%s.duckdb", sessionID))

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE screens (
			idx           INTEGER PRIMARY KEY,
			name          VARCHAR NOT NULL,
			screen_type   VARCHAR,
			status        VARCHAR NOT NULL,
			source        VARCHAR,
			element_count INTEGER,
			spec_json     VARCHAR,
			image_path    VARCHAR,
			error         VARCHAR,
			render_ms     BIGINT
		)
	`)
	if err != nil {
		db.Close()
		os.Remove(dbPath)
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Debug("screen ledger created", "path", dbPath)
	return &ScreenStore{db: db, dbPath: dbPath, logger: logger}, nil
}

// Put inserts or replaces one screen row.
func (s *ScreenStore) Put(ctx context.Context, rec ScreenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO screens
			(idx, name, screen_type, status, source, element_count, spec_json, image_path, error, render_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Index, rec.Name, rec.Type, rec.Status, rec.Source, rec.ElementCount,
		rec.SpecJSON, rec.ImagePath, rec.Error, rec.RenderMs)
	if err != nil {
		return fmt.Errorf("storing screen %d: %w", rec.Index, err)
	}
	return nil
}

// PutAll bulk-loads rows with the DuckDB appender. Indexes must not be
// present yet.
func (s *ScreenStore) PutAll(ctx context.Context, recs []ScreenRecord) error {
	if len(recs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}
		appender, err := duckdb.NewAppenderFromConn(dConn, "", "screens")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for _, rec := range recs {
			err := appender.AppendRow(
				int32(rec.Index),
				rec.Name,
				rec.Type,
				rec.Status,
				rec.Source,
				int32(rec.ElementCount),
				rec.SpecJSON,
				rec.ImagePath,
				rec.Error,
				rec.RenderMs,
			)
			if err != nil {
				return fmt.Errorf("failed to append screen %d: %w", rec.Index, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

const recordColumns = `idx, name, screen_type, status, source, element_count, spec_json, image_path, error, render_ms`

// Get returns the row for screen index i.
func (s *ScreenStore) Get(ctx context.Context, i int) (ScreenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ScreenRecord{}, ErrClosed
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM screens WHERE idx = ?`, i)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ScreenRecord{}, fmt.Errorf("%w: screen %d", ErrNotFound, i)
	}
	return rec, err
}

// List returns every row in screen order.
func (s *ScreenStore) List(ctx context.Context) ([]ScreenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM screens ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("listing screens: %w", err)
	}
	defer rows.Close()

	var out []ScreenRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary counts rendered and failed screens.
func (s *ScreenStore) Summary(ctx context.Context) (models.BatchSummary, error) {
	var summary models.BatchSummary
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return summary, ErrClosed
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = ?),
			COUNT(*) FILTER (WHERE status <> ?)
		FROM screens`, ScreenRendered, ScreenRendered).Scan(&summary.SuccessfulScreens, &summary.FailedScreens)
	if err != nil {
		return summary, fmt.Errorf("summarizing screens: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM screens WHERE status <> ? ORDER BY idx`, ScreenRendered)
	if err != nil {
		return summary, fmt.Errorf("listing failed screens: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return summary, err
		}
		summary.Failed = append(summary.Failed, name)
	}
	return summary, rows.Err()
}

// SourceCounts groups rows by specification source.
func (s *ScreenStore) SourceCounts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(source, ''), COUNT(*) FROM screens GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("counting sources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		out[source] = n
	}
	return out, rows.Err()
}

// Path is the location of the DuckDB file.
func (s *ScreenStore) Path() string {
	return s.dbPath
}

// Close closes the database and removes its file.
func (s *ScreenStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.db != nil {
		err = s.db.Close()
		s.db = nil
	}
	if s.dbPath != "" {
		os.Remove(s.dbPath)
		os.Remove(s.dbPath + ".wal")
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (ScreenRecord, error) {
	var (
		rec                                       ScreenRecord
		screenType, source, spec, imgPath, errMsg sql.NullString
		elements                                  sql.NullInt64
		renderMs                                  sql.NullInt64
	)
	if err := sc.Scan(&rec.Index, &rec.Name, &screenType, &rec.Status, &source, &elements, &spec, &imgPath, &errMsg, &renderMs); err != nil {
		return rec, err
	}
	rec.Type = screenType.String
	rec.Source = source.String
	rec.ElementCount = int(elements.Int64)
	rec.SpecJSON = spec.String
	rec.ImagePath = imgPath.String
	rec.Error = errMsg.String
	rec.RenderMs = renderMs.Int64
	return rec, nil
}
