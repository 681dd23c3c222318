// Package catalog persists normalized episodes, run summaries, and the
// chunk inventory in SQLite. The episode rows carry a source
// fingerprint (path, mtime, size) so an unchanged archive document can
// be served from the catalog instead of being re-parsed.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kikigaki/internal/models"
)

// Catalog is the SQLite-backed processing ledger.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS episodes (
		prefix TEXT NOT NULL,
		number INTEGER NOT NULL,
		title TEXT,
		date_str TEXT,
		ymd TEXT,
		year INTEGER,
		words INTEGER,
		content TEXT NOT NULL,
		source_path TEXT,
		source_mtime INTEGER,
		source_size INTEGER,
		updated_at TIMESTAMP,
		PRIMARY KEY (prefix, number)
	);

	CREATE INDEX IF NOT EXISTS idx_episodes_year ON episodes(prefix, year);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		prefixes TEXT,
		parsed INTEGER,
		reused INTEGER,
		failed INTEGER,
		date_fallbacks INTEGER,
		ambiguous INTEGER,
		chunks INTEGER,
		started TIMESTAMP,
		finished TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		run_id TEXT NOT NULL,
		prefix TEXT NOT NULL,
		name TEXT NOT NULL,
		start_number INTEGER,
		end_number INTEGER,
		year INTEGER,
		episodes INTEGER,
		words INTEGER,
		bytes INTEGER,
		created_at TIMESTAMP,
		PRIMARY KEY (run_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_prefix ON chunks(prefix);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertEpisode stores a freshly parsed episode along with the source
// document's fingerprint.
func (c *Catalog) UpsertEpisode(ctx context.Context, ep *models.EpisodeText, doc *models.Document) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO episodes (prefix, number, title, date_str, ymd, year, words, content,
		                       source_path, source_mtime, source_size, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(prefix, number) DO UPDATE SET
		   title = excluded.title,
		   date_str = excluded.date_str,
		   ymd = excluded.ymd,
		   year = excluded.year,
		   words = excluded.words,
		   content = excluded.content,
		   source_path = excluded.source_path,
		   source_mtime = excluded.source_mtime,
		   source_size = excluded.source_size,
		   updated_at = excluded.updated_at`,
		ep.Prefix, ep.Number, ep.Title, ep.DateStr, ep.YMD, ep.Year, ep.Words(), ep.Content,
		doc.Path, doc.ModTime.UnixNano(), doc.Size, time.Now(),
	)
	return err
}

// Lookup returns the stored episode for doc when the source fingerprint
// still matches, and (nil, false, nil) when the document is new or has
// changed since it was catalogued.
func (c *Catalog) Lookup(ctx context.Context, doc *models.Document) (*models.EpisodeText, bool, error) {
	ep := &models.EpisodeText{Prefix: doc.Prefix, Number: doc.Number}
	var path string
	var mtime, size int64

	err := c.db.QueryRowContext(ctx,
		`SELECT title, date_str, ymd, year, content, source_path, source_mtime, source_size
		 FROM episodes WHERE prefix = ? AND number = ?`,
		doc.Prefix, doc.Number,
	).Scan(&ep.Title, &ep.DateStr, &ep.YMD, &ep.Year, &ep.Content, &path, &mtime, &size)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if path != doc.Path || mtime != doc.ModTime.UnixNano() || size != doc.Size {
		return nil, false, nil
	}
	return ep, true, nil
}

// GetEpisode returns a catalogued episode by prefix and number.
func (c *Catalog) GetEpisode(ctx context.Context, prefix string, number int) (*models.EpisodeText, error) {
	ep := &models.EpisodeText{Prefix: prefix, Number: number}
	err := c.db.QueryRowContext(ctx,
		`SELECT title, date_str, ymd, year, content
		 FROM episodes WHERE prefix = ? AND number = ?`,
		prefix, number,
	).Scan(&ep.Title, &ep.DateStr, &ep.YMD, &ep.Year, &ep.Content)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("episode not found: %s %d", prefix, number)
	}
	if err != nil {
		return nil, err
	}
	return ep, nil
}

// ListEpisodes returns catalogued episodes for a prefix ordered by
// number, without their content.
func (c *Catalog) ListEpisodes(ctx context.Context, prefix string, offset, limit int) ([]*models.EpisodeMeta, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT prefix, number, title, date_str, ymd, year, words
		 FROM episodes WHERE prefix = ? ORDER BY number LIMIT ? OFFSET ?`,
		prefix, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eps []*models.EpisodeMeta
	for rows.Next() {
		var ep models.EpisodeMeta
		if err := rows.Scan(&ep.Prefix, &ep.Number, &ep.Title, &ep.DateStr, &ep.YMD, &ep.Year, &ep.Words); err != nil {
			return nil, err
		}
		eps = append(eps, &ep)
	}
	return eps, rows.Err()
}

// CountEpisodes returns per-prefix episode counts.
func (c *Catalog) CountEpisodes(ctx context.Context) (map[string]int, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT prefix, COUNT(*) FROM episodes GROUP BY prefix`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var prefix string
		var n int
		if err := rows.Scan(&prefix, &n); err != nil {
			return nil, err
		}
		counts[prefix] = n
	}
	return counts, rows.Err()
}

// RecordRun stores a run summary.
func (c *Catalog) RecordRun(ctx context.Context, sum *models.RunSummary) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (id, prefixes, parsed, reused, failed, date_fallbacks, ambiguous, chunks, started, finished)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, strings.Join(sum.Prefixes, ","), sum.Parsed, sum.Reused, sum.Failed,
		sum.DateFallbacks, sum.Ambiguous, sum.Chunks, sum.Started, sum.Finished,
	)
	return err
}

// LastRun returns the most recently finished run, or nil when no run
// has been recorded yet.
func (c *Catalog) LastRun(ctx context.Context) (*models.RunSummary, error) {
	var sum models.RunSummary
	var prefixes string

	err := c.db.QueryRowContext(ctx,
		`SELECT id, prefixes, parsed, reused, failed, date_fallbacks, ambiguous, chunks, started, finished
		 FROM runs ORDER BY finished DESC LIMIT 1`,
	).Scan(&sum.RunID, &prefixes, &sum.Parsed, &sum.Reused, &sum.Failed,
		&sum.DateFallbacks, &sum.Ambiguous, &sum.Chunks, &sum.Started, &sum.Finished)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if prefixes != "" {
		sum.Prefixes = strings.Split(prefixes, ",")
	}
	return &sum, nil
}

// RecordChunks stores the chunk inventory of one run in a transaction.
func (c *Catalog) RecordChunks(ctx context.Context, runID string, infos []models.ChunkInfo) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (run_id, prefix, name, start_number, end_number, year, episodes, words, bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, info := range infos {
		if _, err := stmt.ExecContext(ctx, runID, info.Prefix, info.Name, info.Start, info.End,
			info.Year, info.Episodes, info.Words, info.Bytes, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListChunks returns the chunk inventory recorded for a run, in insert
// order.
func (c *Catalog) ListChunks(ctx context.Context, runID string) ([]models.ChunkInfo, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT prefix, name, start_number, end_number, year, episodes, words, bytes
		 FROM chunks WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []models.ChunkInfo
	for rows.Next() {
		var info models.ChunkInfo
		if err := rows.Scan(&info.Prefix, &info.Name, &info.Start, &info.End,
			&info.Year, &info.Episodes, &info.Words, &info.Bytes); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}
