// Package store persists scraped attendees. Inserts are insert-if-absent on
// the attendee name, one independent statement per record.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/polzovatel/attendee-scraper/internal/extract"
)

var (
	// ErrUnknownDriver is returned by Open for an unsupported backend.
	ErrUnknownDriver = errors.New("unknown database driver")
	// ErrNoName rejects records without the required name.
	ErrNoName = errors.New("attendee record has no name")
)

// Options selects and addresses the backend.
type Options struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string
	// DSN is a file path for sqlite or a go-sql-driver DSN for mysql.
	DSN string
	// RunID tags every row this store saves.
	RunID string
	// BusyTimeout applies to sqlite only; 10s when zero.
	BusyTimeout time.Duration
}

// Attendee is a stored record.
type Attendee struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	JobTitle    *string   `json:"job_title,omitempty"`
	Company     *string   `json:"company,omitempty"`
	Industry    *string   `json:"industry,omitempty"`
	JobFunction *string   `json:"job_function,omitempty"`
	OperatesIn  *string   `json:"operates_in,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

type Store struct {
	db      *sql.DB
	dialect dialect
	runID   string
	logger  zerolog.Logger
	now     func() time.Time
}

// Open connects, creates the attendees table when missing and adds any
// column an older database lacks.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	dsn := opts.DSN
	if dsn == "" && d.name == "sqlite" {
		dsn = "attendees.db"
	}
	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}

	s := &Store{db: db, dialect: d, runID: opts.RunID, logger: logger, now: time.Now}
	if err := s.init(ctx, opts); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context, opts Options) error {
	switch s.dialect.name {
	case "sqlite":
		// One connection keeps ":memory:" databases shared and serialises
		// writers on file databases.
		s.db.SetMaxOpenConns(1)
		busy := opts.BusyTimeout
		if busy <= 0 {
			busy = 10 * time.Second
		}
		pragmas := []string{fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds())}
		if opts.DSN != ":memory:" {
			pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
		}
		for _, p := range pragmas {
			if _, err := s.db.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("sqlite %s: %w", p, err)
			}
		}
	case "mysql":
		s.db.SetMaxOpenConns(4)
		s.db.SetConnMaxLifetime(5 * time.Minute)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.db.PingContext(pingCtx); err != nil {
			return fmt.Errorf("ping mysql: %w", err)
		}
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("create attendees table: %w", err)
	}
	return s.migrate(ctx)
}

// migrate adds optional columns missing from databases created by older
// versions of the tool.
func (s *Store) migrate(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, s.dialect.columns)
	if err != nil {
		return fmt.Errorf("list attendee columns: %w", err)
	}
	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scan column name: %w", err)
		}
		have[name] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, col := range optionalColumns {
		if have[col] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE attendees ADD COLUMN %s %s", col, s.dialect.types[col])
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
		s.logger.Info().Str("column", col).Msg("added missing attendee column")
	}
	return nil
}

// Exists reports whether an attendee with this exact name is stored.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM attendees WHERE name = ? LIMIT 1`, name).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("exists %q: %w", name, err)
	}
	return true, nil
}

// Save inserts rec unless its name is already stored. It reports whether a
// row was written; a name collision is not an error.
func (s *Store) Save(ctx context.Context, rec extract.Record) (bool, error) {
	if !rec.Valid() {
		return false, ErrNoName
	}
	res, err := s.db.ExecContext(ctx, s.dialect.insert,
		rec.Name,
		value(rec.JobTitle),
		value(rec.Company),
		value(rec.Industry),
		value(rec.JobFunction),
		value(rec.OperatesIn),
		nullable(s.runID),
		s.now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("save %q: %w", rec.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save %q: rows affected: %w", rec.Name, err)
	}
	return n == 1, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendees`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attendees: %w", err)
	}
	return n, nil
}

// List returns every stored attendee, newest first.
func (s *Store) List(ctx context.Context) ([]Attendee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, job_title, company, industry, job_function, operates_in, run_id, scraped_at
	FROM attendees ORDER BY scraped_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	var out []Attendee
	for rows.Next() {
		var (
			a         Attendee
			runID     sql.NullString
			scrapedAt any
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.JobTitle, &a.Company, &a.Industry, &a.JobFunction, &a.OperatesIn, &runID, &scrapedAt); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		a.RunID = runID.String
		a.ScrapedAt = scrapedTime(scrapedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func value(v *string) any {
	if v == nil {
		return nil
	}
	return nullable(*v)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// legacyLayouts are timestamp formats older databases stored as text.
var legacyLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

// scrapedTime decodes scraped_at: unix milliseconds, or a text timestamp
// in rows written before the column became numeric.
func scrapedTime(v any) time.Time {
	switch t := v.(type) {
	case int64:
		return time.UnixMilli(t)
	case time.Time:
		return t
	case []byte:
		return scrapedTime(string(t))
	case string:
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
		for _, layout := range legacyLayouts {
			if ts, err := time.ParseInLocation(layout, t, time.Local); err == nil {
				return ts
			}
		}
	}
	return time.Time{}
}
