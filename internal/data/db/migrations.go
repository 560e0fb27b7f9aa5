package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/dropzy/dropzy/internal/core/logging"
)

//go:embed migrations/*.sql
var embedded embed.FS

// ErrSchemaNewer is returned by Open when the database was migrated by a newer
// dropzy build than this one.
var ErrSchemaNewer = errors.New("database schema is newer than this build")

// Migration is one schema version: the SQL that applies it and the SQL that
// takes it back out.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// SchemaStatus describes where a database stands against the migrations
// compiled into the binary.
type SchemaStatus struct {
	Current   int       `json:"current"`
	Latest    int       `json:"latest"`
	AppliedAt time.Time `json:"applied_at,omitzero"`
	Pending   []string  `json:"pending,omitempty"`
}

// UpToDate reports whether every known migration has been applied.
func (s SchemaStatus) UpToDate() bool { return s.Current == s.Latest && len(s.Pending) == 0 }

type appliedRow struct {
	Version   int    `db:"version"`
	Name      string `db:"name"`
	AppliedAt int64  `db:"applied_at"`
}

type migrator struct {
	conn       *sqlx.DB
	migrations []Migration
	logger     zerolog.Logger
	now        func() time.Time
}

func newMigrator(conn *sqlx.DB, src fs.FS) (*migrator, error) {
	migrations, err := readMigrations(src)
	if err != nil {
		return nil, err
	}
	return &migrator{
		conn:       conn,
		migrations: migrations,
		logger:     logging.Component("db"),
		now:        time.Now,
	}, nil
}

// readMigrations pairs the NNNN_name.up.sql and NNNN_name.down.sql files in
// the migrations directory of src and orders them by version.
func readMigrations(src fs.FS) ([]Migration, error) {
	files, err := fs.Glob(src, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, file := range files {
		version, name, up, err := splitName(path.Base(file))
		if err != nil {
			return nil, fmt.Errorf("migration file %q: %w", path.Base(file), err)
		}
		body, err := fs.ReadFile(src, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("version %04d is named both %q and %q", version, m.Name, name)
		}

		slot := &m.DownSQL
		if up {
			slot = &m.UpSQL
		}
		if *slot != "" {
			return nil, fmt.Errorf("version %04d has two %s files", version, direction(up))
		}
		*slot = string(body)
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		switch {
		case m.UpSQL == "":
			return nil, fmt.Errorf("version %04d has no up file", m.Version)
		case m.DownSQL == "":
			return nil, fmt.Errorf("version %04d has no down file", m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

func direction(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

// splitName parses "0001_storage.up.sql" into (1, "storage", true).
func splitName(file string) (version int, name string, up bool, err error) {
	stem, ok := strings.CutSuffix(file, ".up.sql")
	up = ok
	if !ok {
		if stem, ok = strings.CutSuffix(file, ".down.sql"); !ok {
			return 0, "", false, fmt.Errorf("want a .up.sql or .down.sql suffix")
		}
	}

	prefix, name, ok := strings.Cut(stem, "_")
	if !ok || name == "" {
		return 0, "", false, fmt.Errorf("want NNNN_name")
	}
	version, err = strconv.Atoi(prefix)
	if err != nil {
		return 0, "", false, fmt.Errorf("version %q: %w", prefix, err)
	}
	if version <= 0 {
		return 0, "", false, fmt.Errorf("version must be positive, got %d", version)
	}
	return version, name, up, nil
}

func (m *migrator) latest() int {
	if len(m.migrations) == 0 {
		return 0
	}
	return m.migrations[len(m.migrations)-1].Version
}

func (m *migrator) applied(ctx context.Context) ([]appliedRow, error) {
	_, err := m.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	var rows []appliedRow
	if err := m.conn.SelectContext(ctx, &rows, "SELECT version, name, applied_at FROM schema_migrations ORDER BY version"); err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	return rows, nil
}

// up applies every pending migration and returns how many ran. A database
// carrying versions this build does not know is refused with ErrSchemaNewer.
func (m *migrator) up(ctx context.Context) (int, error) {
	rows, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}
	if n := len(rows); n > 0 && rows[n-1].Version > m.latest() {
		return 0, fmt.Errorf("%w: database at %d, build knows %d", ErrSchemaNewer, rows[n-1].Version, m.latest())
	}

	done := make(map[int]bool, len(rows))
	for _, r := range rows {
		done[r.Version] = true
	}

	ran := 0
	for _, mig := range m.migrations {
		if done[mig.Version] {
			continue
		}
		m.logger.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("applying migration")
		err := m.step(ctx, mig.UpSQL,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			mig.Version, mig.Name, m.now().UnixNano())
		if err != nil {
			return ran, fmt.Errorf("migration %04d (%s): %w", mig.Version, mig.Name, err)
		}
		ran++
	}
	return ran, nil
}

// down reverts the newest n applied migrations, newest first.
func (m *migrator) down(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("steps must be positive, got %d", n)
	}
	rows, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if n > len(rows) {
		return fmt.Errorf("cannot revert %d migrations, only %d applied", n, len(rows))
	}

	known := make(map[int]Migration, len(m.migrations))
	for _, mig := range m.migrations {
		known[mig.Version] = mig
	}

	for i := len(rows) - 1; i >= len(rows)-n; i-- {
		mig, ok := known[rows[i].Version]
		if !ok {
			return fmt.Errorf("%w: no down file for version %04d", ErrSchemaNewer, rows[i].Version)
		}
		m.logger.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("reverting migration")
		if err := m.step(ctx, mig.DownSQL, "DELETE FROM schema_migrations WHERE version = ?", mig.Version); err != nil {
			return fmt.Errorf("revert %04d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

// step runs body and the bookkeeping statement in one transaction.
func (m *migrator) step(ctx context.Context, body, record string, args ...any) error {
	tx, err := m.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("schema_migrations: %w", err)
	}
	return tx.Commit()
}

func (m *migrator) status(ctx context.Context) (SchemaStatus, error) {
	rows, err := m.applied(ctx)
	if err != nil {
		return SchemaStatus{}, err
	}

	st := SchemaStatus{Latest: m.latest()}
	done := make(map[int]bool, len(rows))
	for _, r := range rows {
		done[r.Version] = true
	}
	if n := len(rows); n > 0 {
		st.Current = rows[n-1].Version
		st.AppliedAt = time.Unix(0, rows[n-1].AppliedAt)
	}
	for _, mig := range m.migrations {
		if !done[mig.Version] {
			st.Pending = append(st.Pending, fmt.Sprintf("%04d_%s", mig.Version, mig.Name))
		}
	}
	return st, nil
}
