package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

const schema = `
CREATE TABLE IF NOT EXISTS maps (
	id         TEXT PRIMARY KEY,
	image_url  TEXT NOT NULL,
	width      INTEGER,
	height     INTEGER,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS units (
	map_id   TEXT NOT NULL REFERENCES maps(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	label    TEXT NOT NULL,
	x        DOUBLE PRECISION NOT NULL,
	y        DOUBLE PRECISION NOT NULL,
	floor    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (map_id, position)
);
`

// SQLStore keeps records in a relational database. The same queries serve
// SQLite and PostgreSQL; placeholders are rebound per dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// OpenSQLite opens (or creates) a SQLite database at path. The special path
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	return newSQLStore(db, dialectSQLite)
}

// OpenPostgres connects to PostgreSQL using a lib/pq DSN.
func OpenPostgres(dsn string, maxConns int) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns / 2)
	}
	return newSQLStore(db, dialectPostgres)
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, now: time.Now}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// rebind rewrites '?' placeholders as $1, $2, ... for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) CreateMap(ctx context.Context, rec *MapRecord) error {
	if err := ValidateUnits(rec.Units); err != nil {
		return err
	}

	now := s.now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err, "create_map", "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO maps (id, image_url, width, height, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.ImageURL, nullInt(rec.Width), nullInt(rec.Height), now.UnixNano(), now.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return errMapExists(rec.ID)
		}
		return storeErr(err, "create_map", "failed to insert map")
	}
	if err := s.insertUnits(ctx, tx, rec.ID, rec.Units); err != nil {
		return storeErr(err, "create_map", "failed to insert units")
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err, "create_map", "failed to commit map")
	}

	rec.CreatedAt, rec.UpdatedAt = now, now
	return nil
}

func (s *SQLStore) GetMap(ctx context.Context, id string) (*MapRecord, error) {
	var (
		rec                  MapRecord
		width, height        sql.NullInt64
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, image_url, width, height, created_at, updated_at FROM maps WHERE id = ?`), id).
		Scan(&rec.ID, &rec.ImageURL, &width, &height, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMapNotFound
	}
	if err != nil {
		return nil, storeErr(err, "get_map", "failed to load map")
	}
	rec.Width = intPtr(width)
	rec.Height = intPtr(height)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT label, x, y, floor FROM units WHERE map_id = ? ORDER BY position`), id)
	if err != nil {
		return nil, storeErr(err, "get_map", "failed to load units")
	}
	defer rows.Close()

	rec.Units = []Unit{}
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.Label, &u.X, &u.Y, &u.Floor); err != nil {
			return nil, storeErr(err, "get_map", "failed to scan unit")
		}
		rec.Units = append(rec.Units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "get_map", "failed to load units")
	}
	return &rec, nil
}

func (s *SQLStore) ReplaceUnits(ctx context.Context, id string, units []Unit) (*MapRecord, error) {
	if err := ValidateUnits(units); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(err, "replace_units", "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE maps SET updated_at = ? WHERE id = ?`),
		s.now().UTC().UnixNano(), id)
	if err != nil {
		return nil, storeErr(err, "replace_units", "failed to update map")
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, storeErr(err, "replace_units", "failed to update map")
	} else if n == 0 {
		return nil, ErrMapNotFound
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM units WHERE map_id = ?`), id); err != nil {
		return nil, storeErr(err, "replace_units", "failed to clear units")
	}
	if err := s.insertUnits(ctx, tx, id, units); err != nil {
		return nil, storeErr(err, "replace_units", "failed to insert units")
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr(err, "replace_units", "failed to commit units")
	}

	return s.GetMap(ctx, id)
}

func (s *SQLStore) insertUnits(ctx context.Context, tx *sql.Tx, mapID string, units []Unit) error {
	if len(units) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO units (map_id, position, label, x, y, floor) VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare unit insert: %w", err)
	}
	defer stmt.Close()

	for i, u := range units {
		if _, err := stmt.ExecContext(ctx, mapID, i, u.Label, u.X, u.Y, u.Floor); err != nil {
			return fmt.Errorf("failed to insert unit %q: %w", u.Label, err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a key constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// Extended codes keep the primary code in the low byte.
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
