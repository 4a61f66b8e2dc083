// Package storage provides database connectivity and data access.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	// sqliteGeoDriver is sqlite3 with Go implementations of the trigonometric
	// functions used by the radius filter.
	sqliteGeoDriver = "sqlite3_geo"
)

func init() {
	sql.Register(sqliteGeoDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			funcs := map[string]any{
				"acos":    math.Acos,
				"cos":     math.Cos,
				"sin":     math.Sin,
				"radians": radians,
			}
			for name, fn := range funcs {
				if err := conn.RegisterFunc(name, fn, true); err != nil {
					return fmt.Errorf("registering %s: %w", name, err)
				}
			}
			return nil
		},
	})
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Options selects and configures the database backend.
type Options struct {
	// Driver is DriverSQLite or DriverPostgres.
	Driver string

	// Path is the SQLite database file. Ignored for PostgreSQL.
	Path string

	// DSN is the PostgreSQL connection string. Ignored for SQLite.
	DSN string

	// GeoFunctions registers trigonometric SQL functions on SQLite connections.
	// Without them the radius filter is skipped.
	GeoFunctions bool
}

// DB wraps the SQL database connection with application-specific methods.
// Queries are written with ? placeholders and rebound for the active dialect.
type DB struct {
	*sql.DB
	path    string
	dialect Dialect
}

// NewDB creates a new SQLite database at the given path with geo functions enabled.
// It creates the directory structure if it doesn't exist.
func NewDB(path string) (*DB, error) {
	return Open(Options{Driver: DriverSQLite, Path: path, GeoFunctions: true})
}

// Open connects to the backend described by opts and probes its capabilities.
func Open(opts Options) (*DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch opts.Driver {
	case DriverSQLite, "":
		db, err = openSQLite(opts)
	case DriverPostgres:
		db, err = sql.Open(DriverPostgres, opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	name := opts.Driver
	if name == "" {
		name = DriverSQLite
	}
	if name == DriverSQLite {
		// WAL mode allows concurrent reads
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}

	dialect := Dialect{Name: name}
	dialect.SupportsTrig = probeTrig(db)
	if !dialect.SupportsTrig {
		log.Printf("Database %s has no trigonometric functions; radius search is disabled", name)
	}

	return &DB{DB: db, path: opts.Path, dialect: dialect}, nil
}

func openSQLite(opts Options) (*sql.DB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// - _foreign_keys=on: Enable foreign key constraints
	// - _journal_mode=WAL: Write-Ahead Logging for better concurrency
	// - _busy_timeout=5000: Wait up to 5 seconds if database is locked
	// - _synchronous=NORMAL: Balance between safety and performance
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", opts.Path)

	driver := DriverSQLite
	if opts.GeoFunctions {
		driver = sqliteGeoDriver
	}
	return sql.Open(driver, dsn)
}

func probeTrig(db *sql.DB) bool {
	var v float64
	err := db.QueryRow("SELECT acos(cos(radians(0.0)))").Scan(&v)
	return err == nil
}

// Path returns the filesystem path to the database file (empty for PostgreSQL).
func (db *DB) Path() string {
	return db.path
}

// Dialect returns the SQL dialect of the connected backend.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.dialect.Rebind(query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.dialect.Rebind(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.dialect.Rebind(query), args...)
}

// Tx is a transaction that rebinds placeholders like DB.
type Tx struct {
	*sql.Tx
	dialect Dialect
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.Tx.ExecContext(ctx, tx.dialect.Rebind(query), args...)
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.Tx.QueryContext(ctx, tx.dialect.Rebind(query), args...)
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.Tx.QueryRowContext(ctx, tx.dialect.Rebind(query), args...)
}

// Transaction executes a function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	tx := &Tx{Tx: sqlTx, dialect: db.dialect}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Dialect describes the differences between supported SQL backends.
type Dialect struct {
	Name string

	// SupportsTrig is true when acos/cos/sin/radians can be used in queries.
	SupportsTrig bool
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d.Name != DriverPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Least returns the SQL expression for the smaller of two scalar expressions.
func (d Dialect) Least(a, b string) string {
	if d.Name == DriverPostgres {
		return "LEAST(" + a + ", " + b + ")"
	}
	return "MIN(" + a + ", " + b + ")"
}

// Greatest returns the SQL expression for the larger of two scalar expressions.
func (d Dialect) Greatest(a, b string) string {
	if d.Name == DriverPostgres {
		return "GREATEST(" + a + ", " + b + ")"
	}
	return "MAX(" + a + ", " + b + ")"
}

// Placeholders returns n comma-separated ? placeholders.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
