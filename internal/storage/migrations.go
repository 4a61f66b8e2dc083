package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
)

//go:embed migrations/sqlite3/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Migration is one embedded schema change. Files are named with a numeric
// prefix and applied in name order.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the embedded migrations for a driver, in apply order.
func Migrations(driver string) ([]Migration, error) {
	dir, err := fs.Sub(migrationsFS, path.Join("migrations", driver))
	if err != nil {
		return nil, err
	}

	names, err := fs.Glob(dir, "*.sql")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(dir, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(content)})
	}
	return migrations, nil
}

// RunMigrations applies every migration not yet recorded in _migrations.
// Each one runs in its own transaction together with its bookkeeping row.
func RunMigrations(db *DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := AppliedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	migrations, err := Migrations(db.Dialect().Name)
	if err != nil {
		return fmt.Errorf("reading migration files: %w", err)
	}

	for _, m := range migrations {
		if done[m.Name] {
			continue
		}

		log.Printf("Applying migration: %s", m.Name)
		err := db.Transaction(ctx, func(tx *Tx) error {
			// Multi-statement scripts must bypass rebinding; they take no args.
			if _, err := tx.Tx.ExecContext(ctx, m.SQL); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO _migrations (name) VALUES (?)", m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s: %w", m.Name, err)
		}
	}

	return nil
}

// AppliedMigrations lists the recorded migrations in name order.
func AppliedMigrations(ctx context.Context, db *DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM _migrations ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
