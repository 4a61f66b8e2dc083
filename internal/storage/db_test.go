package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDialectRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		input   string
		want    string
	}{
		{"sqlite untouched", Dialect{Name: DriverSQLite}, "SELECT ? , ?", "SELECT ? , ?"},
		{"postgres numbered", Dialect{Name: DriverPostgres}, "a = ? AND b IN (?, ?)", "a = $1 AND b IN ($2, $3)"},
		{"postgres quoted literal", Dialect{Name: DriverPostgres}, "a = '?' AND b = ?", "a = '?' AND b = $1"},
		{"postgres no placeholders", Dialect{Name: DriverPostgres}, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.Rebind(tt.input); got != tt.want {
				t.Errorf("Rebind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDialectLeast(t *testing.T) {
	if got := (Dialect{Name: DriverSQLite}).Least("x", "1"); got != "MIN(x, 1)" {
		t.Errorf("sqlite Least = %q", got)
	}
	if got := (Dialect{Name: DriverPostgres}).Least("x", "1"); got != "LEAST(x, 1)" {
		t.Errorf("postgres Least = %q", got)
	}
	if got := (Dialect{Name: DriverPostgres}).Greatest("x", "-1"); got != "GREATEST(x, -1)" {
		t.Errorf("postgres Greatest = %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	tests := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range tests {
		if got := Placeholders(n); got != want {
			t.Errorf("Placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestOpenSQLiteGeoFunctions(t *testing.T) {
	dir := t.TempDir()

	withGeo, err := Open(Options{Driver: DriverSQLite, Path: filepath.Join(dir, "geo.db"), GeoFunctions: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer withGeo.Close()
	if !withGeo.Dialect().SupportsTrig {
		t.Error("expected trig support with geo functions registered")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Options{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestMigrationsPerDriver(t *testing.T) {
	for _, driver := range []string{DriverSQLite, DriverPostgres} {
		migrations, err := Migrations(driver)
		if err != nil {
			t.Fatalf("Migrations(%s) error = %v", driver, err)
		}
		var names []string
		for _, m := range migrations {
			names = append(names, m.Name)
		}
		if want := []string{"001_initial_schema.sql", "002_reference_data.sql"}; !reflect.DeepEqual(names, want) {
			t.Errorf("Migrations(%s) = %v, want %v", driver, names, want)
		}
	}

	if _, err := Migrations("mysql"); err == nil {
		t.Error("expected error for a driver without migrations")
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := RunMigrations(db); err != nil {
			t.Fatalf("RunMigrations() run %d error = %v", i+1, err)
		}
	}

	applied, err := AppliedMigrations(context.Background(), db)
	if err != nil {
		t.Fatalf("AppliedMigrations() error = %v", err)
	}
	if len(applied) != 2 || applied[1] != "002_reference_data.sql" {
		t.Errorf("applied = %v", applied)
	}
}

func TestRunMigrationsOnSQLite(t *testing.T) {
	openers := map[string]func(path string) (*DB, error){
		"NewDB": NewDB,
		"Open plain sqlite3": func(path string) (*DB, error) {
			return Open(Options{Driver: DriverSQLite, Path: path})
		},
	}

	for name, open := range openers {
		t.Run(name, func(t *testing.T) {
			db, err := open(filepath.Join(t.TempDir(), "schema.db"))
			if err != nil {
				t.Fatalf("opening database: %v", err)
			}
			defer db.Close()

			if err := RunMigrations(db); err != nil {
				t.Fatalf("RunMigrations() error = %v", err)
			}

			var bedTypes int
			if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM bed_types").Scan(&bedTypes); err != nil {
				t.Fatalf("querying bed_types: %v", err)
			}
			if bedTypes != 4 {
				t.Errorf("bed_types = %d, want 4 seeded rows", bedTypes)
			}
		})
	}
}
