package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Format: 001_migration_name.up.sql or 001_migration_name.down.sql
var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider loads migrations from a filesystem, usually an embed.FS
type FSProvider struct {
	fsys           fs.FS
	migrationTable string
}

// NewFSProvider creates a provider reading migrations from the root of fsys
func NewFSProvider(fsys fs.FS, migrationTable string) *FSProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	return &FSProvider{
		fsys:           fsys,
		migrationTable: migrationTable,
	}
}

// GetMigrations loads all migrations sorted by version
func (p *FSProvider) GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(p.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := migrationFile.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in file %s: %w", entry.Name(), err)
		}

		content, err := fs.ReadFile(p.fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: strings.ReplaceAll(matches[2], "_", " ")}
			byVersion[version] = m
		}
		if matches[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (p *FSProvider) CreateMigrationTable(db DB) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, p.migrationTable)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (p *FSProvider) GetCurrentVersion(db DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.migrationTable)

	var version int
	if err := db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// MarkApplied records version as applied
func (p *FSProvider) MarkApplied(db DB, version int) error {
	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, p.migrationTable)
	if _, err := db.Exec(query, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}

// MarkReverted removes the record of version
func (p *FSProvider) MarkReverted(db DB, version int) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE version = ?`, p.migrationTable)
	if _, err := db.Exec(query, version); err != nil {
		return fmt.Errorf("failed to clear version: %w", err)
	}
	return nil
}
