package config

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/chrissnell/flarewatch/pkg/migrate"
	_ "modernc.org/sqlite"
)

const defaultConfigName = "default"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// InitSchema applies any pending configuration schema migrations
func (s *SQLiteProvider) InitSchema() error {
	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}

	m := migrate.NewMigrator(s.db, migrate.NewFSProvider(migrations, "config_migrations"), nil)
	if err := m.MigrateUp(); err != nil {
		return fmt.Errorf("failed to migrate config schema: %w", err)
	}
	return nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	detection, err := s.GetDetection()
	if err != nil {
		return nil, fmt.Errorf("failed to load detection config: %w", err)
	}
	config.Detection = *detection

	storage, err := s.GetStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	server, err := s.GetServer()
	if err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	config.Server = *server

	return config, nil
}

// GetDetection returns the detection parameters. A missing row yields zero values.
func (s *SQLiteProvider) GetDetection() (*DetectionData, error) {
	query := `
		SELECT d.bin_width, d.kernel_width, d.rise_ratio, d.drop_threshold,
		       d.background_ratio, d.decay_offset, d.max_fit_evaluations
		FROM detection_configs d
		JOIN configs c ON d.config_id = c.id
		WHERE c.name = ?`

	var binWidth, kernelWidth, maxEvals sql.NullInt64
	var riseRatio, dropThreshold, backgroundRatio, decayOffset sql.NullFloat64

	err := s.db.QueryRow(query, defaultConfigName).Scan(
		&binWidth, &kernelWidth, &riseRatio, &dropThreshold,
		&backgroundRatio, &decayOffset, &maxEvals,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &DetectionData{}, nil
	}
	if err != nil {
		return nil, err
	}

	return &DetectionData{
		BinWidth:          int(binWidth.Int64),
		KernelWidth:       int(kernelWidth.Int64),
		RiseRatio:         riseRatio.Float64,
		DropThreshold:     nullFloatPtr(dropThreshold),
		BackgroundRatio:   backgroundRatio.Float64,
		DecayOffset:       nullFloatPtr(decayOffset),
		MaxFitEvaluations: int(maxEvals.Int64),
	}, nil
}

// GetStorage returns storage configuration from the database
func (s *SQLiteProvider) GetStorage() (*StorageData, error) {
	query := `
		SELECT st.driver, st.dsn
		FROM storage_configs st
		JOIN configs c ON st.config_id = c.id
		WHERE c.name = ?`

	var driver, dsn sql.NullString
	err := s.db.QueryRow(query, defaultConfigName).Scan(&driver, &dsn)
	if errors.Is(err, sql.ErrNoRows) {
		return &StorageData{}, nil
	}
	if err != nil {
		return nil, err
	}

	return &StorageData{
		Driver: driver.String,
		DSN:    dsn.String,
	}, nil
}

// GetServer returns the HTTP server configuration from the database
func (s *SQLiteProvider) GetServer() (*ServerData, error) {
	query := `
		SELECT sv.listen_addr, sv.port, sv.cert, sv.key, sv.max_upload_mb, sv.enable_cors
		FROM server_configs sv
		JOIN configs c ON sv.config_id = c.id
		WHERE c.name = ?`

	var listenAddr, cert, key sql.NullString
	var port, maxUpload sql.NullInt64
	var enableCORS sql.NullBool

	err := s.db.QueryRow(query, defaultConfigName).Scan(&listenAddr, &port, &cert, &key, &maxUpload, &enableCORS)
	if errors.Is(err, sql.ErrNoRows) {
		return &ServerData{}, nil
	}
	if err != nil {
		return nil, err
	}

	return &ServerData{
		ListenAddr:  listenAddr.String,
		Port:        int(port.Int64),
		Cert:        cert.String,
		Key:         key.String,
		MaxUploadMB: int(maxUpload.Int64),
		EnableCORS:  enableCORS.Bool,
	}, nil
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig saves complete configuration to the database
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.upsertConfig(tx, defaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	d := configData.Detection
	_, err = tx.Exec(`INSERT INTO detection_configs
		(config_id, bin_width, kernel_width, rise_ratio, drop_threshold, background_ratio, decay_offset, max_fit_evaluations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		configID, d.BinWidth, d.KernelWidth, d.RiseRatio, d.DropThreshold, d.BackgroundRatio, d.DecayOffset, d.MaxFitEvaluations)
	if err != nil {
		return fmt.Errorf("failed to insert detection config: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO storage_configs (config_id, driver, dsn) VALUES (?, ?, ?)`,
		configID, configData.Storage.Driver, configData.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to insert storage config: %w", err)
	}

	sv := configData.Server
	_, err = tx.Exec(`INSERT INTO server_configs
		(config_id, listen_addr, port, cert, key, max_upload_mb, enable_cors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		configID, sv.ListenAddr, sv.Port, sv.Cert, sv.Key, sv.MaxUploadMB, sv.EnableCORS)
	if err != nil {
		return fmt.Errorf("failed to insert server config: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteProvider) upsertConfig(tx *sql.Tx, name string) (int64, error) {
	_, err := tx.Exec(`INSERT INTO configs (name, created_at, updated_at)
		VALUES (?, datetime('now'), datetime('now'))
		ON CONFLICT(name) DO UPDATE SET updated_at = datetime('now')`, name)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRow(`SELECT id FROM configs WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	queries := []string{
		"DELETE FROM detection_configs WHERE config_id = ?",
		"DELETE FROM storage_configs WHERE config_id = ?",
		"DELETE FROM server_configs WHERE config_id = ?",
	}

	for _, query := range queries {
		if _, err := tx.Exec(query, configID); err != nil {
			return err
		}
	}
	return nil
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
