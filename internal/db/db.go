// internal/db/db.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"buildbidz.in/internal/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

var DB *sql.DB

func RunMigrations(dbConn *sql.DB, dbName string) error {
	driverInstance, err := mysql.WithInstance(dbConn, &mysql.Config{
		DatabaseName: dbName,
	})
	if err != nil {
		return fmt.Errorf("failed to create mysql migration driver: %w", err)
	}

	// Resolve the migrations directory relative to this file so the path works
	// from both the binary and go test.
	_, currentFilePath, _, ok := runtime.Caller(0)
	if !ok {
		return fmt.Errorf("failed to resolve current file path for migrations")
	}
	projectRoot := filepath.Join(filepath.Dir(currentFilePath), "..", "..")
	migrationsPath := filepath.Join(projectRoot, "migrations")

	migrationsURL := "file://" + migrationsPath
	slog.Info("Applying migrations", "path", migrationsPath)

	m, err := migrate.NewWithDatabaseInstance(migrationsURL, "mysql", driverInstance)
	if err != nil {
		slog.Error("Failed to create migrate instance", "url", migrationsURL, "dbName", dbName, "error", err)
		return fmt.Errorf("failed to create migrate instance (check path '%s'): %w", migrationsURL, err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		version, dirty, verr := m.Version()
		if verr != nil {
			slog.Error("Failed to read migration status after failed Up", "migration_error", err, "status_error", verr)
		} else {
			slog.Error("Failed to apply migrations", "current_version", version, "dirty_state", dirty, "error_up", err)
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("Migrations: no changes.")
	} else {
		slog.Info("Migrations applied.")
	}

	return nil
}

func InitDB(appConfig *config.Config) error {
	var err error
	var dsn string

	dbCfg := appConfig.Database

	if dbCfg.DSN != "" && strings.Contains(dbCfg.DSN, "@") {
		dsn = dbCfg.DSN
		if !strings.Contains(dsn, "multiStatements=true") {
			if strings.Contains(dsn, "?") {
				dsn += "&multiStatements=true"
			} else {
				dsn += "?multiStatements=true"
			}
		}
		slog.Info("Using DATABASE_DSN for MySQL connection.", "dsn_preview", strings.Split(dsn, "@")[0]+"@...")
	} else if dbCfg.Host != "" && dbCfg.User != "" && dbCfg.DBName != "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&multiStatements=true",
			dbCfg.User,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
		)
		slog.Info("Building MySQL DSN from config components.")
	} else {
		return fmt.Errorf("insufficient MySQL connection parameters: set DATABASE_DSN or host, user and dbname")
	}

	safeDSN := dsn
	if dbCfg.Password != "" && strings.Contains(dsn, dbCfg.Password) {
		safeDSN = strings.Replace(dsn, dbCfg.Password, "****", 1)
	}
	slog.Info("Connecting to MySQL", "dsn", safeDSN)

	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	DB.SetConnMaxLifetime(time.Minute * 3)
	DB.SetMaxOpenConns(10)
	DB.SetMaxIdleConns(10)

	if err = DB.Ping(); err != nil {
		if DB != nil {
			_ = DB.Close()
		}
		return fmt.Errorf("MySQL ping failed: %w (dsn: %s)", err, safeDSN)
	}
	slog.Info("Connected to MySQL.")

	if err = RunMigrations(DB, dbCfg.DBName); err != nil {
		if DB != nil {
			_ = DB.Close()
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// The scs session store expects this table; keep its creation next to the
	// connection setup rather than in the migration history.
	createTableSQL := `CREATE TABLE IF NOT EXISTS sessions (
		token CHAR(43) PRIMARY KEY,
		data BLOB NOT NULL,
		expiry TIMESTAMP(6) NOT NULL
	);`
	createIndexSQL := `CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions (expiry);`

	if _, errTable := DB.Exec(createTableSQL); errTable != nil {
		slog.Error("Failed to create 'sessions' table.", "error", errTable)
	} else {
		if _, errIndex := DB.Exec(createIndexSQL); errIndex != nil {
			slog.Warn("Failed to create 'sessions_expiry_idx' index.", "error", errIndex)
		}
	}

	slog.Info("Database initialized (migrations and session store ready).")
	return nil
}
