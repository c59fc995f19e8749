package db

import (
	"os"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	// Blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"
)

// Migrate prepares the schema. With MIGRATIONS=1 the SQL files under
// ./migrations run via golang-migrate (postgres deployments); otherwise
// AutoMigrate keeps the dev/sqlite path zero-setup.
func Migrate(conn *gorm.DB, dsn string) error {
	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		return runSQLMigrations(dsn)
	}
	return AutoMigrate(conn)
}

func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
