package core

import (
	"fmt"
	"os"

	"brewcore/internal/infra/persistence/memory"
	"brewcore/internal/infra/persistence/postgres"
	"brewcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistence gateway implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenGateway selects a persistence backend using environment variables.
// Defaults to sqlite when unset.
//
//	BREWCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	BREWCORE_SQLITE_PATH: path to sqlite file (default ./brewcore.db)
//	BREWCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenGateway() (Gateway, error) {
	driver := os.Getenv("BREWCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("BREWCORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("BREWCORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
