// Command brewcore-inspect dumps the stored rows of an entity table as JSON.
// The persistence backend is selected through the BREWCORE_STORAGE_* and
// BREWCORE_POSTGRES_*/BREWCORE_SQLITE_* environment variables.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"brewcore/internal/core"
	"brewcore/pkg/domain"
)

func main() {
	table := flag.String("table", "", "entity table to dump (required)")
	includeDeleted := flag.Bool("deleted", false, "include soft-deleted rows")
	pretty := flag.Bool("pretty", true, "indent the JSON output")
	flag.Parse()

	logger, flush, err := core.NewProductionLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	if err := run(*table, *includeDeleted, *pretty, logger); err != nil {
		logger.Error("inspect failed", "error", err)
		os.Exit(1)
	}
}

func run(table string, includeDeleted, pretty bool, logger core.Logger) error {
	if table == "" {
		return fmt.Errorf("-table is required")
	}
	gateway, err := core.OpenGateway()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeGateway(gateway)

	lister, ok := gateway.(domain.RowLister)
	if !ok {
		return fmt.Errorf("storage driver does not support listing")
	}
	rows, err := lister.Rows(domain.Table(table), includeDeleted)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	logger.Info("table dumped", "table", table, "rows", len(rows), "deleted_included", includeDeleted)

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(rows)
}

func closeGateway(gateway domain.Gateway) {
	if closer, ok := gateway.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
