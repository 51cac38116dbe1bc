package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by Open. S3-specific variables are
// documented in s3.go.
const (
	EnvDriver = "BREWCORE_BLOB_DRIVER"  // fs|s3|memory (default fs)
	EnvFSRoot = "BREWCORE_BLOB_FS_ROOT" // directory root when driver=fs
)

// Open selects a Store implementation from the environment, defaulting to
// the filesystem store.
func Open(ctx context.Context) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv(EnvDriver)))
	switch Driver(driver) {
	case DriverFilesystem, Driver(""):
		return NewFilesystem(os.Getenv(EnvFSRoot))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
