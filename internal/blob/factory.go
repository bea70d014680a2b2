package blob

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a blob backend. It is filled from the
// [blob] section of the labbook config file.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the Store named by cfg.Driver. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := Driver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
