package store

import (
	"fmt"
	"log/slog"
)

// Backend names accepted by OpenArchive.
const (
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
	BackendNone   = "none"
)

// Options selects and configures an archive backend.
type Options struct {
	Backend    string
	SQLitePath string
	S3         S3Config
}

// OpenArchive opens the backend named by opts.Backend.
func OpenArchive(opts Options) (Archive, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		slog.Debug("opening sqlite archive", "path", opts.SQLitePath)
		return Open(opts.SQLitePath)
	case BackendS3:
		slog.Debug("opening s3 archive", "endpoint", opts.S3.Endpoint, "bucket", opts.S3.Bucket)
		return NewS3Archive(opts.S3)
	case BackendNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", opts.Backend)
	}
}
