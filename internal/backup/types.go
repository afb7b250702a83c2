// Package backup periodically exports the run history to local Parquet files
// and optionally uploads each export to S3.
package backup

import (
	"context"
	"time"
)

// Config controls periodic history exports.
type Config struct {
	Enabled   bool
	Interval  time.Duration
	LocalDir  string
	KeepLast  int
	BucketURL string

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3SessionToken string
	S3UseSSL       bool
}

// Exporter writes a point-in-time copy of the run history to dstPath and
// reports how many runs it contained.
type Exporter interface {
	ExportRuns(ctx context.Context, dstPath string) (int64, error)
}

// Uploader uploads one export file.
type Uploader interface {
	UploadFile(ctx context.Context, localPath string) error
}
