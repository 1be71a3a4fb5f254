// Package blob selects a blob storage driver for scene backups and exports.
package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"scenecore/internal/blob/core"
	"scenecore/internal/infra/blob/fs"
	"scenecore/internal/infra/blob/memory"
	"scenecore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrNotFound = core.ErrNotFound
	ErrExists   = core.ErrExists
)

// Options configures Open. Empty fields fall back to the SCENECORE_BLOB_*
// environment variables.
type Options struct {
	Driver      Driver
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// Environment variables consulted by Open:
//
//	SCENECORE_BLOB_DRIVER      fs|s3|memory (default fs)
//	SCENECORE_BLOB_FS_ROOT     root directory for fs (default ./blobdata)
//	SCENECORE_BLOB_S3_BUCKET   bucket name, required for s3
//	SCENECORE_BLOB_S3_REGION   region (default us-east-1)
//	SCENECORE_BLOB_S3_ENDPOINT custom endpoint such as MinIO
//	SCENECORE_BLOB_S3_PATH_STYLE true|false
func Open(ctx context.Context, opts Options) (Store, error) {
	opts = withEnv(opts)
	switch opts.Driver {
	case DriverFilesystem:
		return fs.New(opts.FSRoot)
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    opts.S3Bucket,
			Region:    opts.S3Region,
			Endpoint:  opts.S3Endpoint,
			PathStyle: opts.S3PathStyle,
		})
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", opts.Driver)
	}
}

func withEnv(opts Options) Options {
	if opts.Driver == "" {
		opts.Driver = Driver(strings.ToLower(os.Getenv("SCENECORE_BLOB_DRIVER")))
	}
	if opts.Driver == "" {
		opts.Driver = DriverFilesystem
	}
	if opts.FSRoot == "" {
		opts.FSRoot = os.Getenv("SCENECORE_BLOB_FS_ROOT")
	}
	if opts.S3Bucket == "" {
		opts.S3Bucket = os.Getenv("SCENECORE_BLOB_S3_BUCKET")
	}
	if opts.S3Region == "" {
		opts.S3Region = os.Getenv("SCENECORE_BLOB_S3_REGION")
	}
	if opts.S3Endpoint == "" {
		opts.S3Endpoint = os.Getenv("SCENECORE_BLOB_S3_ENDPOINT")
	}
	if !opts.S3PathStyle {
		opts.S3PathStyle = strings.EqualFold(os.Getenv("SCENECORE_BLOB_S3_PATH_STYLE"), "true")
	}
	return opts
}
