// Package blob is the entry point to source file storage. Callers depend on
// blob.Store; the concrete drivers live under internal/infra/blob.
package blob

import (
	"sessionflow/internal/blob/core"
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
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// Errors shared by every driver.
var (
	ErrNotFound = core.ErrNotFound
	ErrExists   = core.ErrExists
)
