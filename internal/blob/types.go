// Package blob re-exports the blob storage contract and selects a backend.
// Callers outside this tree depend on blob.Store, never on infra packages.
package blob

import (
	"labbook/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
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

var (
	// ErrUnsupported indicates an operation isn't supported by a driver.
	ErrUnsupported = core.ErrUnsupported
	// ErrExists is returned when writing to a taken key.
	ErrExists = core.ErrExists
	// ErrNotFound is returned for missing keys.
	ErrNotFound = core.ErrNotFound
	// ErrInvalidKey is returned for keys the backend cannot store.
	ErrInvalidKey = core.ErrInvalidKey
)
