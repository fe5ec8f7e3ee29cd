package adapter

import (
	"context"
)

// StorageProvider hands out an authenticated StorageAdapter for the archive
// account. Providers that refresh credentials per call (Google Drive) build a
// fresh adapter; the memory provider returns a shared instance.
type StorageProvider interface {
	GetAdapter(ctx context.Context) (StorageAdapter, error)
}
