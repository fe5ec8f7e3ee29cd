package adapter

import (
	"context"
	"io"
	"time"
)

// FolderMIMEType is the MIME type Drive uses for folders; the memory adapter
// mirrors it so callers can distinguish folders without a provider switch.
const FolderMIMEType = "application/vnd.google-apps.folder"

// FileMetadata represents metadata about a file stored in the remote store.
type FileMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MIMEType     string    `json:"mimeType"`
	ModifiedTime time.Time `json:"modifiedTime"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	Parents      []string  `json:"parents,omitempty"`
}

// File represents a file with its content.
type File struct {
	FileMetadata
	Content []byte `json:"content"`
}

// IsFolder reports whether the metadata describes a folder.
func (m FileMetadata) IsFolder() bool {
	return m.MIMEType == FolderMIMEType
}

// StorageAdapter defines the interface for interacting with the remote object
// store. This abstraction allows switching between providers (Google Drive,
// the in-memory dev store) without changing the orchestration logic, and every
// call must be treated as fallible: latency, auth expiry, and transient
// network errors are all expected failure modes.
type StorageAdapter interface {
	// ListFiles lists files and folders that are direct children of folderID.
	ListFiles(ctx context.Context, folderID string) ([]FileMetadata, error)

	// GetFile retrieves a file's content and metadata by its ID.
	GetFile(ctx context.Context, fileID string) (*File, error)

	// SaveFile overwrites an existing file's content. A non-empty etag
	// enables optimistic locking; an empty etag forces the overwrite.
	SaveFile(ctx context.Context, fileID string, content []byte, etag string) (*FileMetadata, error)

	// CreateFile creates a new file under folderID, streaming content from r.
	CreateFile(ctx context.Context, name, mimeType string, r io.Reader, folderID string) (*FileMetadata, error)

	// CreateFolder creates a new folder under the given parents.
	CreateFolder(ctx context.Context, name string, parents []string) (*FileMetadata, error)

	// FolderExists verifies that folderID references an existing folder.
	FolderExists(ctx context.Context, folderID string) (bool, error)

	// EnsureRootFolder resolves a folder with the given name directly under
	// the store's root scope, creating it if absent, and returns its ID.
	EnsureRootFolder(ctx context.Context, name string) (string, error)
}
