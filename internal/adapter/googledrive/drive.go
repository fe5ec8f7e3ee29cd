package googledrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"tunedrive/internal/adapter"
)

const mp3Ext = ".mp3"

const metaFields = "id, name, mimeType, modifiedTime, size, md5Checksum, parents"

// toDriveName appends the .mp3 extension for audio files stored on Drive.
func toDriveName(name string) string {
	if strings.HasSuffix(name, mp3Ext) {
		return name
	}
	return name + mp3Ext
}

// fromDriveName strips the .mp3 extension when returning names to callers.
func fromDriveName(name string) string {
	return strings.TrimSuffix(name, mp3Ext)
}

// DriveAdapter implements adapter.StorageAdapter for Google Drive.
type DriveAdapter struct {
	service *drive.Service
}

// NewDriveAdapter creates a new DriveAdapter.
// client should be an authenticated http.Client for the archive account.
func NewDriveAdapter(ctx context.Context, client *http.Client) (*DriveAdapter, error) {
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive client: %w", err)
	}
	return &DriveAdapter{service: srv}, nil
}

func toMetadata(f *drive.File) adapter.FileMetadata {
	name := f.Name
	if f.MimeType != adapter.FolderMIMEType {
		name = fromDriveName(name)
	}
	modTime, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return adapter.FileMetadata{
		ID:           f.Id,
		Name:         name,
		MIMEType:     f.MimeType,
		ModifiedTime: modTime,
		Size:         f.Size,
		ETag:         f.Md5Checksum,
		Parents:      f.Parents,
	}
}

// ListFiles lists the direct children of folderID.
func (d *DriveAdapter) ListFiles(ctx context.Context, folderID string) ([]adapter.FileMetadata, error) {
	if folderID == "" {
		folderID = "root"
	}

	q := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	fields := "nextPageToken, files(" + metaFields + ")"

	files := []adapter.FileMetadata{}
	pageToken := ""
	for {
		call := d.service.Files.List().
			Context(ctx).
			Q(q).
			Fields(googleapi.Field(fields))
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		r, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list files: %w", err)
		}
		for _, f := range r.Files {
			files = append(files, toMetadata(f))
		}
		if r.NextPageToken == "" {
			return files, nil
		}
		pageToken = r.NextPageToken
	}
}

// GetFile retrieves a file's content and metadata by its ID.
func (d *DriveAdapter) GetFile(ctx context.Context, fileID string) (*adapter.File, error) {
	f, err := d.service.Files.Get(fileID).
		Context(ctx).
		SupportsAllDrives(true).
		Fields(metaFields).
		Do()
	if err != nil {
		if isNotFound(err) {
			return nil, adapter.ErrNotFound
		}
		return nil, fmt.Errorf("unable to get file metadata: %w", err)
	}

	var content []byte
	if f.MimeType != adapter.FolderMIMEType {
		resp, err := d.service.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("unable to download file: %w", err)
		}
		defer resp.Body.Close()

		content, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("unable to read file content: %w", err)
		}
	}

	return &adapter.File{
		FileMetadata: toMetadata(f),
		Content:      content,
	}, nil
}

// SaveFile overwrites an existing file's content.
func (d *DriveAdapter) SaveFile(ctx context.Context, fileID string, content []byte, etag string) (*adapter.FileMetadata, error) {
	f := &drive.File{}
	call := d.service.Files.Update(fileID, f).
		Context(ctx).
		Media(bytes.NewReader(content)).
		SupportsAllDrives(true).
		Fields(metaFields)

	if etag != "" {
		call.Header().Set("If-Match", etag)
	}

	res, err := call.Do()
	if err != nil {
		if isPreconditionFailed(err) {
			return nil, adapter.ErrPreconditionFailed
		}
		if isNotFound(err) {
			return nil, adapter.ErrNotFound
		}
		return nil, fmt.Errorf("unable to update file: %w", err)
	}

	meta := toMetadata(res)
	return &meta, nil
}

// CreateFile creates a new file under folderID, streaming content from r.
// Audio files get the .mp3 suffix on Drive; anything else keeps its name.
func (d *DriveAdapter) CreateFile(ctx context.Context, name, mimeType string, r io.Reader, folderID string) (*adapter.FileMetadata, error) {
	if folderID == "" {
		folderID = "root"
	}

	driveName := name
	if strings.HasPrefix(mimeType, "audio/") {
		driveName = toDriveName(name)
	}

	f := &drive.File{
		Name:    driveName,
		Parents: []string{folderID},
	}
	res, err := d.service.Files.Create(f).
		Context(ctx).
		Media(r, googleapi.ContentType(mimeType)).
		SupportsAllDrives(true).
		Fields(metaFields).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create file: %w", err)
	}

	meta := toMetadata(res)
	return &meta, nil
}

// CreateFolder creates a new folder.
func (d *DriveAdapter) CreateFolder(ctx context.Context, name string, parents []string) (*adapter.FileMetadata, error) {
	if len(parents) == 0 {
		parents = []string{"root"}
	}

	f := &drive.File{
		Name:     name,
		MimeType: adapter.FolderMIMEType,
		Parents:  parents,
	}

	res, err := d.service.Files.Create(f).
		Context(ctx).
		Fields(metaFields).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create folder: %w", err)
	}

	meta := toMetadata(res)
	return &meta, nil
}

// FolderExists verifies that folderID references an existing, untrashed folder.
func (d *DriveAdapter) FolderExists(ctx context.Context, folderID string) (bool, error) {
	f, err := d.service.Files.Get(folderID).
		Context(ctx).
		SupportsAllDrives(true).
		Fields("id, mimeType, trashed").
		Do()
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("unable to check folder: %w", err)
	}
	return f.MimeType == adapter.FolderMIMEType && !f.Trashed, nil
}

// EnsureRootFolder resolves a folder with the given name directly under
// 'root', creating it if absent, and returns its ID.
func (d *DriveAdapter) EnsureRootFolder(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and 'root' in parents and trashed = false", name, adapter.FolderMIMEType)
	r, err := d.service.Files.List().Context(ctx).Q(q).Fields("files(id)").Do()
	if err != nil {
		return "", fmt.Errorf("unable to search for root folder: %w", err)
	}

	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder, err := d.CreateFolder(ctx, name, []string{"root"})
	if err != nil {
		return "", fmt.Errorf("unable to create root folder: %w", err)
	}

	return folder.ID, nil
}

func isPreconditionFailed(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == 412
	}
	return false
}

func isNotFound(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == 404
	}
	return false
}
