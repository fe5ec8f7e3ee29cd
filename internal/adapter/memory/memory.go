// Package memory implements adapter.StorageAdapter without Google Drive.
// With a nil DynamoDB client it keeps everything in an in-process map, which
// is what the tests use; with a client it persists items to DynamoDB so a dev
// deployment (LocalStack or a real table) survives restarts.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"tunedrive/internal/adapter"
)

const (
	maxContentSize = 64 * 1024 * 1024 // 64MB, enough for a long MP3
	maxItemCount   = 500
	itemTTL        = 24 * time.Hour
)

// FileItem is the DynamoDB representation of a stored file or folder.
type FileItem struct {
	PK           string    `dynamodbav:"pk"`
	ID           string    `dynamodbav:"id"`
	Name         string    `dynamodbav:"name"`
	MIMEType     string    `dynamodbav:"mime_type"`
	ModifiedTime time.Time `dynamodbav:"modified_time"`
	Size         int64     `dynamodbav:"size"`
	ETag         string    `dynamodbav:"etag"`
	Parents      []string  `dynamodbav:"parents"`
	Content      []byte    `dynamodbav:"content"`
	TTL          int64     `dynamodbav:"ttl"`
}

// MemoryAdapter implements adapter.StorageAdapter.
type MemoryAdapter struct {
	client    *dynamodb.Client
	tableName string

	// Fallback for tests
	files map[string]*adapter.File
	order []string // insertion order for deterministic listings
	mu    sync.RWMutex
}

// NewMemoryAdapter creates a MemoryAdapter. client may be nil for a purely
// in-process store.
func NewMemoryAdapter(client *dynamodb.Client, tableName string) *MemoryAdapter {
	return &MemoryAdapter{
		client:    client,
		tableName: tableName,
		files:     make(map[string]*adapter.File),
	}
}

func (m *MemoryAdapter) table() *string {
	return aws.String(m.tableName)
}

func metaOf(item FileItem) adapter.FileMetadata {
	return adapter.FileMetadata{
		ID:           item.ID,
		Name:         item.Name,
		MIMEType:     item.MIMEType,
		ModifiedTime: item.ModifiedTime,
		Size:         item.Size,
		ETag:         item.ETag,
		Parents:      item.Parents,
	}
}

func itemOf(f *adapter.File) FileItem {
	return FileItem{
		PK:           f.ID,
		ID:           f.ID,
		Name:         f.Name,
		MIMEType:     f.MIMEType,
		ModifiedTime: f.ModifiedTime,
		Size:         f.Size,
		ETag:         f.ETag,
		Parents:      f.Parents,
		Content:      f.Content,
		TTL:          time.Now().Add(itemTTL).Unix(),
	}
}

func (m *MemoryAdapter) putItem(ctx context.Context, f *adapter.File) error {
	av, err := attributevalue.MarshalMap(itemOf(f))
	if err != nil {
		return err
	}
	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: m.table(),
		Item:      av,
	})
	return err
}

func (m *MemoryAdapter) scanItems(ctx context.Context) ([]FileItem, error) {
	out, err := m.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: m.table(),
	})
	if err != nil {
		return nil, err
	}
	var items []FileItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (m *MemoryAdapter) countItems(ctx context.Context) (int, error) {
	if m.client == nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return len(m.files), nil
	}
	out, err := m.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: m.table(),
		Select:    types.SelectCount,
	})
	if err != nil {
		return 0, err
	}
	return int(out.Count), nil
}

func isChildOf(parents []string, folderID string) bool {
	for _, p := range parents {
		if p == folderID {
			return true
		}
	}
	return folderID == "root" && len(parents) == 0
}

// ListFiles lists the direct children of folderID.
func (m *MemoryAdapter) ListFiles(ctx context.Context, folderID string) ([]adapter.FileMetadata, error) {
	if folderID == "" {
		folderID = "root"
	}

	if m.client == nil {
		return m.listFilesMap(folderID), nil
	}

	items, err := m.scanItems(ctx)
	if err != nil {
		return nil, err
	}

	var files []adapter.FileMetadata
	for _, item := range items {
		if isChildOf(item.Parents, folderID) {
			files = append(files, metaOf(item))
		}
	}
	return files, nil
}

// GetFile retrieves a file's content and metadata by its ID.
func (m *MemoryAdapter) GetFile(ctx context.Context, fileID string) (*adapter.File, error) {
	if m.client == nil {
		return m.getFileMap(fileID)
	}

	out, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: m.table(),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: fileID},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, adapter.ErrNotFound
	}

	var item FileItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}

	return &adapter.File{FileMetadata: metaOf(item), Content: item.Content}, nil
}

// SaveFile overwrites an existing file's content.
func (m *MemoryAdapter) SaveFile(ctx context.Context, fileID string, content []byte, etag string) (*adapter.FileMetadata, error) {
	if len(content) > maxContentSize {
		return nil, fmt.Errorf("content too large (max %d bytes)", maxContentSize)
	}

	if m.client == nil {
		return m.saveFileMap(fileID, content, etag)
	}

	f, err := m.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if etag != "" && f.ETag != etag {
		return nil, adapter.ErrPreconditionFailed
	}

	f.Content = content
	f.ModifiedTime = time.Now()
	f.ETag = uuid.New().String()
	f.Size = int64(len(content))

	if err := m.putItem(ctx, f); err != nil {
		return nil, err
	}

	meta := f.FileMetadata
	return &meta, nil
}

// CreateFile creates a new file under folderID, reading content from r.
func (m *MemoryAdapter) CreateFile(ctx context.Context, name, mimeType string, r io.Reader, folderID string) (*adapter.FileMetadata, error) {
	content, err := io.ReadAll(io.LimitReader(r, maxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if len(content) > maxContentSize {
		return nil, fmt.Errorf("content too large (max %d bytes)", maxContentSize)
	}

	count, _ := m.countItems(ctx)
	if count >= maxItemCount {
		return nil, fmt.Errorf("item limit reached (max %d items)", maxItemCount)
	}

	if folderID == "" {
		folderID = "root"
	}

	f := &adapter.File{
		FileMetadata: adapter.FileMetadata{
			ID:           uuid.New().String(),
			Name:         name,
			MIMEType:     mimeType,
			ModifiedTime: time.Now(),
			Size:         int64(len(content)),
			ETag:         uuid.New().String(),
			Parents:      []string{folderID},
		},
		Content: content,
	}

	if m.client == nil {
		m.mu.Lock()
		m.files[f.ID] = f
		m.order = append(m.order, f.ID)
		m.mu.Unlock()
	} else if err := m.putItem(ctx, f); err != nil {
		return nil, err
	}

	meta := f.FileMetadata
	return &meta, nil
}

// CreateFolder creates a new folder under the given parents.
func (m *MemoryAdapter) CreateFolder(ctx context.Context, name string, parents []string) (*adapter.FileMetadata, error) {
	count, _ := m.countItems(ctx)
	if count >= maxItemCount {
		return nil, fmt.Errorf("item limit reached (max %d items)", maxItemCount)
	}

	if len(parents) == 0 {
		parents = []string{"root"}
	}

	f := &adapter.File{
		FileMetadata: adapter.FileMetadata{
			ID:           uuid.New().String(),
			Name:         name,
			MIMEType:     adapter.FolderMIMEType,
			ModifiedTime: time.Now(),
			ETag:         uuid.New().String(),
			Parents:      parents,
		},
	}

	if m.client == nil {
		m.mu.Lock()
		m.files[f.ID] = f
		m.order = append(m.order, f.ID)
		m.mu.Unlock()
	} else if err := m.putItem(ctx, f); err != nil {
		return nil, err
	}

	meta := f.FileMetadata
	return &meta, nil
}

// FolderExists verifies that folderID references an existing folder.
func (m *MemoryAdapter) FolderExists(ctx context.Context, folderID string) (bool, error) {
	f, err := m.GetFile(ctx, folderID)
	if err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return f.IsFolder(), nil
}

// EnsureRootFolder resolves a folder with the given name directly under
// 'root', creating it if absent.
func (m *MemoryAdapter) EnsureRootFolder(ctx context.Context, name string) (string, error) {
	files, err := m.ListFiles(ctx, "root")
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.Name == name && f.IsFolder() {
			return f.ID, nil
		}
	}

	folder, err := m.CreateFolder(ctx, name, []string{"root"})
	if err != nil {
		return "", err
	}
	return folder.ID, nil
}

// --- Map implementations (fallback) ---

func (m *MemoryAdapter) listFilesMap(folderID string) []adapter.FileMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []adapter.FileMetadata
	for _, id := range m.order {
		f := m.files[id]
		if isChildOf(f.Parents, folderID) {
			files = append(files, f.FileMetadata)
		}
	}
	return files
}

func (m *MemoryAdapter) getFileMap(fileID string) (*adapter.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, adapter.ErrNotFound
	}
	content := make([]byte, len(f.Content))
	copy(content, f.Content)
	return &adapter.File{FileMetadata: f.FileMetadata, Content: content}, nil
}

func (m *MemoryAdapter) saveFileMap(fileID string, content []byte, etag string) (*adapter.FileMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, adapter.ErrNotFound
	}
	if etag != "" && f.ETag != etag {
		return nil, adapter.ErrPreconditionFailed
	}

	f.Content = make([]byte, len(content))
	copy(f.Content, content)
	f.ModifiedTime = time.Now()
	f.ETag = uuid.New().String()
	f.Size = int64(len(content))

	meta := f.FileMetadata
	return &meta, nil
}
