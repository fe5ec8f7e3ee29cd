package memory

import (
	"context"
	"strings"
	"testing"

	"tunedrive/internal/adapter"
)

func TestMemoryAdapter_CreateAndListFiles(t *testing.T) {
	m := NewMemoryAdapter(nil, "")
	ctx := context.Background()

	file, err := m.CreateFile(ctx, "Song A", "audio/mpeg", strings.NewReader("mp3-bytes"), "")
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if file.Name != "Song A" {
		t.Errorf("Expected name 'Song A', got '%s'", file.Name)
	}
	if file.MIMEType != "audio/mpeg" {
		t.Errorf("Expected mimeType 'audio/mpeg', got '%s'", file.MIMEType)
	}
	if file.Size != int64(len("mp3-bytes")) {
		t.Errorf("Expected size %d, got %d", len("mp3-bytes"), file.Size)
	}

	files, err := m.ListFiles(ctx, "root")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(files))
	}
	if files[0].ID != file.ID {
		t.Errorf("File ID mismatch")
	}
}

func TestMemoryAdapter_ListFiles_InsertionOrder(t *testing.T) {
	m := NewMemoryAdapter(nil, "")
	ctx := context.Background()

	names := []string{"First", "Second", "Third"}
	for _, n := range names {
		if _, err := m.CreateFolder(ctx, n, []string{"root"}); err != nil {
			t.Fatalf("CreateFolder(%s) failed: %v", n, err)
		}
	}

	files, err := m.ListFiles(ctx, "root")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != len(names) {
		t.Fatalf("Expected %d folders, got %d", len(names), len(files))
	}
	for i, n := range names {
		if files[i].Name != n {
			t.Errorf("Position %d: expected %q, got %q", i, n, files[i].Name)
		}
	}
}

func TestMemoryAdapter_GetFile_NotFound(t *testing.T) {
	m := NewMemoryAdapter(nil, "")

	_, err := m.GetFile(context.Background(), "nonexistent-id")
	if err != adapter.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryAdapter_SaveFile_ETagMatch(t *testing.T) {
	m := NewMemoryAdapter(nil, "")
	ctx := context.Background()

	file, _ := m.CreateFile(ctx, "playlists.json", "application/json", strings.NewReader("v1"), "root")
	originalETag := file.ETag

	updated, err := m.SaveFile(ctx, file.ID, []byte("v2"), originalETag)
	if err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}
	if updated.ETag == originalETag {
		t.Error("Expected ETag to change after update")
	}

	f, _ := m.GetFile(ctx, file.ID)
	if string(f.Content) != "v2" {
		t.Errorf("Expected content 'v2', got '%s'", string(f.Content))
	}
}

func TestMemoryAdapter_SaveFile_ETagMismatch(t *testing.T) {
	m := NewMemoryAdapter(nil, "")
	ctx := context.Background()

	file, _ := m.CreateFile(ctx, "playlists.json", "application/json", strings.NewReader("v1"), "root")

	_, err := m.SaveFile(ctx, file.ID, []byte("v2"), "wrong-etag")
	if err != adapter.ErrPreconditionFailed {
		t.Errorf("Expected ErrPreconditionFailed, got %v", err)
	}
}

func TestMemoryAdapter_CreateFolder(t *testing.T) {
	m := NewMemoryAdapter(nil, "")
	ctx := context.Background()

	folder, err := m.CreateFolder(ctx, "Summer Mix", []string{"root"})
	if err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	if folder.Name != "Summer Mix" {
		t.Errorf("Expected name 'Summer Mix', got '%s'", folder.Name)
	}
	if !folder.IsFolder() {
		t.Errorf("Expected folder mimeType, got '%s'", folder.MIMEType)
	}
}

func TestMemoryAdapter_FolderExists(t *testing.T) {
	m := NewMemoryAdapter(nil, "")
	ctx := context.Background()

	folder, _ := m.CreateFolder(ctx, "Summer Mix", []string{"root"})
	file, _ := m.CreateFile(ctx, "Song A", "audio/mpeg", strings.NewReader("x"), folder.ID)

	ok, err := m.FolderExists(ctx, folder.ID)
	if err != nil {
		t.Fatalf("FolderExists failed: %v", err)
	}
	if !ok {
		t.Error("Expected folder to exist")
	}

	ok, err = m.FolderExists(ctx, "missing-id")
	if err != nil {
		t.Fatalf("FolderExists failed: %v", err)
	}
	if ok {
		t.Error("Expected missing folder to not exist")
	}

	// A plain file is not a folder.
	ok, err = m.FolderExists(ctx, file.ID)
	if err != nil {
		t.Fatalf("FolderExists failed: %v", err)
	}
	if ok {
		t.Error("Expected file to not count as a folder")
	}
}

func TestMemoryAdapter_EnsureRootFolder_Idempotent(t *testing.T) {
	m := NewMemoryAdapter(nil, "")
	ctx := context.Background()

	id1, err := m.EnsureRootFolder(ctx, "TuneDrive")
	if err != nil {
		t.Fatalf("EnsureRootFolder failed: %v", err)
	}

	id2, err := m.EnsureRootFolder(ctx, "TuneDrive")
	if err != nil {
		t.Fatalf("EnsureRootFolder second call failed: %v", err)
	}

	if id1 != id2 {
		t.Errorf("EnsureRootFolder should be idempotent: got different IDs %s vs %s", id1, id2)
	}
}

func TestMemoryAdapter_GetFile_ContentIsACopy(t *testing.T) {
	m := NewMemoryAdapter(nil, "")
	ctx := context.Background()

	file, _ := m.CreateFile(ctx, "playlists.json", "application/json", strings.NewReader("abc"), "root")

	f1, _ := m.GetFile(ctx, file.ID)
	f1.Content[0] = 'X'

	f2, _ := m.GetFile(ctx, file.ID)
	if string(f2.Content) != "abc" {
		t.Errorf("Stored content mutated through returned slice: %q", string(f2.Content))
	}
}
