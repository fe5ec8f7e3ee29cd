// Package index maintains the in-process playlist catalog: folder records
// mirrored to a JSON document persisted on the remote store. The in-memory
// copy is the source of truth for reads during a process's lifetime; the
// remote document is the source of truth across restarts.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"tunedrive/internal/adapter"
)

// SongEntry is one uploaded song inside a folder. Entries are append-only:
// nothing removes one short of a full index reset.
type SongEntry struct {
	Title        string `json:"title"`
	RemoteFileID string `json:"remoteFileId"`
}

// FolderRecord mirrors one playlist folder on the remote store.
type FolderRecord struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	ParentID string      `json:"parentId"`
	Songs    []SongEntry `json:"songs"`
}

// documentVersion allows the persisted schema to evolve without breaking
// existing documents.
const documentVersion = 1

// document is the persisted form of the index.
type document struct {
	Version int            `json:"version"`
	RootID  string         `json:"rootId"`
	Folders []FolderRecord `json:"folders"`
}

// State tracks initialization progress. Folder operations are only
// well-defined in StateReady.
type State int

const (
	StateUninitialized State = iota
	StateRootResolving
	StateRootResolved
	StateIndexLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRootResolving:
		return "root-resolving"
	case StateRootResolved:
		return "root-resolved"
	case StateIndexLoading:
		return "index-loading"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a PlaylistIndex.
type Options struct {
	// RootFolderID is the well-known archive root identifier; verified
	// against the store before use, may be empty.
	RootFolderID string
	// RootFolderName is used for name-based root resolution when the
	// well-known ID is absent or stale.
	RootFolderName string
	// DocumentName is the persisted index document's file name under the
	// root folder.
	DocumentName string
	// RemoteTimeout bounds every remote store call. Zero means no bound.
	RemoteTimeout time.Duration
}

// PlaylistIndex owns the in-memory folder set. All access goes through its
// methods; the write lock is held across each create+persist critical
// section, which serializes folder creation for equal (name, parentId) pairs
// and makes persisted snapshots totally ordered.
type PlaylistIndex struct {
	provider adapter.StorageProvider
	opts     Options
	logger   *log.Logger

	mu      sync.RWMutex
	state   State
	rootID  string
	docID   string
	folders []*FolderRecord // insertion order
}

// New creates an uninitialized PlaylistIndex. Call Init before use.
func New(provider adapter.StorageProvider, opts Options, logger *log.Logger) *PlaylistIndex {
	return &PlaylistIndex{
		provider: provider,
		opts:     opts,
		logger:   logger.With("component", "index"),
	}
}

// remoteCtx bounds a remote call by the configured timeout.
func (i *PlaylistIndex) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.opts.RemoteTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, i.opts.RemoteTimeout)
}

// State returns the current initialization state.
func (i *PlaylistIndex) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Ready reports whether folder operations are available.
func (i *PlaylistIndex) Ready() bool {
	return i.State() == StateReady
}

// Init resolves the archive root and loads the persisted index. It must
// complete before GetOrCreateFolder, ListFolders or RecordSong are used; a
// failed Init leaves the index unready and may be retried.
func (i *PlaylistIndex) Init(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state == StateReady {
		return nil
	}

	storage, err := i.provider.GetAdapter(ctx)
	if err != nil {
		i.state = StateUninitialized
		return fmt.Errorf("%w: %v", ErrRootUnavailable, err)
	}

	i.state = StateRootResolving
	if err := i.resolveRootLocked(ctx, storage); err != nil {
		i.state = StateUninitialized
		return err
	}
	i.state = StateRootResolved

	i.state = StateIndexLoading
	if err := i.loadIndexLocked(ctx, storage); err != nil {
		i.state = StateRootResolved
		return err
	}

	i.state = StateReady
	i.logger.Info("playlist index ready", "root", i.rootID, "folders", len(i.folders))
	return nil
}

// ResolveRoot returns the archive root identifier. After a successful Init
// this is a pure cache read with no remote call.
func (i *PlaylistIndex) ResolveRoot(ctx context.Context) (string, error) {
	i.mu.RLock()
	if i.rootID != "" {
		id := i.rootID
		i.mu.RUnlock()
		return id, nil
	}
	i.mu.RUnlock()

	if err := i.Init(ctx); err != nil {
		return "", err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.rootID, nil
}

// resolveRootLocked verifies the configured well-known root ID, falling back
// to a name-based lookup-or-create under the store's root scope.
func (i *PlaylistIndex) resolveRootLocked(ctx context.Context, storage adapter.StorageAdapter) error {
	if i.rootID != "" {
		return nil
	}

	if i.opts.RootFolderID != "" {
		rctx, cancel := i.remoteCtx(ctx)
		ok, err := storage.FolderExists(rctx, i.opts.RootFolderID)
		cancel()
		if err != nil {
			i.logger.Warn("could not verify configured root folder, falling back to name lookup",
				"id", i.opts.RootFolderID, "err", err)
		} else if ok {
			i.rootID = i.opts.RootFolderID
			return nil
		} else {
			i.logger.Warn("configured root folder does not exist, falling back to name lookup",
				"id", i.opts.RootFolderID)
		}
	}

	rctx, cancel := i.remoteCtx(ctx)
	id, err := storage.EnsureRootFolder(rctx, i.opts.RootFolderName)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: lookup-or-create %q: %v", ErrRootUnavailable, i.opts.RootFolderName, err)
	}

	i.rootID = id
	return nil
}

// loadIndexLocked fetches and decodes the persisted document. A missing
// document starts an empty index; a transient read failure is surfaced so a
// valid persisted catalog is never silently discarded; a document that exists
// but does not decode starts empty (it will be overwritten on the next
// persist).
func (i *PlaylistIndex) loadIndexLocked(ctx context.Context, storage adapter.StorageAdapter) error {
	i.folders = nil
	i.docID = ""

	rctx, cancel := i.remoteCtx(ctx)
	children, err := storage.ListFiles(rctx, i.rootID)
	cancel()
	if err != nil {
		return wrapRemote("loadIndex", RemoteRead, err)
	}

	docID := ""
	for _, f := range children {
		if f.Name == i.opts.DocumentName && !f.IsFolder() {
			docID = f.ID
			break
		}
	}
	if docID == "" {
		i.logger.Info("no persisted index found, starting empty")
		return nil
	}

	rctx, cancel = i.remoteCtx(ctx)
	file, err := storage.GetFile(rctx, docID)
	cancel()
	if err != nil {
		if errors.Is(err, adapter.ErrNotFound) {
			i.logger.Info("persisted index vanished between list and read, starting empty")
			return nil
		}
		return wrapRemote("loadIndex", RemoteRead, err)
	}

	i.docID = docID

	var doc document
	if err := json.Unmarshal(file.Content, &doc); err != nil {
		i.logger.Warn("persisted index is malformed, starting empty", "err", err)
		return nil
	}
	if doc.Version > documentVersion {
		i.logger.Warn("persisted index has a newer schema version, starting empty",
			"version", doc.Version)
		return nil
	}

	for idx := range doc.Folders {
		rec := doc.Folders[idx]
		i.folders = append(i.folders, &rec)
	}
	return nil
}

// requireReady returns ErrNotReady unless initialization completed.
func (i *PlaylistIndex) requireReadyLocked() error {
	if i.state != StateReady {
		return fmt.Errorf("%w (state: %s)", ErrNotReady, i.state)
	}
	return nil
}

// GetOrCreateFolder resolves a folder by (name, parentID), creating it on the
// remote store only when it is absent from the in-memory set. Within one
// process, repeated calls for the same pair return the same identifier and
// issue at most one remote create.
func (i *PlaylistIndex) GetOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("folder name must not be empty")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.requireReadyLocked(); err != nil {
		return "", err
	}

	// Cache hit: linear scan is fine at human-curated folder counts.
	for _, f := range i.folders {
		if f.Name == name && f.ParentID == parentID {
			return f.ID, nil
		}
	}

	storage, err := i.provider.GetAdapter(ctx)
	if err != nil {
		return "", wrapRemote("getOrCreateFolder", RemoteWrite, err)
	}

	rctx, cancel := i.remoteCtx(ctx)
	created, err := storage.CreateFolder(rctx, name, []string{parentID})
	cancel()
	if err != nil {
		// The in-memory set is untouched: no record without an identifier.
		return "", wrapRemote("getOrCreateFolder", RemoteWrite, err)
	}

	rec := &FolderRecord{
		ID:       created.ID,
		Name:     name,
		ParentID: parentID,
		Songs:    []SongEntry{},
	}
	i.folders = append(i.folders, rec)

	if err := i.persistLocked(ctx, storage); err != nil {
		// The remote folder exists and the record stays cached so a retry
		// cannot create a duplicate; the snapshot catches up on the next
		// successful persist.
		i.logger.Error("failed to persist index after folder create", "folder", created.ID, "err", err)
		return created.ID, err
	}

	i.logger.Info("created playlist folder", "name", name, "id", created.ID)
	return created.ID, nil
}

// ListFolders returns the cached folders under parentID in insertion order.
// It never issues a remote call.
func (i *PlaylistIndex) ListFolders(parentID string) ([]FolderRecord, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if err := i.requireReadyLocked(); err != nil {
		return nil, err
	}

	out := []FolderRecord{}
	for _, f := range i.folders {
		if f.ParentID == parentID {
			out = append(out, f.snapshot())
		}
	}
	return out, nil
}

// Folder returns a copy of the cached record for id.
func (i *PlaylistIndex) Folder(id string) (FolderRecord, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	for _, f := range i.folders {
		if f.ID == id {
			return f.snapshot(), true
		}
	}
	return FolderRecord{}, false
}

// RecordSong appends a song entry to the folder and persists the index. An
// unknown folderID is skipped with a warning rather than failing the upload
// that already happened.
func (i *PlaylistIndex) RecordSong(ctx context.Context, folderID, title, remoteFileID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.requireReadyLocked(); err != nil {
		return err
	}

	var target *FolderRecord
	for _, f := range i.folders {
		if f.ID == folderID {
			target = f
			break
		}
	}
	if target == nil {
		i.logger.Warn("recordSong for unknown folder, skipping", "folder", folderID, "title", title)
		return nil
	}

	target.Songs = append(target.Songs, SongEntry{Title: title, RemoteFileID: remoteFileID})

	storage, err := i.provider.GetAdapter(ctx)
	if err != nil {
		return wrapRemote("recordSong", RemoteWrite, err)
	}
	if err := i.persistLocked(ctx, storage); err != nil {
		i.logger.Error("failed to persist index after song append", "folder", folderID, "err", err)
		return err
	}
	return nil
}

// persistLocked serializes the full folder set and overwrites the remote
// document, creating it when absent. Full-document writes are O(folders ×
// songs) per mutation, which is acceptable at this scale.
func (i *PlaylistIndex) persistLocked(ctx context.Context, storage adapter.StorageAdapter) error {
	doc := document{
		Version: documentVersion,
		RootID:  i.rootID,
		Folders: make([]FolderRecord, 0, len(i.folders)),
	}
	for _, f := range i.folders {
		doc.Folders = append(doc.Folders, f.snapshot())
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index document: %w", err)
	}

	if i.docID != "" {
		rctx, cancel := i.remoteCtx(ctx)
		_, err := storage.SaveFile(rctx, i.docID, data, "")
		cancel()
		if err != nil {
			if errors.Is(err, adapter.ErrNotFound) {
				// Document was deleted out from under us; recreate it.
				i.docID = ""
				return i.persistLocked(ctx, storage)
			}
			return wrapRemote("persistIndex", RemoteWrite, err)
		}
		return nil
	}

	rctx, cancel := i.remoteCtx(ctx)
	meta, err := storage.CreateFile(rctx, i.opts.DocumentName, "application/json", bytes.NewReader(data), i.rootID)
	cancel()
	if err != nil {
		return wrapRemote("persistIndex", RemoteWrite, err)
	}
	i.docID = meta.ID
	return nil
}

func (f *FolderRecord) snapshot() FolderRecord {
	out := *f
	out.Songs = make([]SongEntry, len(f.Songs))
	copy(out.Songs, f.Songs)
	return out
}
