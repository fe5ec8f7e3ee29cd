package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"tunedrive/internal/adapter/memory"
	"tunedrive/internal/auth"
	"tunedrive/internal/crypto"
	"tunedrive/internal/fetcher"
	"tunedrive/internal/index"
	"tunedrive/internal/session"
)

// fakeFetcher returns canned metadata and writes a small file instead of
// invoking yt-dlp.
type fakeFetcher struct {
	title      string
	metaErr    error
	fetchErr   error
	fetchCalls int
}

func (f *fakeFetcher) Metadata(ctx context.Context, url string) (fetcher.Metadata, error) {
	if f.metaErr != nil {
		return fetcher.Metadata{}, f.metaErr
	}
	return fetcher.Metadata{Title: f.title}, nil
}

func (f *fakeFetcher) FetchAudio(ctx context.Context, url, dir string) (string, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	path := filepath.Join(dir, "audio.mp3")
	if err := os.WriteFile(path, []byte("fake mp3 bytes"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type testEnv struct {
	server *Server
	store  *memory.MemoryAdapter
	index  *index.PlaylistIndex
	fetch  *fakeFetcher
	guard  *session.MemoryGuard
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.New(io.Discard)

	store := memory.NewMemoryAdapter(nil, "")
	provider := memory.NewProviderWithAdapter(store)

	idx := index.New(provider, index.Options{
		RootFolderName: "TuneDrive",
		DocumentName:   "playlists.json",
	}, logger)
	if err := idx.Init(context.Background()); err != nil {
		t.Fatalf("index init failed: %v", err)
	}

	fetch := &fakeFetcher{title: "Test Song"}
	guard := session.NewMemoryGuard()
	authService := auth.NewService(&oauth2.Config{ClientID: "cid"}, nil, "", crypto.NewMockEncryptor(), "static-token")

	srv := NewServer(idx, provider, fetch, guard, authService, Options{
		ProtectionCode: "secret-code",
		JWTSecret:      "test-jwt-secret",
		SessionTTL:     time.Hour,
		WorkDir:        t.TempDir(),
		DevMode:        true,
	}, logger)

	return &testEnv{server: srv, store: store, index: idx, fetch: fetch, guard: guard}
}

func (e *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, err := e.server.issueSessionToken()
	if err != nil {
		t.Fatalf("issueSessionToken failed: %v", err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for a ready index, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ready") {
		t.Errorf("Expected ready status in body, got %q", rec.Body.String())
	}
}

func TestReady_BeforeInit(t *testing.T) {
	env := newTestEnv(t)
	logger := log.New(io.Discard)

	cold := index.New(memory.NewProviderWithAdapter(memory.NewMemoryAdapter(nil, "")), index.Options{
		RootFolderName: "TuneDrive",
		DocumentName:   "playlists.json",
	}, logger)
	env.server.index = cold

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before init, got %d", rec.Code)
	}
}

func TestProtect_WrongCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, postForm("/protect", url.Values{"code": {"wrong"}}))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("No cookie should be issued for a wrong code")
	}
}

func TestProtect_CorrectCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, postForm("/protect", url.Values{"code": {"secret-code"}}))
	if rec.Code != http.StatusFound {
		t.Fatalf("Expected redirect, got %d", rec.Code)
	}

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("Expected a session cookie")
	}
}

func TestHome_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("Expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/protect" {
		t.Errorf("Expected redirect to /protect, got %q", loc)
	}
}

func TestHome_ListsFolders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root, _ := env.index.ResolveRoot(ctx)
	folderID, _ := env.index.GetOrCreateFolder(ctx, "Summer Mix", root)
	if err := env.index.RecordSong(ctx, folderID, "Song A", "D1"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(t, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Summer Mix") || !strings.Contains(body, "Song A") {
		t.Errorf("Expected playlist and song in page, got %q", body)
	}
}

func TestDownload_FullPipeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := postForm("/download", url.Values{
		"youtube_url":     {"https://youtu.be/abc"},
		"new_folder_name": {"Summer Mix"},
	})
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(t, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Test Song") {
		t.Errorf("Expected song title on result page, got %q", rec.Body.String())
	}

	root, _ := env.index.ResolveRoot(ctx)
	folders, err := env.index.ListFolders(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || folders[0].Name != "Summer Mix" {
		t.Fatalf("Expected the new playlist in the index, got %+v", folders)
	}
	if len(folders[0].Songs) != 1 || folders[0].Songs[0].Title != "Test Song" {
		t.Fatalf("Expected the song in the index, got %+v", folders[0].Songs)
	}

	// The audio file must be in the store under the playlist folder.
	files, err := env.store.ListFiles(ctx, folders[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	var uploaded bool
	for _, f := range files {
		if strings.HasPrefix(f.Name, "Test Song") {
			uploaded = true
		}
	}
	if !uploaded {
		t.Errorf("Uploaded audio not found in folder, files: %+v", files)
	}

	// The claim must be released after completion.
	status, _ := env.guard.Status(ctx, "https://youtu.be/abc")
	if status != nil {
		t.Error("Expected claim to be released after the download")
	}
}

func TestDownload_ExistingFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	root, _ := env.index.ResolveRoot(ctx)
	folderID, _ := env.index.GetOrCreateFolder(ctx, "Summer Mix", root)

	req := postForm("/download", url.Values{
		"youtube_url": {"https://youtu.be/abc"},
		"folder_id":   {folderID},
	})
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(t, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	folder, _ := env.index.Folder(folderID)
	if len(folder.Songs) != 1 {
		t.Fatalf("Expected 1 song, got %+v", folder.Songs)
	}
}

func TestDownload_MissingURL(t *testing.T) {
	env := newTestEnv(t)

	req := postForm("/download", url.Values{"new_folder_name": {"Summer Mix"}})
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(t, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestDownload_NoFolderChoice(t *testing.T) {
	env := newTestEnv(t)

	req := postForm("/download", url.Values{"youtube_url": {"https://youtu.be/abc"}})
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(t, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestDownload_UnknownFolder(t *testing.T) {
	env := newTestEnv(t)

	req := postForm("/download", url.Values{
		"youtube_url": {"https://youtu.be/abc"},
		"folder_id":   {"F999"},
	})
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(t, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown playlist, got %d", rec.Code)
	}
	if env.fetch.fetchCalls != 0 {
		t.Error("No download should start for an unknown playlist")
	}
}

func TestDownload_DuplicateInFlight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.guard.Claim(ctx, "https://youtu.be/abc", "other-request"); err != nil {
		t.Fatal(err)
	}

	req := postForm("/download", url.Values{
		"youtube_url":     {"https://youtu.be/abc"},
		"new_folder_name": {"Summer Mix"},
	})
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(t, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for a duplicate download, got %d", rec.Code)
	}
	if env.fetch.fetchCalls != 0 {
		t.Error("The duplicate request must not start a download")
	}
}

func TestDownload_FetchFailure_NoPartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fetch.fetchErr = fmt.Errorf("network is down")

	req := postForm("/download", url.Values{
		"youtube_url":     {"https://youtu.be/abc"},
		"new_folder_name": {"Summer Mix"},
	})
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(t, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rec.Code)
	}

	// The playlist folder may exist (it was created before the fetch), but
	// no song may have been recorded.
	root, _ := env.index.ResolveRoot(ctx)
	folders, _ := env.index.ListFolders(root)
	for _, f := range folders {
		if len(f.Songs) != 0 {
			t.Errorf("No song should be recorded after a failed fetch: %+v", f.Songs)
		}
	}
}
