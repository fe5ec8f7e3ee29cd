package handler

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"tunedrive/internal/fetcher"
	"tunedrive/internal/session"
)

// handleDownloadForm renders the download form with the known playlists.
func (s *Server) handleDownloadForm(w http.ResponseWriter, r *http.Request) {
	root, err := s.index.ResolveRoot(r.Context())
	if err != nil {
		s.renderError(w, http.StatusServiceUnavailable, "The archive is not available yet.")
		return
	}
	folders, err := s.index.ListFolders(root)
	if err != nil {
		s.renderError(w, http.StatusServiceUnavailable, "The archive is still loading.")
		return
	}
	s.render(w, http.StatusOK, "download.gohtml", map[string]any{"Folders": folders})
}

// handleDownloadSubmit runs the full pipeline: metadata, folder resolution,
// audio download, upload, index update. The success page is only rendered
// after the last step; any failure renders the error page instead.
func (s *Server) handleDownloadSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid form submission.")
		return
	}

	url := strings.TrimSpace(r.PostFormValue("youtube_url"))
	folderID := r.PostFormValue("folder_id")
	newFolderName := fetcher.SanitizeTitle(r.PostFormValue("new_folder_name"))

	if url == "" {
		s.renderError(w, http.StatusBadRequest, "A video URL is required.")
		return
	}
	if folderID == "" && newFolderName == "" {
		s.renderError(w, http.StatusBadRequest, "Pick a playlist or name a new one.")
		return
	}

	ctx := r.Context()

	requestID := uuid.New().String()
	if _, err := s.guard.Claim(ctx, url, requestID); err != nil {
		if errors.Is(err, session.ErrAlreadyClaimed) {
			s.renderError(w, http.StatusConflict, "This video is already being downloaded.")
			return
		}
		s.logger.Error("claim failed", "url", url, "err", err)
		s.renderError(w, http.StatusInternalServerError, "Could not start the download.")
		return
	}
	defer func() {
		if err := s.guard.Release(ctx, url, requestID); err != nil {
			s.logger.Warn("claim release failed", "url", url, "err", err)
		}
	}()

	meta, err := s.fetch.Metadata(ctx, url)
	if err != nil {
		s.logger.Error("metadata lookup failed", "url", url, "err", err)
		s.renderError(w, http.StatusBadGateway, "Could not read the video metadata. Check the URL.")
		return
	}
	title := fetcher.SanitizeTitle(meta.Title)
	if title == "" {
		s.renderError(w, http.StatusBadGateway, "The video has no usable title.")
		return
	}

	folderID, folderName, ok := s.resolveTargetFolder(w, r, folderID, newFolderName)
	if !ok {
		return
	}

	tmpDir, err := os.MkdirTemp(s.workDir, "tunedrive-*")
	if err != nil {
		s.logger.Error("workdir creation failed", "err", err)
		s.renderError(w, http.StatusInternalServerError, "Could not prepare the download.")
		return
	}
	defer os.RemoveAll(tmpDir)

	s.logger.Info("downloading audio", "url", url, "title", title, "folder", folderName)

	audioPath, err := s.fetch.FetchAudio(ctx, url, tmpDir)
	if err != nil {
		s.logger.Error("audio download failed", "url", url, "err", err)
		s.renderError(w, http.StatusBadGateway, "Downloading the audio failed.")
		return
	}

	audio, err := os.Open(audioPath)
	if err != nil {
		s.logger.Error("opening downloaded audio failed", "path", audioPath, "err", err)
		s.renderError(w, http.StatusInternalServerError, "The downloaded file went missing.")
		return
	}
	defer audio.Close()

	storage, err := s.provider.GetAdapter(ctx)
	if err != nil {
		s.logger.Error("storage adapter unavailable", "err", err)
		s.renderError(w, http.StatusServiceUnavailable, "The archive storage is not reachable.")
		return
	}

	uploaded, err := storage.CreateFile(ctx, title, "audio/mpeg", audio, folderID)
	if err != nil {
		s.logger.Error("upload failed", "title", title, "err", err)
		s.renderError(w, http.StatusBadGateway, "Uploading the audio failed.")
		return
	}

	if err := s.index.RecordSong(ctx, folderID, title, uploaded.ID); err != nil {
		s.logger.Error("index update failed", "title", title, "err", err)
		s.renderError(w, http.StatusInternalServerError, "The song was uploaded but the playlist catalog could not be updated.")
		return
	}

	s.logger.Info("download complete", "title", title, "folder", folderName, "file_id", uploaded.ID)
	s.render(w, http.StatusOK, "result.gohtml", map[string]any{
		"Title":  title,
		"Folder": folderName,
	})
}

// resolveTargetFolder maps the form input to an index folder, creating it
// when a new name was given. It renders an error page itself and reports
// ok=false when resolution fails.
func (s *Server) resolveTargetFolder(w http.ResponseWriter, r *http.Request, folderID, newFolderName string) (string, string, bool) {
	ctx := r.Context()

	if newFolderName != "" {
		root, err := s.index.ResolveRoot(ctx)
		if err != nil {
			s.renderError(w, http.StatusServiceUnavailable, "The archive is not available yet.")
			return "", "", false
		}
		id, err := s.index.GetOrCreateFolder(ctx, newFolderName, root)
		if err != nil {
			s.logger.Error("folder creation failed", "name", newFolderName, "err", err)
			s.renderError(w, http.StatusBadGateway, "Could not create the playlist.")
			return "", "", false
		}
		return id, newFolderName, true
	}

	folder, ok := s.index.Folder(folderID)
	if !ok {
		s.renderError(w, http.StatusBadRequest, "Unknown playlist.")
		return "", "", false
	}
	return folder.ID, folder.Name, true
}
