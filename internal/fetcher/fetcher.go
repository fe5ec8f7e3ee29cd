// Package fetcher downloads audio from video URLs by shelling out to yt-dlp.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Metadata describes a video before it is downloaded.
type Metadata struct {
	Title string
}

// Fetcher resolves video metadata and downloads audio tracks.
type Fetcher interface {
	Metadata(ctx context.Context, url string) (Metadata, error)
	FetchAudio(ctx context.Context, url, dir string) (string, error)
}

// FetchError carries the captured stderr of a failed yt-dlp invocation.
type FetchError struct {
	URL    string
	Stderr string
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// YTDLP runs the yt-dlp binary. Each call is a fresh process; there is no
// retry here, callers decide whether a failed download is worth repeating.
type YTDLP struct {
	binary      string
	cookiesFile string
	timeout     time.Duration
	logger      *log.Logger
}

// NewYTDLP creates a fetcher using the given binary. cookiesFile may be empty.
func NewYTDLP(binary, cookiesFile string, timeout time.Duration, logger *log.Logger) *YTDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{
		binary:      binary,
		cookiesFile: cookiesFile,
		timeout:     timeout,
		logger:      logger.With("component", "fetcher"),
	}
}

// Metadata asks yt-dlp for the video title without downloading anything.
func (y *YTDLP) Metadata(ctx context.Context, url string) (Metadata, error) {
	args := y.metadataArgs(url)
	out, err := y.run(ctx, url, args)
	if err != nil {
		return Metadata{}, err
	}
	title := strings.TrimSpace(out)
	if title == "" {
		return Metadata{}, &FetchError{URL: url, Err: fmt.Errorf("empty title")}
	}
	return Metadata{Title: title}, nil
}

// FetchAudio downloads and transcodes the audio track into dir and returns
// the path of the resulting mp3 file.
func (y *YTDLP) FetchAudio(ctx context.Context, url, dir string) (string, error) {
	args := y.audioArgs(url, dir)
	out, err := y.run(ctx, url, args)
	if err != nil {
		return "", err
	}
	path := strings.TrimSpace(out)
	if path == "" {
		return "", &FetchError{URL: url, Err: fmt.Errorf("yt-dlp did not report an output file")}
	}
	return path, nil
}

func (y *YTDLP) metadataArgs(url string) []string {
	args := []string{"--print", "title", "--skip-download", "--no-playlist"}
	if y.cookiesFile != "" {
		args = append(args, "--cookies", y.cookiesFile)
	}
	return append(args, url)
}

func (y *YTDLP) audioArgs(url, dir string) []string {
	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--no-playlist",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
	}
	if y.cookiesFile != "" {
		args = append(args, "--cookies", y.cookiesFile)
	}
	return append(args, url)
}

func (y *YTDLP) run(ctx context.Context, url string, args []string) (string, error) {
	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	y.logger.Debug("running yt-dlp", "url", url)

	cmd := exec.CommandContext(ctx, y.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		y.logger.Error("yt-dlp failed", "url", url, "err", err)
		return "", &FetchError{
			URL:    url,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.String(), nil
}

// SanitizeTitle removes characters that are unsafe in file and folder names.
func SanitizeTitle(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, title)
	return strings.TrimSpace(cleaned)
}
