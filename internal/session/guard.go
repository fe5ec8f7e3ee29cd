// Package session tracks in-flight downloads so the same video is never
// fetched twice concurrently.
package session

import (
	"context"
	"errors"

	"tunedrive/internal/model"
)

// ErrAlreadyClaimed is returned when another request holds a claim on the
// same video.
var ErrAlreadyClaimed = errors.New("video download already in progress")

// Guard defines the interface for in-flight download tracking.
type Guard interface {
	// Claim marks a video as being downloaded by the given session. It fails
	// with ErrAlreadyClaimed if a live claim by another session exists.
	Claim(ctx context.Context, videoKey, sessionID string) (*model.DownloadClaim, error)

	// Release removes the claim if the session owns it.
	Release(ctx context.Context, videoKey, sessionID string) error

	// Status returns the live claim on a video, or nil if there is none.
	Status(ctx context.Context, videoKey string) (*model.DownloadClaim, error)
}
