package index

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when an operation is attempted before the
	// index finished initializing.
	ErrNotReady = errors.New("playlist index is not ready")

	// ErrRootUnavailable is returned when neither the configured root folder
	// ID nor a name-based lookup can resolve the archive root. This is a
	// configuration problem and is fatal to every folder operation; it is
	// never retried silently because retrying against a misconfigured remote
	// could create duplicate roots.
	ErrRootUnavailable = errors.New("archive root folder is unreachable")
)

// RemoteErrorKind classifies a failed remote store call.
type RemoteErrorKind string

const (
	RemoteRead    RemoteErrorKind = "read"
	RemoteWrite   RemoteErrorKind = "write"
	RemoteTimeout RemoteErrorKind = "timeout"
)

// RemoteError wraps a failure talking to the remote object store. The
// in-memory index is never left partially mutated by a call that produced
// one of these.
type RemoteError struct {
	Op   string
	Kind RemoteErrorKind
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s error in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// wrapRemote classifies err as a RemoteError for the given operation.
// Deadline expiry is reported as a timeout regardless of the call direction.
func wrapRemote(op string, kind RemoteErrorKind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = RemoteTimeout
	}
	return &RemoteError{Op: op, Kind: kind, Err: err}
}
