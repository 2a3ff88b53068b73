package installer

import (
	"errors"
	"fmt"
)

// Kind classifies install failures
type Kind int

const (
	KindNoDownloadURL Kind = iota + 1
	KindDirectoryUnavailable
	KindDownloadFailed
	KindEmptyDownload
	KindWriteFailed
	KindInvalidSource
)

var (
	ErrNoDownloadURL        = errors.New("character has no download URL")
	ErrDirectoryUnavailable = errors.New("character directory unavailable")
	ErrDownloadFailed       = errors.New("download failed")
	ErrEmptyDownload        = errors.New("downloaded file is empty")
	ErrWriteFailed          = errors.New("failed to write character file")
	ErrInvalidSource        = errors.New("invalid source")
)

var kindErrors = map[Kind]error{
	KindNoDownloadURL:        ErrNoDownloadURL,
	KindDirectoryUnavailable: ErrDirectoryUnavailable,
	KindDownloadFailed:       ErrDownloadFailed,
	KindEmptyDownload:        ErrEmptyDownload,
	KindWriteFailed:          ErrWriteFailed,
	KindInvalidSource:        ErrInvalidSource,
}

func (k Kind) String() string {
	switch k {
	case KindNoDownloadURL:
		return "no_download_url"
	case KindDirectoryUnavailable:
		return "directory_unavailable"
	case KindDownloadFailed:
		return "download_failed"
	case KindEmptyDownload:
		return "empty_download"
	case KindWriteFailed:
		return "write_failed"
	case KindInvalidSource:
		return "invalid_source"
	default:
		return "unknown"
	}
}

// Error is returned by every failing install path
type Error struct {
	Kind Kind
	Name string
	Err  error
}

func newError(kind Kind, name string, err error) *Error {
	return &Error{Kind: kind, Name: name, Err: err}
}

func (e *Error) Error() string {
	msg := "install failed"
	if sentinel, ok := kindErrors[e.Kind]; ok {
		msg = sentinel.Error()
	}
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Name)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	return kindErrors[e.Kind] == target
}

// KindOf extracts the Kind from err, or 0 when err is not an *Error
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}
