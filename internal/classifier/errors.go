package classifier

import (
	"errors"
	"io/fs"
)

// Kind tells which stage of the pipeline failed. All kinds are reported the same way on the console.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile         // missing or unreadable file
	KindDecode       // not an image, corrupt data, failed quality gate
	KindRemote       // client, network, auth, quota or empty model response
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDecode:
		return "decode"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Error wraps a pipeline failure with its Kind. Error() is the underlying description only.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnknown when err is not a *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// loadError splits image loading failures into file and decode errors.
func loadError(err error) *Error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return &Error{Kind: KindFile, Err: err}
	}
	return &Error{Kind: KindDecode, Err: err}
}
