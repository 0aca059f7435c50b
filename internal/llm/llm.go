package llm

import (
	"context"
	"io"
)

// Client defines the capability to answer a prompt about a single image.
type Client interface {
	// InterpretImage reads an image from r (seek not required) with the given mime type,
	// sends it together with prompt to the model and returns the model's text verbatim.
	InterpretImage(ctx context.Context, prompt string, r io.Reader, mime string) (string, error)
}

// Unavailable returns a Client whose every call fails with err. It lets a run
// report a client setup failure the same way as any other model call failure.
func Unavailable(err error) Client {
	return unavailable{err: err}
}

type unavailable struct{ err error }

func (u unavailable) InterpretImage(context.Context, string, io.Reader, string) (string, error) {
	return "", u.err
}
