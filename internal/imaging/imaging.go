// Package imaging opens a picture from disk and re-encodes it as PNG so that
// the model always receives the same encoding whatever the source format was.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/jo-hoe/wastewise/internal/common"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrFileTooLarge      = errors.New("file size exceeds limit")
	ErrResolutionTooLow  = errors.New("image resolution is too low")
	ErrImageTooLarge     = errors.New("image has too many pixels")
)

// MaxPixels caps width*height before any pixel data is decoded, matching the
// decompression bomb limit used by common imaging libraries.
const MaxPixels = 2 * 89_478_485

// Options are optional quality gates applied before re-encoding. Zero values disable a check.
type Options struct {
	MaxFileSize uint64
	MinWidth    int
	MinHeight   int
}

// Payload is the normalized, in-memory form of one input image.
type Payload struct {
	Data         []byte // PNG encoded
	MimeType     string // always image/png
	SourceFormat string // format name reported by the decoder, e.g. "jpeg"
	SourceSize   int64  // size of the file on disk
	Width        int
	Height       int
}

// Reader returns a fresh reader over the PNG bytes.
func (p *Payload) Reader() io.Reader {
	return bytes.NewReader(p.Data)
}

// Load opens the image at path, checks it against opts and returns it re-encoded as PNG.
// The file is closed on every return path.
func Load(path string, opts Options) (*Payload, error) {
	f, err := os.Open(filepath.Clean(path)) // #nosec G304 - reading a user supplied image is the purpose
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: path, Err: errors.New("is a directory")}
	}
	if opts.MaxFileSize > 0 && uint64(info.Size()) > opts.MaxFileSize { // #nosec G115 - size is never negative
		return nil, fmt.Errorf("%w: %s > %s", ErrFileTooLarge,
			humanize.Bytes(uint64(info.Size())), humanize.Bytes(opts.MaxFileSize)) // #nosec G115
	}

	payload, err := normalize(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	payload.SourceSize = info.Size()
	return payload, nil
}

func normalize(r io.ReadSeeker, opts Options) (*Payload, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind: %w", err)
	}

	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
		}
		return nil, fmt.Errorf("decode %s header: %w", mt.String(), err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, MaxPixels)
	}
	if (opts.MinWidth > 0 && cfg.Width < opts.MinWidth) || (opts.MinHeight > 0 && cfg.Height < opts.MinHeight) {
		return nil, fmt.Errorf("%w: %dx%d, minimum %dx%d required",
			ErrResolutionTooLow, cfg.Width, cfg.Height, opts.MinWidth, opts.MinHeight)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind: %w", err)
	}

	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	b := img.Bounds()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return &Payload{
		Data:         buf.Bytes(),
		MimeType:     common.MimeImagePNG,
		SourceFormat: format,
		Width:        b.Dx(),
		Height:       b.Dy(),
	}, nil
}
