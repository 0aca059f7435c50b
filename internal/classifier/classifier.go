package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jo-hoe/wastewise/internal/common"
	"github.com/jo-hoe/wastewise/internal/imaging"
	"github.com/jo-hoe/wastewise/internal/llm"
	"github.com/jo-hoe/wastewise/internal/util"
)

// Classifier runs the load -> normalize -> prompt -> model pipeline for one image at a time.
// It keeps no state between calls besides its read-only dependencies.
type Classifier struct {
	Log     *slog.Logger
	LLM     llm.Client
	Options imaging.Options
}

func New(log *slog.Logger, c llm.Client, opts imaging.Options) *Classifier {
	return &Classifier{
		Log:     log,
		LLM:     c,
		Options: opts,
	}
}

// Classify returns the model's text for the image at path. Failures are *Error values.
func (c *Classifier) Classify(ctx context.Context, path string) (string, error) {
	log := c.Log.With("run_id", util.NewID(), "image", path)

	payload, err := imaging.Load(path, c.Options)
	if err != nil {
		e := loadError(err)
		log.Debug("image rejected", "kind", e.Kind, "err", err)
		return "", e
	}
	log.Debug("image normalized",
		"source_format", payload.SourceFormat,
		"source_bytes", payload.SourceSize,
		"png_bytes", len(payload.Data),
		"width", payload.Width,
		"height", payload.Height)

	start := time.Now()
	text, err := c.LLM.InterpretImage(ctx, Prompt, payload.Reader(), payload.MimeType)
	if err != nil {
		log.Debug("model call failed", "err", err, "duration", time.Since(start))
		return "", &Error{Kind: KindRemote, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &Error{Kind: KindRemote, Err: errors.New("empty response from model")}
	}
	log.Info("image classified", "duration", time.Since(start))
	return text, nil
}

// Run classifies path and prints exactly one line to w: the result or the error.
// The error is returned only so the caller can choose an exit code.
func (c *Classifier) Run(ctx context.Context, w io.Writer, path string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &Error{Kind: KindUnknown, Err: fmt.Errorf("panic: %v", rec)}
			PrintError(w, err)
		}
	}()

	text, err := c.Classify(ctx, path)
	if err != nil {
		PrintError(w, err)
		return err
	}
	PrintResult(w, text)
	return nil
}

// PrintResult writes the success line.
func PrintResult(w io.Writer, text string) {
	_, _ = fmt.Fprintln(w, common.ResultPrefix, text)
}

// PrintError writes the failure line.
func PrintError(w io.Writer, err error) {
	_, _ = fmt.Fprintln(w, common.ErrorPrefix, err.Error())
}
