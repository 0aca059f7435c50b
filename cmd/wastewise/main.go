package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jo-hoe/wastewise/internal/classifier"
	"github.com/jo-hoe/wastewise/internal/common"
	appcfg "github.com/jo-hoe/wastewise/internal/config"
	"github.com/jo-hoe/wastewise/internal/imaging"
	"github.com/jo-hoe/wastewise/internal/llm"
	"github.com/jo-hoe/wastewise/internal/llm/aiproxy"
	"github.com/jo-hoe/wastewise/internal/llm/gemini"
	"github.com/jo-hoe/wastewise/internal/llm/mock"
)

// errFailed signals a failure that has already been printed.
var errFailed = errors.New("classification failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "wastewise [image]",
		Short:         "Classify a photo of e-waste as sellable, repairable, recyclable or hazardous",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, args, stdout, stderr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default $"+common.EnvConfigPath+" or "+common.DefaultConfigFile+")")
	return cmd
}

// run prints exactly one line to stdout. It returns errFailed only when the
// configuration asks for a non-zero exit code on failure.
func run(ctx context.Context, configPath string, args []string, stdout, stderr io.Writer) error {
	if err := loadDotEnv(common.DefaultDotEnvFile); err != nil {
		classifier.PrintError(stdout, err)
		return errFailed
	}

	cfg, err := appcfg.Load(configPath)
	if err != nil {
		classifier.PrintError(stdout, err)
		return errFailed
	}

	logger := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// A client that cannot be built fails at the model call, after the image
	// was loaded, so file errors are still reported first.
	client, err := newLLMClient(ctx, cfg.LLM)
	if err != nil {
		logger.Warn("init llm client", "provider", cfg.LLM.Provider, "err", err)
		client = llm.Unavailable(err)
	}

	path := cfg.Image.Path
	if len(args) == 1 {
		path = args[0]
	}

	c := classifier.New(logger, client, imaging.Options{
		MaxFileSize: uint64(cfg.Image.MaxFileSize),
		MinWidth:    cfg.Image.MinWidth,
		MinHeight:   cfg.Image.MinHeight,
	})
	if err := c.Run(ctx, stdout, path); err != nil {
		logger.Warn("classification failed", "image", path, "kind", classifier.KindOf(err), "err", err)
		return failure(cfg)
	}
	return nil
}

func failure(cfg *appcfg.Config) error {
	if cfg.FailOnError {
		return errFailed
	}
	return nil
}

// loadDotEnv loads environment variables from a .env file in the working directory.
// If the file does not exist, the function returns nil without an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to check if %s exists: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("could not load %s: %w", path, err)
	}
	return nil
}

func newLLMClient(ctx context.Context, cfg appcfg.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case common.ProviderGemini:
		return gemini.New(ctx, cfg.Gemini)
	case common.ProviderAIProxy:
		return aiproxy.New(cfg.AIProxy)
	case common.ProviderMock:
		return mock.New(cfg.Mock), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if format == "auto" {
		format = "json"
		if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			format = "text"
		}
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
