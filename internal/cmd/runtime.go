package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/storage"
)

const defaultTermWidth = 100

// newLogger logs to logging.dir when set, otherwise to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	if cfg.Logging.Dir != "" {
		return logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	}
	return logging.NewWriterLogger(cmd.ErrOrStderr(), cfg.Logging.Level), nil
}

// newGenerator builds the configured text generator. A generator that
// cannot be created degrades to llm.Noop with a warning.
func newGenerator(ctx context.Context, cfg *config.Config, logger *logging.Logger) llm.Generator {
	if cfg.Generator.Backend != config.GeneratorGemini {
		return llm.Noop{}
	}
	log := logger.WithComponent("generator")

	apiKey := cfg.Generator.ResolvedAPIKey()
	if apiKey == "" {
		log.Warn("generator disabled: no API key", "backend", cfg.Generator.Backend)
		return llm.Noop{}
	}
	gen, err := llm.NewGeminiGenerator(ctx, apiKey, cfg.Generator.Model, cfg.Generator.Timeout())
	if err != nil {
		log.Warn("generator disabled", "backend", cfg.Generator.Backend, "error", err)
		return llm.Noop{}
	}
	if cfg.Generator.CacheSize == 0 {
		return gen
	}
	cached, err := llm.NewCachedGenerator(gen, cfg.Generator.CacheSize)
	if err != nil {
		log.Warn("generator cache disabled", "error", err)
		return gen
	}
	return cached
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	return storage.Open(ctx, storage.Options{
		Backend:     cfg.Storage.Backend,
		Dir:         cfg.Storage.Dir,
		PostgresDSN: cfg.Storage.PostgresDSN,
		CacheSize:   cfg.Storage.CacheSize,
	})
}

func openArchive(cfg *config.Config) (*storage.Archive, error) {
	return storage.NewArchive(storage.ArchiveConfig{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		UseSSL:    cfg.Archive.UseSSL,
	})
}

// terminalLayout reports the output width and whether styling should be
// disabled. Styling is only used when w is an interactive terminal.
func terminalLayout(w io.Writer) (width int, plain bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultTermWidth, true
	}
	if termWidth, _, err := term.GetSize(int(f.Fd())); err == nil && termWidth > 0 {
		return termWidth, false
	}
	return defaultTermWidth, false
}
