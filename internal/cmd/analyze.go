package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/errors"
	"github.com/opspilot/opspilot/internal/ingest"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/pipeline"
	"github.com/opspilot/opspilot/internal/report"
	"github.com/opspilot/opspilot/internal/storage"
	"github.com/opspilot/opspilot/internal/task"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [tasks.csv]",
	Short: "Analyze a task list",
	Long: `Analyze a task list exported as CSV and print the results.

Tasks can also be extracted from free-form notes with --text when a text
generator is configured. Both sources may be combined.

Examples:
  opspilot analyze tasks.csv
  opspilot analyze tasks.csv --json > result.json
  opspilot analyze tasks.csv --save --markdown report.md
  opspilot analyze --text standup-notes.txt --only-owner 'ana*'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeText           string
	analyzeJSON           bool
	analyzeSave           bool
	analyzeMarkdown       string
	analyzeExportDir      string
	analyzeDueSoonDays    int
	analyzeAgingThreshold int
	analyzeOnlyOwner      string
	analyzePlain          bool
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeText, "text", "", "extract additional tasks from a free-text file")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full result as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist the run to the configured store")
	analyzeCmd.Flags().StringVar(&analyzeMarkdown, "markdown", "", "write a markdown report to this file")
	analyzeCmd.Flags().StringVar(&analyzeExportDir, "export-dir", "", "write CSV exports and report.md to this directory")
	analyzeCmd.Flags().IntVar(&analyzeDueSoonDays, "due-soon-days", 0, "override analysis.due_soon_days")
	analyzeCmd.Flags().IntVar(&analyzeAgingThreshold, "aging-threshold", 0, "override analysis.aging_threshold")
	analyzeCmd.Flags().StringVar(&analyzeOnlyOwner, "only-owner", "", "analyze only tasks whose owner matches this glob")
	analyzeCmd.Flags().BoolVar(&analyzePlain, "plain", false, "disable colors and borders")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && analyzeText == "" {
		return errors.NewValidationError("a CSV file or --text is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyAnalyzeOverrides(cmd, cfg)
	if errs := cfg.Validate(); len(errs) > 0 {
		return config.ValidationErrors(errs)
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx := cmd.Context()
	gen := newGenerator(ctx, cfg, logger)

	tasks, err := loadTasks(cmd, args, gen, logger)
	if err != nil {
		return err
	}

	analyzer := pipeline.New(
		pipeline.WithSettings(cfg.Settings()),
		pipeline.WithGenerator(gen),
		pipeline.WithLogger(logger),
		pipeline.WithParallel(cfg.Analysis.Parallel),
	)
	res, err := analyzer.Run(ctx, tasks)
	if err != nil {
		return err
	}

	if err := writeArtifacts(cmd, res); err != nil {
		return err
	}
	if analyzeSave {
		if err := saveRun(cmd, cfg, res, logger); err != nil {
			return err
		}
	}
	return printResult(cmd, res, analyzeJSON, analyzePlain)
}

func applyAnalyzeOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("due-soon-days") {
		cfg.Analysis.DueSoonDays = analyzeDueSoonDays
	}
	if cmd.Flags().Changed("aging-threshold") {
		cfg.Analysis.AgingThreshold = analyzeAgingThreshold
	}
}

// loadTasks reads the CSV and free-text sources, drops invalid rows and
// applies the owner filter.
func loadTasks(cmd *cobra.Command, args []string, gen llm.Generator, logger *logging.Logger) ([]task.Task, error) {
	var tasks []task.Task

	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, errors.NewIngestError("failed to open task file", err).WithSource(args[0])
		}
		defer func() { _ = f.Close() }()

		parsed, err := ingest.ParseCSV(f, logger)
		if err != nil {
			var ie *errors.IngestError
			if errors.As(err, &ie) {
				return nil, ie.WithSource(args[0])
			}
			return nil, err
		}
		tasks = append(tasks, parsed...)
	}

	if analyzeText != "" {
		data, err := os.ReadFile(analyzeText)
		if err != nil {
			return nil, errors.NewIngestError("failed to read text file", err).WithSource(analyzeText)
		}
		if !gen.Available() {
			logger.Warn("no text generator configured; --text ignored", "file", analyzeText)
		}
		tasks = append(tasks, ingest.ParseText(cmd.Context(), string(data), gen, logger)...)
	}

	tasks = ingest.Validate(tasks, logger)
	tasks, err := ingest.Filter(tasks, analyzeOnlyOwner)
	if err != nil {
		return nil, err
	}
	logger.Info("tasks loaded", "count", len(tasks))
	return tasks, nil
}

func writeArtifacts(cmd *cobra.Command, res *pipeline.Result) error {
	if analyzeMarkdown != "" {
		if err := os.WriteFile(analyzeMarkdown, []byte(report.Markdown(res)), 0644); err != nil {
			return errors.Wrap(err, "failed to write markdown report")
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", analyzeMarkdown)
	}
	if analyzeExportDir != "" {
		paths, err := report.ExportAll(analyzeExportDir, res)
		if err != nil {
			return errors.Wrap(err, "failed to export results")
		}
		for _, p := range paths {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", p)
		}
	}
	return nil
}

func saveRun(cmd *cobra.Command, cfg *config.Config, res *pipeline.Result, logger *logging.Logger) error {
	ctx := cmd.Context()
	log := logger.WithRun(res.RunID).WithComponent("storage")

	snap, err := storage.FromResult(res)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	id, err := store.Save(ctx, snap)
	if err != nil {
		return err
	}
	log.Info("run saved", "backend", cfg.Storage.Backend)
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved run %s\n", id)

	if !cfg.Archive.Enabled {
		return nil
	}
	archive, err := openArchive(cfg)
	if err != nil {
		return err
	}
	keys, err := archive.Upload(ctx, snap, []byte(report.Markdown(res)))
	if err != nil {
		// The run is already stored; upload failures only warn.
		log.Warn("archive upload failed", "error", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: archive upload failed: %v\n", err)
		return nil
	}
	log.Info("run archived", "bucket", archive.Bucket(), "objects", len(keys))
	return nil
}

func printResult(cmd *cobra.Command, res *pipeline.Result, asJSON, plain bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode result")
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	width, notTTY := terminalLayout(out)
	_, err := fmt.Fprintln(out, report.Terminal(res, report.TerminalOptions{Width: width, Plain: plain || notTTY}))
	return err
}
