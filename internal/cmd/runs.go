package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/errors"
	"github.com/opspilot/opspilot/internal/report"
	"github.com/opspilot/opspilot/internal/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved analysis runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show totals across saved runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsStats,
}

var (
	runsJSON        bool
	runsMarkdown    string
	runsPlain       bool
	runsFromArchive bool
)

func init() {
	runsCmd.PersistentFlags().BoolVar(&runsJSON, "json", false, "print JSON")
	runsShowCmd.Flags().StringVar(&runsMarkdown, "markdown", "", "write the markdown report to this file")
	runsShowCmd.Flags().BoolVar(&runsPlain, "plain", false, "disable colors and borders")
	runsShowCmd.Flags().BoolVar(&runsFromArchive, "from-archive", false, "read the run from the object archive")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	runsCmd.AddCommand(runsStatsCmd)
}

func withStore(cmd *cobra.Command, fn func(storage.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func runRunsList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(store storage.Store) error {
		runs, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if runsJSON {
			return printJSON(cmd, runs)
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No saved runs")
			return nil
		}
		fmt.Fprintf(out, "%-32s %-20s %6s %12s %6s %8s\n", "RUN ID", "TIMESTAMP", "TASKS", "BOTTLENECKS", "RISKS", "ACTIONS")
		fmt.Fprintln(out, strings.Repeat("─", 89))
		for _, r := range runs {
			fmt.Fprintf(out, "%-32s %-20s %6d %12d %6d %8d\n",
				r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Tasks, r.Bottlenecks, r.Risks, r.RecommendationGroups)
		}
		return nil
	})
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	snap, err := loadSnapshot(cmd, args[0])
	if err != nil {
		return err
	}
	res, err := snap.Result()
	if err != nil {
		return err
	}
	if runsMarkdown != "" {
		if err := os.WriteFile(runsMarkdown, []byte(report.Markdown(res)), 0644); err != nil {
			return errors.Wrap(err, "failed to write markdown report")
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", runsMarkdown)
	}
	return printResult(cmd, res, runsJSON, runsPlain)
}

// loadSnapshot reads a run from the store, or from the archive with --from-archive.
func loadSnapshot(cmd *cobra.Command, id string) (*storage.Snapshot, error) {
	if runsFromArchive {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		archive, err := openArchive(cfg)
		if err != nil {
			return nil, err
		}
		return archive.Fetch(cmd.Context(), id)
	}

	var snap *storage.Snapshot
	err := withStore(cmd, func(store storage.Store) error {
		var err error
		snap, err = store.Load(cmd.Context(), id)
		return err
	})
	return snap, err
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(store storage.Store) error {
		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
		return nil
	})
}

func runRunsStats(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(store storage.Store) error {
		st, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if runsJSON {
			return printJSON(cmd, st)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "SAVED RUNS")
		fmt.Fprintln(out, strings.Repeat("─", 50))
		fmt.Fprintf(out, "Runs:                  %d\n", st.Runs)
		if st.Runs == 0 {
			return nil
		}
		fmt.Fprintf(out, "First:                 %s\n", st.First.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Last:                  %s\n", st.Last.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Tasks analyzed:        %d\n", st.Tasks)
		fmt.Fprintf(out, "Bottlenecks:           %d\n", st.Bottlenecks)
		fmt.Fprintf(out, "Risks:                 %d\n", st.Risks)
		fmt.Fprintf(out, "Recommendation groups: %d\n", st.RecommendationGroups)

		printCounts(cmd, "BY BOTTLENECK TYPE", st.ByBottleneckType)
		printCounts(cmd, "BY RISK LEVEL", st.ByRiskLevel)
		return nil
	})
}

// printCounts prints a count table sorted by count, then key.
func printCounts(cmd *cobra.Command, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, strings.Repeat("─", 50))
	for _, k := range keys {
		fmt.Fprintf(out, "%-30s %5d\n", k, counts[k])
	}
}
