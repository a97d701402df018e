package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/diary-migrate/internal/config"
	"github.com/Tiliavir/diary-migrate/internal/ledger"
	"github.com/Tiliavir/diary-migrate/internal/timecalc"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past migration runs, or the days of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	path, err := config.StatePath(e.cfg.Ledger.Path)
	if err != nil {
		return err
	}
	l, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		runs, err := l.Runs(ctx, historyLimit)
		if err != nil {
			return err
		}
		printRuns(out, runs)
		return nil
	}

	run, err := l.FindRun(ctx, args[0])
	if err != nil {
		return err
	}
	outcomes, err := l.Outcomes(ctx, run.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Run %s started %s (%s)\n", run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"), runMode(run))
	printOutcomes(out, outcomes)
	return nil
}

func printRuns(w io.Writer, runs []ledger.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	t := newTable(
		left("Run"), left("Started"), right("Took"), left("Mode"), left("Window"),
		right("Days"), right("Created"), right("Appended"), right("Skipped"), right("Failed"),
	)
	for _, r := range runs {
		t.add(
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			runDuration(r),
			runMode(r),
			windowLabel(r.WindowFrom, r.WindowTo),
			strconv.Itoa(r.Days),
			strconv.Itoa(r.Created),
			strconv.Itoa(r.Appended),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
		)
	}
	fmt.Fprintln(w, t)
}

func printOutcomes(w io.Writer, outcomes []ledger.Outcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No days recorded for this run.")
		return
	}
	t := newTable(
		left("Date"), left("Action"), left("Document"),
		right("Entries"), right("Uploaded"), right("Missing"), left("Error"),
	)
	for _, o := range outcomes {
		t.add(
			o.Date,
			o.Action,
			o.DocumentID,
			strconv.Itoa(o.Entries),
			fmt.Sprintf("%d/%d", o.Uploaded, o.Images),
			strconv.Itoa(o.Missing),
			shorten(o.Error, 60),
		)
	}
	fmt.Fprintln(w, t)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runMode(r ledger.Run) string {
	if r.DryRun {
		return "dry-run"
	}
	return "live"
}

func runDuration(r ledger.Run) string {
	if r.FinishedAt == nil {
		return "unfinished"
	}
	return timecalc.FormatDuration(r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
}

func windowLabel(from, to string) string {
	if from == "" && to == "" {
		return "all"
	}
	if from == "" {
		from = "…"
	}
	if to == "" {
		to = "…"
	}
	return from + " → " + to
}
