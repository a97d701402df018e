package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tiliavir/diary-migrate/internal/config"
	"github.com/Tiliavir/diary-migrate/internal/ledger"
	"github.com/Tiliavir/diary-migrate/internal/logging"
	"github.com/Tiliavir/diary-migrate/internal/migrate"
	"github.com/Tiliavir/diary-migrate/internal/nideriji"
)

var (
	migrateFlags  sourceFlags
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the export into nideriji",
	Long: `Merge each day of the export into one document and write it to nideriji.
Days already containing the content are skipped, days with other content get
the new text appended. Exits with status 2 when some days failed.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateFlags.register(migrateCmd, true)
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Print planned operations without uploading or writing")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	cfg := e.cfg
	if err := migrateFlags.apply(&cfg); err != nil {
		return err
	}
	window, err := migrateFlags.window(cfg)
	if err != nil {
		return err
	}
	dryRun := migrateDryRun || cfg.Migrate.DryRun

	stateDir, err := config.StateDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	lockPath := filepath.Join(stateDir, "migrate.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another migration is already running (lock %s)", lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			e.log.Warn("failed to release migrate lock", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var remote migrate.Remote
	switch {
	case cfg.HasCredentials():
		client, account, err := nideriji.Login(ctx, cfg.ClientOptions(), cfg.Account.Email, cfg.Account.Password)
		if err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		fmt.Fprintf(out, "Logged in as %s (user %s, %d diaries)\n", account.Name, account.UserID, account.DiaryCount)
		remote = client
	case dryRun:
		fmt.Fprintln(out, "No credentials configured: dry run treats every day as new.")
	default:
		return fmt.Errorf("credentials missing: set [account] in the config or %s and %s", config.EnvEmail, config.EnvPassword)
	}

	from, to := windowBounds(window)
	rec := openRecorder(ctx, cfg, e.log, dryRun, from, to)
	var recorder migrate.Recorder
	if rec != nil {
		recorder = rec
	}

	dryTag := ""
	if dryRun {
		dryTag = " [dry-run]"
	}
	fmt.Fprintf(out, "Migrating %s (%s)%s...\n", cfg.Source.BaseDir, window, dryTag)

	m := migrate.New(migrate.Options{
		Base:        cfg.Source.BaseDir,
		Encoding:    cfg.Source.Encoding,
		Window:      window,
		DryRun:      dryRun,
		Order:       orderOf(cfg),
		Resolver:    resolverFor(cfg),
		UploadDelay: cfg.UploadDelay(),
		WriteDelay:  cfg.WriteDelay(),
		Out:         out,
		Logger:      e.log,
	}, remote, recorder)

	result, runErr := m.Run(ctx)
	if rec != nil {
		rec.finish(result)
	}

	fmt.Fprintln(out)
	printSummary(out, result)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return &exitError{code: 130, err: errors.New("migration interrupted")}
		}
		return runErr
	}
	if result.HasFailures() {
		return &exitError{code: 2, err: fmt.Errorf("%d day(s) could not be migrated", result.Failed)}
	}
	return nil
}

func printSummary(w io.Writer, r migrate.Result) {
	color := logging.ShouldColorize(w)
	failed := strconv.Itoa(r.Failed)
	if r.Failed > 0 {
		failed = paint(failed, ansiRed, color)
	}
	t := newTable(left("Summary"), right("Count"))
	t.add("Days in window", strconv.Itoa(r.Days))
	t.add("Created", paint(strconv.Itoa(r.Created), ansiGreen, color && r.Created > 0))
	t.add("Appended", strconv.Itoa(r.Appended))
	t.add("Skipped", strconv.Itoa(r.Skipped))
	t.add("Failed", failed)
	t.add("Images uploaded", strconv.Itoa(r.ImagesUploaded))
	t.add("Images missing", strconv.Itoa(r.ImagesMissing))
	t.add("Image upload failures", strconv.Itoa(r.ImageFailures))
	t.add("Invalid dates", strconv.Itoa(r.InvalidDates))
	fmt.Fprintln(w, t)
}

// ledgerRecorder stores day reports of one run in the ledger.
type ledgerRecorder struct {
	ledger *ledger.Ledger
	runID  string
	log    *zap.Logger
}

// openRecorder starts a ledger run. Ledger problems never stop a migration;
// they are logged and the run continues unrecorded.
func openRecorder(ctx context.Context, cfg config.Config, log *zap.Logger, dryRun bool, from, to string) *ledgerRecorder {
	if !cfg.Ledger.Enabled {
		return nil
	}
	path, err := config.StatePath(cfg.Ledger.Path)
	if err != nil {
		log.Warn("ledger disabled", zap.Error(err))
		return nil
	}
	l, err := ledger.Open(path)
	if err != nil {
		log.Warn("ledger disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	run, err := l.StartRun(ctx, dryRun, from, to)
	if err != nil {
		_ = l.Close()
		log.Warn("ledger disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	log.Debug("ledger run started", zap.String("run_id", run.ID), zap.String("path", path))
	return &ledgerRecorder{ledger: l, runID: run.ID, log: log}
}

func (r *ledgerRecorder) Record(ctx context.Context, report migrate.DayReport) error {
	o := ledger.Outcome{
		RunID:      r.runID,
		Date:       report.Date,
		Action:     report.Action,
		DocumentID: report.DocumentID,
		Entries:    report.Entries,
		Images:     report.Images,
		Uploaded:   report.Uploaded,
		Missing:    report.Missing,
	}
	if report.Err != nil {
		o.Error = report.Err.Error()
	}
	return r.ledger.RecordDay(ctx, o)
}

// finish closes the run with the final counters; it runs even when the
// migration context was cancelled.
func (r *ledgerRecorder) finish(res migrate.Result) {
	defer r.ledger.Close()
	err := r.ledger.FinishRun(context.Background(), r.runID, countersOf(res))
	if err != nil {
		r.log.Warn("finishing ledger run failed", zap.String("run_id", r.runID), zap.Error(err))
	}
}

func countersOf(r migrate.Result) ledger.Counters {
	return ledger.Counters{
		Days:           r.Days,
		Created:        r.Created,
		Appended:       r.Appended,
		Skipped:        r.Skipped,
		Failed:         r.Failed,
		ImagesUploaded: r.ImagesUploaded,
		ImagesMissing:  r.ImagesMissing,
		ImageFailures:  r.ImageFailures,
		InvalidDates:   r.InvalidDates,
	}
}
