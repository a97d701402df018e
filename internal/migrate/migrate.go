// Package migrate drives a migration run: it loads the export archive, walks
// the selected days in date order and reconciles each one with the remote
// diary service.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/diary-migrate/internal/archive"
	"github.com/Tiliavir/diary-migrate/internal/images"
	"github.com/Tiliavir/diary-migrate/internal/journal"
	"github.com/Tiliavir/diary-migrate/internal/model"
	"github.com/Tiliavir/diary-migrate/internal/reconcile"
	"github.com/Tiliavir/diary-migrate/internal/timecalc"
)

// ErrNoRemote is returned when a non dry run is started without a remote.
var ErrNoRemote = errors.New("a remote is required unless running dry")

// ActionFailed labels a day whose reconciliation did not complete.
const ActionFailed = "failed"

const previewRunes = 100

// Remote is the diary service as seen by the driver.
type Remote interface {
	reconcile.Store
	UploadImage(ctx context.Context, path string) (string, error)
}

// Recorder receives the outcome of every processed day.
type Recorder interface {
	Record(ctx context.Context, report DayReport) error
}

// Options configures a run.
type Options struct {
	Base     string
	Encoding string
	Window   timecalc.Window
	DryRun   bool
	// Order is journal.OrderFile or journal.OrderTime.
	Order    string
	Resolver *images.Resolver

	UploadDelay time.Duration
	WriteDelay  time.Duration

	// Out receives progress lines; nil discards them.
	Out    io.Writer
	Logger *zap.Logger
}

// Result holds counters for a run.
type Result struct {
	Days           int
	Created        int
	Appended       int
	Skipped        int
	Failed         int
	ImagesUploaded int
	ImagesMissing  int
	ImageFailures  int
	InvalidDates   int
}

// HasFailures reports whether any day could not be reconciled.
func (r Result) HasFailures() bool { return r.Failed > 0 }

// DayReport is the outcome of one date.
type DayReport struct {
	Date       string
	Action     string
	DocumentID string
	Entries    int
	Images     int
	Uploaded   int
	Missing    int
	Err        error
}

type Migrator struct {
	opts     Options
	remote   Remote
	recorder Recorder
	log      *zap.Logger
	out      io.Writer
}

// New returns a Migrator. remote may be nil for dry runs, which then treat
// every date as having no document. recorder may be nil.
func New(opts Options, remote Remote, recorder Recorder) *Migrator {
	if opts.Resolver == nil {
		opts.Resolver = images.NewResolver(opts.Base, "", nil)
	}
	if opts.Order == "" {
		opts.Order = journal.OrderFile
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator{opts: opts, remote: remote, recorder: recorder, log: log, out: out}
}

// Run migrates every day of the archive that falls inside the window.
// Per-day problems are counted in the result; the returned error is reserved
// for conditions that stop the run, including context cancellation.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	var result Result
	if m.remote == nil && !m.opts.DryRun {
		return result, ErrNoRemote
	}

	arc, err := archive.Load(m.opts.Base, m.opts.Encoding, m.log)
	if err != nil {
		return result, err
	}
	sel := arc.Select(m.opts.Window)
	for _, key := range sel.Invalid {
		m.log.Warn("skipping invalid date", zap.String("date", key))
		m.printf("  ! Skipped invalid date %q\n", key)
		result.InvalidDates++
	}

	m.log.Info("migration started",
		zap.Int("days", len(sel.Days)),
		zap.String("window", m.opts.Window.String()),
		zap.Bool("dry_run", m.opts.DryRun))

	for _, day := range sel.Days {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Days++

		report, err := m.migrateDay(ctx, day, &result)
		if err != nil {
			return result, err
		}
		m.record(ctx, report)

		if m.remote != nil {
			if err := timecalc.Sleep(ctx, m.opts.WriteDelay); err != nil {
				return result, err
			}
		}
	}

	m.log.Info("migration finished",
		zap.Int("created", result.Created),
		zap.Int("appended", result.Appended),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// migrateDay processes one date. The error is non-nil only when the context
// ends mid-day.
func (m *Migrator) migrateDay(ctx context.Context, day model.Day, result *Result) (DayReport, error) {
	day = journal.Sort(day, m.opts.Order)
	rendered := journal.Merge(day)
	report := DayReport{Date: day.Date, Entries: len(day.Entries), Images: len(rendered.Images)}

	m.printf("\n📅 %s (%d entries, %d images)\n", day.Date, report.Entries, report.Images)
	m.printf("  Preview: %s\n", Preview(rendered.Content))

	ids, err := m.uploadImages(ctx, rendered, &report, result)
	if err != nil {
		return report, err
	}

	candidate := reconcile.Candidate(rendered.Content, ids)
	var store reconcile.Store
	if m.remote != nil {
		store = m.remote
	}
	decision, err := reconcile.Apply(ctx, store, day.Date, candidate, m.opts.DryRun)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		report.Action = ActionFailed
		report.Err = err
		result.Failed++
		m.log.Error("day failed", zap.String("date", day.Date), zap.Error(err))
		m.printf("  ! Error:    %s: %v\n", day.Date, err)
		return report, nil
	}

	report.Action = decision.Action.String()
	report.DocumentID = decision.DocumentID
	suffix := ""
	if m.opts.DryRun && decision.Action != reconcile.Skip {
		suffix = " (dry run)"
	}
	switch decision.Action {
	case reconcile.Skip:
		result.Skipped++
		m.printf("  – Skipped:  %s (already contains content)\n", day.Date)
	case reconcile.Append:
		result.Appended++
		m.printf("  ↑ Appended: %s%s\n", day.Date, suffix)
	case reconcile.Create:
		result.Created++
		m.printf("  ✓ Created:  %s%s\n", day.Date, suffix)
	}
	m.log.Debug("day reconciled",
		zap.String("date", day.Date),
		zap.String("action", report.Action),
		zap.String("document_id", decision.DocumentID))
	return report, nil
}

// uploadImages resolves and uploads the images of a day in order, returning
// the ids of successful uploads. Dry runs resolve but never upload.
func (m *Migrator) uploadImages(ctx context.Context, rendered model.RenderedDay, report *DayReport, result *Result) ([]string, error) {
	if len(rendered.Images) == 0 {
		return nil, nil
	}
	resolved := m.opts.Resolver.ResolveAll(rendered)
	total := len(resolved)

	var ids []string
	for i, img := range resolved {
		name := img.Name
		if !img.Found() {
			report.Missing++
			result.ImagesMissing++
			m.log.Warn("image unavailable", zap.String("date", rendered.Date), zap.String("image", name), zap.Error(img.Err))
			m.printf("    [%d/%d] ? Missing: %s\n", i+1, total, name)
			continue
		}
		if m.opts.DryRun {
			m.printf("    [%d/%d] · Would upload: %s\n", i+1, total, name)
			continue
		}

		id, err := m.remote.UploadImage(ctx, img.Path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ids, ctxErr
			}
			result.ImageFailures++
			m.log.Warn("image upload failed", zap.String("date", rendered.Date), zap.String("image", name), zap.Error(err))
			m.printf("    [%d/%d] ✗ Upload failed: %s\n", i+1, total, name)
		} else {
			ids = append(ids, id)
			report.Uploaded++
			result.ImagesUploaded++
			m.printf("    [%d/%d] ✓ Uploaded: %s (ID: %s)\n", i+1, total, name, id)
		}
		if err := timecalc.Sleep(ctx, m.opts.UploadDelay); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

func (m *Migrator) record(ctx context.Context, report DayReport) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(ctx, report); err != nil {
		m.log.Warn("recording outcome failed", zap.String("date", report.Date), zap.Error(err))
	}
}

func (m *Migrator) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

// Preview returns the first characters of content on a single line.
func Preview(content string) string {
	runes := []rune(content)
	more := len(runes) > previewRunes
	if more {
		runes = runes[:previewRunes]
	}
	s := strings.ReplaceAll(string(runes), "\n", " ")
	if more {
		s += "..."
	}
	return s
}
