package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/diary-migrate/internal/config"
	"github.com/Tiliavir/diary-migrate/internal/images"
	"github.com/Tiliavir/diary-migrate/internal/journal"
	"github.com/Tiliavir/diary-migrate/internal/timecalc"
)

// sourceFlags are shared by every command that reads the archive.
type sourceFlags struct {
	from  string
	to    string
	date  string
	base  string
	order string
}

func (f *sourceFlags) register(c *cobra.Command, withWindow bool) {
	if withWindow {
		c.Flags().StringVar(&f.from, "from", "", "Start date (YYYY-MM-DD), inclusive")
		c.Flags().StringVar(&f.to, "to", "", "End date (YYYY-MM-DD), inclusive")
		c.Flags().StringVar(&f.date, "date", "", "Process a single date (YYYY-MM-DD)")
	}
	c.Flags().StringVar(&f.base, "base", "", "Export directory holding the year folders")
	c.Flags().StringVar(&f.order, "order", "", "Entry order within a day: file or time")
}

// apply folds the flags into cfg and validates the result.
func (f *sourceFlags) apply(cfg *config.Config) error {
	if f.base != "" {
		cfg.Source.BaseDir = f.base
	}
	if f.order != "" {
		cfg.Source.EntryOrder = strings.ToLower(strings.TrimSpace(f.order))
	}
	if f.from != "" {
		cfg.Migrate.StartDate = f.from
	}
	if f.to != "" {
		cfg.Migrate.EndDate = f.to
	}
	return cfg.Validate()
}

// window returns the selected date window; --date wins over --from/--to.
func (f *sourceFlags) window(cfg config.Config) (timecalc.Window, error) {
	if f.date != "" {
		if f.from != "" || f.to != "" {
			return timecalc.Window{}, fmt.Errorf("--date cannot be combined with --from or --to")
		}
		d, err := timecalc.ParseDate(f.date)
		if err != nil {
			return timecalc.Window{}, fmt.Errorf("--date: %w", err)
		}
		return timecalc.SingleDay(d), nil
	}
	return cfg.Window()
}

func resolverFor(cfg config.Config) *images.Resolver {
	return images.NewResolver(cfg.Source.BaseDir, cfg.Source.ImageFolder, cfg.Source.ImageFolderOverrides)
}

func orderOf(cfg config.Config) string {
	if cfg.Source.EntryOrder == journal.OrderTime {
		return journal.OrderTime
	}
	return journal.OrderFile
}

func windowBounds(w timecalc.Window) (from, to string) {
	if w.From != nil {
		from = w.From.Format(timecalc.DateLayout)
	}
	if w.To != nil {
		to = w.To.Format(timecalc.DateLayout)
	}
	return from, to
}
