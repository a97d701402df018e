package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/diary-migrate/internal/archive"
	"github.com/Tiliavir/diary-migrate/internal/config"
	"github.com/Tiliavir/diary-migrate/internal/journal"
	"github.com/Tiliavir/diary-migrate/internal/migrate"
	"github.com/Tiliavir/diary-migrate/internal/model"
)

var listFlags sourceFlags

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the parsed days of the export",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listFlags.register(listCmd, true)
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	cfg, sel, err := loadSelection(e, &listFlags)
	if err != nil {
		return err
	}
	for _, key := range sel.Invalid {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipping invalid date %q\n", key)
	}
	printDays(cmd.OutOrStdout(), sel.Days, orderOf(cfg))
	return nil
}

// loadSelection applies the flags, loads the archive and selects the window.
func loadSelection(e *env, flags *sourceFlags) (config.Config, archive.Selection, error) {
	cfg := e.cfg
	if err := flags.apply(&cfg); err != nil {
		return cfg, archive.Selection{}, err
	}
	window, err := flags.window(cfg)
	if err != nil {
		return cfg, archive.Selection{}, err
	}
	arc, err := archive.Load(cfg.Source.BaseDir, cfg.Source.Encoding, e.log)
	if err != nil {
		return cfg, archive.Selection{}, err
	}
	return cfg, arc.Select(window), nil
}

// printDays renders one table row per day with a short content preview.
func printDays(w io.Writer, days []model.Day, order string) {
	if len(days) == 0 {
		fmt.Fprintln(w, "No days found.")
		return
	}
	t := newTable(left("Date"), right("Entries"), right("Images"), left("Preview"))
	var entries, images int
	for _, d := range days {
		rendered := journal.Merge(journal.Sort(d, order))
		t.add(
			d.Date,
			strconv.Itoa(len(d.Entries)),
			strconv.Itoa(d.ImageCount()),
			shorten(migrate.Preview(rendered.Content), 48),
		)
		entries += len(d.Entries)
		images += d.ImageCount()
	}
	t.total("Total", strconv.Itoa(entries), strconv.Itoa(images), fmt.Sprintf("%d days", len(days)))
	fmt.Fprintln(w, t)
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
