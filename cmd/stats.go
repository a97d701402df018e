package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/diary-migrate/internal/archive"
	"github.com/Tiliavir/diary-migrate/internal/journal"
)

var statsFlags sourceFlags

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show parser diagnostics per source file",
	Long: `Show what the parser recovered from each year's text file. Suspect lines
start like a header but do not match the header format; they were kept as
body text and are worth a look.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsFlags.register(statsCmd, false)
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	cfg := e.cfg
	if err := statsFlags.apply(&cfg); err != nil {
		return err
	}
	arc, err := archive.Load(cfg.Source.BaseDir, cfg.Source.Encoding, e.log)
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), arc.Files)
	return nil
}

func printStats(w io.Writer, files []archive.FileReport) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No year folders found.")
		return
	}
	t := newTable(
		left("File"), left("Status"), right("Days"), right("Entries"),
		right("Images"), right("Body lines"), right("Dropped"), right("Suspect"),
	)
	var (
		total journal.Stats
		days  int
	)
	for _, f := range files {
		name := filepath.Base(f.Path)
		if f.Missing {
			t.add(name, "missing")
			continue
		}
		t.add(statsRow(name, "ok", f.Days, f.Stats)...)
		total.Add(f.Stats)
		days += f.Days
	}
	t.total(statsRow("Total", "", days, total)...)
	fmt.Fprintln(w, t)
}

func statsRow(name, status string, days int, s journal.Stats) []string {
	return []string{
		name,
		status,
		strconv.Itoa(days),
		strconv.Itoa(s.Headers),
		strconv.Itoa(s.Images),
		strconv.Itoa(s.BodyLines),
		strconv.Itoa(s.Dropped),
		strconv.Itoa(s.SuspectHeaders),
	}
}
