package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/diary-migrate/internal/archive"
	"github.com/Tiliavir/diary-migrate/internal/images"
	"github.com/Tiliavir/diary-migrate/internal/journal"
	"github.com/Tiliavir/diary-migrate/internal/timecalc"
)

var showFlags sourceFlags

var showCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Print the merged document of one day and where its images are",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showFlags.register(showCmd, false)
}

func runShow(cmd *cobra.Command, args []string) error {
	d, err := timecalc.ParseDate(args[0])
	if err != nil {
		return err
	}
	key := d.Format(timecalc.DateLayout)

	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	cfg := e.cfg
	if err := showFlags.apply(&cfg); err != nil {
		return err
	}
	arc, err := archive.Load(cfg.Source.BaseDir, cfg.Source.Encoding, e.log)
	if err != nil {
		return err
	}
	day, ok := arc.Days[key]
	if !ok {
		return fmt.Errorf("no entries for %s", key)
	}

	rendered := journal.Merge(journal.Sort(*day, orderOf(cfg)))
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d entries)\n\n%s\n", key, len(day.Entries), rendered.Content)
	if len(rendered.Images) == 0 {
		return nil
	}

	r := resolverFor(cfg)
	t := newTable(left("Image"), left("Status"), left("Path"))
	for _, img := range r.ResolveAll(rendered) {
		switch {
		case img.Found():
			t.add(img.Name, "found", img.Path)
		case errors.Is(img.Err, images.ErrNotFound):
			candidate, _ := r.Candidate(key[:4], img.Name)
			t.add(img.Name, "missing", candidate)
		default:
			t.add(img.Name, "unresolvable", img.Err.Error())
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, t)
	return nil
}
