package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/diary-migrate/internal/journal"
	"github.com/Tiliavir/diary-migrate/internal/model"
)

var (
	exportFlags  sourceFlags
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export parsed entries to stdout",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportFlags.register(exportCmd, true)
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md")
}

func runExport(cmd *cobra.Command, args []string) error {
	switch exportFormat {
	case "csv", "json", "md":
	default:
		return fmt.Errorf("unsupported --format %q (want csv, json or md)", exportFormat)
	}

	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	cfg, sel, err := loadSelection(e, &exportFlags)
	if err != nil {
		return err
	}
	order := orderOf(cfg)
	days := make([]model.Day, 0, len(sel.Days))
	for _, d := range sel.Days {
		days = append(days, journal.Sort(d, order))
	}

	out := cmd.OutOrStdout()
	switch exportFormat {
	case "json":
		data, err := json.MarshalIndent(days, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "md":
		printMarkdown(out, days)
	default:
		printCSV(out, days)
	}
	return nil
}

func printCSV(w io.Writer, days []model.Day) {
	fmt.Fprintln(w, "date,time,text,images")
	for _, d := range days {
		for _, e := range d.Entries {
			fmt.Fprintf(w, "%s,%s,%s,%s\n",
				csvEscape(d.Date),
				csvEscape(e.Time),
				csvEscape(e.Text),
				csvEscape(strings.Join(e.Images, ";")),
			)
		}
	}
}

// printMarkdown writes each day as a section holding its merged document.
func printMarkdown(w io.Writer, days []model.Day) {
	for i, d := range days {
		if i > 0 {
			fmt.Fprintln(w)
		}
		rendered := journal.Merge(d)
		fmt.Fprintf(w, "## %s\n\n%s\n", d.Date, rendered.Content)
		if len(rendered.Images) > 0 {
			fmt.Fprintln(w)
			for _, img := range rendered.Images {
				fmt.Fprintf(w, "- %s\n", img)
			}
		}
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
