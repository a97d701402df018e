package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Tiliavir/diary-migrate/internal/archive"
	"github.com/Tiliavir/diary-migrate/internal/journal"
	"github.com/Tiliavir/diary-migrate/internal/migrate"
)

func TestTableKeepsHeaderCase(t *testing.T) {
	tv := newTable(left("Date"), right("Entries"), right("Body lines"))
	tv.add("2022-01-01", "3", "7")
	tv.add("2022-01-02")
	out := tv.String()
	for _, want := range []string{"Date", "Entries", "Body lines", "2022-01-01", "2022-01-02", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	for _, upper := range []string{"DATE", "ENTRIES", "BODY LINES"} {
		if strings.Contains(out, upper) {
			t.Errorf("header rendered upper-cased as %q:\n%s", upper, out)
		}
	}
}

func TestTableFooter(t *testing.T) {
	tv := newTable(left("Date"), right("Entries"))
	tv.add("2022-01-01", "3")
	tv.add("2022-01-02", "4")
	tv.total("Total", "7")
	out := tv.String()
	last := strings.Index(out, "2022-01-02")
	total := strings.Index(out, "Total")
	if last < 0 || total < 0 || total < last {
		t.Fatalf("footer should follow the rows:\n%s", out)
	}
	if strings.Contains(out, "TOTAL") {
		t.Errorf("footer rendered upper-cased:\n%s", out)
	}
	if strings.Count(out, "Total") != 1 {
		t.Errorf("total should appear once:\n%s", out)
	}
}

func TestTableWithoutColumns(t *testing.T) {
	if newTable().String() != "" {
		t.Error("table without columns should render empty")
	}
}

func TestPaint(t *testing.T) {
	if got := paint("1", ansiRed, false); got != "1" {
		t.Errorf("paint disabled = %q", got)
	}
	if got := paint("1", ansiRed, true); got != ansiRed+"1"+ansiReset {
		t.Errorf("paint enabled = %q", got)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, migrate.Result{Days: 4, Created: 2, Skipped: 1, Failed: 1, ImagesMissing: 3})
	out := buf.String()
	for _, want := range []string{"Days in window", "Created", "Failed", "Images missing"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("summary written to a buffer must not be coloured")
	}
}

func TestPrintStats(t *testing.T) {
	files := []archive.FileReport{
		{Source: archive.Source{Year: "2021", Path: "/x/2021年/2021年-动态内容.txt"}, Missing: true},
		{Source: archive.Source{Year: "2022", Path: "/x/2022年/2022年-动态内容.txt"}, Days: 2,
			Stats: journal.Stats{Headers: 5, Images: 1, SuspectHeaders: 1}},
	}
	var buf bytes.Buffer
	printStats(&buf, files)
	out := buf.String()
	for _, want := range []string{"2021年-动态内容.txt", "missing", "2022年-动态内容.txt", "Total"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats missing %q:\n%s", want, out)
		}
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("短文本", 10); got != "短文本" {
		t.Errorf("shorten short = %q", got)
	}
	if got := shorten("一二三四五六", 4); got != "一二三…" {
		t.Errorf("shorten long = %q", got)
	}
}
