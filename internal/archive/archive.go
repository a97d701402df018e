package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Tiliavir/diary-migrate/internal/journal"
	"github.com/Tiliavir/diary-migrate/internal/model"
	"github.com/Tiliavir/diary-migrate/internal/timecalc"
)

// YearSuffix marks year directories and prefixes source file names.
const YearSuffix = "年"

// SourceName returns the name of the text export inside a year directory.
func SourceName(year string) string {
	return year + YearSuffix + "-动态内容.txt"
}

// Source is one discovered year directory.
type Source struct {
	Year string
	Dir  string
	Path string
}

// FileReport describes what loading one source produced.
type FileReport struct {
	Source
	Missing bool
	Days    int
	Entries int
	Stats   journal.Stats
}

// Archive holds every day parsed from an export, keyed by YYYY-MM-DD.
type Archive struct {
	Base  string
	Days  map[string]*model.Day
	Files []FileReport
}

// Discover lists the year directories under base in name order.
func Discover(base string) ([]Source, error) {
	dirents, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("reading archive directory %s: %w", base, err)
	}
	var sources []Source
	for _, de := range dirents {
		if !de.IsDir() || !strings.HasSuffix(de.Name(), YearSuffix) {
			continue
		}
		year := strings.TrimSuffix(de.Name(), YearSuffix)
		dir := filepath.Join(base, de.Name())
		sources = append(sources, Source{
			Year: year,
			Dir:  dir,
			Path: filepath.Join(dir, SourceName(year)),
		})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Dir < sources[j].Dir })
	return sources, nil
}

// NewDecoder wraps r so that it yields UTF-8. label is a WHATWG encoding name
// such as "utf-8", "gbk" or "gb18030"; empty means UTF-8. A leading byte order
// mark is always consumed.
func NewDecoder(r io.Reader, label string) (io.Reader, error) {
	if strings.TrimSpace(label) == "" {
		label = "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown text encoding %q: %w", label, err)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// ParseFile decodes and parses one source file.
func ParseFile(path, encoding string) (journal.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return journal.Result{}, err
	}
	defer f.Close()

	r, err := NewDecoder(f, encoding)
	if err != nil {
		return journal.Result{}, err
	}
	res, err := journal.ParseReader(r)
	if err != nil {
		return journal.Result{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return res, nil
}

// Load discovers and parses every source under base. Days appearing in more
// than one file collect the entries of all of them in discovery order. A year
// directory without its source file is reported and skipped.
func Load(base, encoding string, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := htmlindex.Get(orUTF8(encoding)); err != nil {
		return nil, fmt.Errorf("unknown text encoding %q: %w", encoding, err)
	}

	sources, err := Discover(base)
	if err != nil {
		return nil, err
	}

	a := &Archive{Base: base, Days: map[string]*model.Day{}}
	for _, src := range sources {
		report := FileReport{Source: src}
		if _, err := os.Stat(src.Path); os.IsNotExist(err) {
			logger.Warn("source file missing", zap.String("year", src.Year), zap.String("path", src.Path))
			report.Missing = true
			a.Files = append(a.Files, report)
			continue
		}

		res, err := ParseFile(src.Path, encoding)
		if err != nil {
			return nil, err
		}
		for _, date := range res.Order {
			entries := res.Days[date]
			day, ok := a.Days[date]
			if !ok {
				day = &model.Day{Date: date}
				a.Days[date] = day
			}
			day.Entries = append(day.Entries, entries...)
			report.Entries += len(entries)
		}
		report.Days = len(res.Order)
		report.Stats = res.Stats
		a.Files = append(a.Files, report)

		logger.Info("parsed source",
			zap.String("file", filepath.Base(src.Path)),
			zap.Int("days", report.Days),
			zap.Int("entries", report.Entries),
			zap.Int("suspect_headers", res.Stats.SuspectHeaders))
	}
	return a, nil
}

func orUTF8(label string) string {
	if strings.TrimSpace(label) == "" {
		return "utf-8"
	}
	return label
}

// Dates returns every date key in ascending order.
func (a *Archive) Dates() []string {
	dates := make([]string, 0, len(a.Days))
	for d := range a.Days {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Selection is the outcome of filtering an archive by a date window.
type Selection struct {
	Days []model.Day
	// Invalid holds keys that do not name a real calendar date.
	Invalid []string
}

// Select returns the days inside w in ascending date order.
func (a *Archive) Select(w timecalc.Window) Selection {
	var sel Selection
	for _, key := range a.Dates() {
		t, err := time.Parse(timecalc.DateLayout, key)
		if err != nil {
			sel.Invalid = append(sel.Invalid, key)
			continue
		}
		if !w.Contains(t) {
			continue
		}
		sel.Days = append(sel.Days, *a.Days[key])
	}
	return sel
}
