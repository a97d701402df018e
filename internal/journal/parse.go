package journal

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/Tiliavir/diary-migrate/internal/model"
)

var (
	headerRe = regexp.MustCompile(`^(\d{4})年(\d{2})月(\d{2})日 (\d{2}:\d{2}:\d{2})`)
	imageRe  = regexp.MustCompile(`^[\s\p{Zs}]*\[图片[:：](.*?)\]`)
	// suspectRe catches lines that open like a header but fail headerRe.
	suspectRe = regexp.MustCompile(`^\d{4}年`)
)

// Stats counts how the parser classified each line. The counters are purely
// diagnostic and never influence the parsed entries.
type Stats struct {
	Lines          int `json:"lines"`
	Headers        int `json:"headers"`
	Images         int `json:"images"`
	BodyLines      int `json:"body_lines"`
	Dropped        int `json:"dropped"`
	SuspectHeaders int `json:"suspect_headers"`
}

// Add merges o into s.
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Headers += o.Headers
	s.Images += o.Images
	s.BodyLines += o.BodyLines
	s.Dropped += o.Dropped
	s.SuspectHeaders += o.SuspectHeaders
}

// Result is the parsed content of one source file.
type Result struct {
	// Days maps a YYYY-MM-DD key to its entries in file order.
	Days map[string][]model.Entry
	// Order lists the keys of Days in first-seen order.
	Order []string
	Stats Stats
}

type parser struct {
	res    Result
	date   string
	clock  string
	text   []string
	images []string
}

// flush commits the pending entry. It is a no-op until a header was seen.
func (p *parser) flush() {
	if p.date == "" || p.clock == "" {
		return
	}
	if _, ok := p.res.Days[p.date]; !ok {
		p.res.Order = append(p.res.Order, p.date)
	}
	images := make([]string, len(p.images))
	copy(images, p.images)
	p.res.Days[p.date] = append(p.res.Days[p.date], model.Entry{
		Date:   p.date,
		Time:   p.clock,
		Text:   strings.TrimSpace(strings.Join(p.text, "\n")),
		Images: images,
	})
	p.date, p.clock = "", ""
	p.text = p.text[:0]
	p.images = p.images[:0]
}

func (p *parser) line(raw string) {
	line := strings.TrimRightFunc(raw, unicode.IsSpace)
	p.res.Stats.Lines++

	if m := headerRe.FindStringSubmatch(line); m != nil {
		p.flush()
		p.res.Stats.Headers++
		p.date = m[1] + "-" + m[2] + "-" + m[3]
		p.clock = m[4]
		return
	}

	pending := p.date != ""

	if m := imageRe.FindStringSubmatch(line); m != nil {
		if !pending {
			p.res.Stats.Dropped++
			return
		}
		p.res.Stats.Images++
		p.images = append(p.images, strings.TrimSpace(m[1]))
		return
	}

	if strings.TrimSpace(line) == "" {
		return
	}
	if suspectRe.MatchString(line) {
		p.res.Stats.SuspectHeaders++
	}
	if !pending {
		p.res.Stats.Dropped++
		return
	}
	p.res.Stats.BodyLines++
	p.text = append(p.text, line)
}

// Parse turns the lines of one source file into dated entries.
//
// A header line (2022年08月15日 21:04:05) starts a new entry, an image marker
// ([图片:name] or [图片：name]) attaches to the current entry, and every other
// non-blank line becomes body text. Lines that look almost like a header are
// kept as body text; Stats.SuspectHeaders counts them.
func Parse(lines []string) Result {
	p := &parser{res: Result{Days: map[string][]model.Entry{}}}
	for _, l := range lines {
		p.line(l)
	}
	p.flush()
	return p.res
}

// ParseReader reads r line by line and parses it like Parse.
func ParseReader(r io.Reader) (Result, error) {
	p := &parser{res: Result{Days: map[string][]model.Entry{}}}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		p.line(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("reading source: %w", err)
	}
	p.flush()
	return p.res, nil
}
