package timecalc

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of date keys and date flags.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// Window is an inclusive range of calendar dates. A nil bound is open.
type Window struct {
	From *time.Time
	To   *time.Time
}

// ParseWindow builds a Window from two optional YYYY-MM-DD strings.
func ParseWindow(from, to string) (Window, error) {
	var w Window
	if strings.TrimSpace(from) != "" {
		t, err := ParseDate(from)
		if err != nil {
			return Window{}, fmt.Errorf("start date: %w", err)
		}
		w.From = &t
	}
	if strings.TrimSpace(to) != "" {
		t, err := ParseDate(to)
		if err != nil {
			return Window{}, fmt.Errorf("end date: %w", err)
		}
		w.To = &t
	}
	if w.From != nil && w.To != nil && w.From.After(*w.To) {
		return Window{}, fmt.Errorf("start date %s is after end date %s", from, to)
	}
	return w, nil
}

// SingleDay returns a Window covering exactly d.
func SingleDay(d time.Time) Window {
	day := StartOfDay(d)
	return Window{From: &day, To: &day}
}

// Contains reports whether the calendar date of t lies inside w.
func (w Window) Contains(t time.Time) bool {
	day := StartOfDay(t)
	if w.From != nil && day.Before(StartOfDay(*w.From)) {
		return false
	}
	if w.To != nil && day.After(StartOfDay(*w.To)) {
		return false
	}
	return true
}

// String renders the window as "from → to" with "…" for open bounds.
func (w Window) String() string {
	bound := func(t *time.Time) string {
		if t == nil {
			return "…"
		}
		return t.Format(DateLayout)
	}
	return bound(w.From) + " → " + bound(w.To)
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FormatDuration formats a duration as a human-readable string like "1h 40m",
// "45m" or "30s".
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Seconds())
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
