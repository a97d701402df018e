package journal

import (
	"sort"
	"strings"

	"github.com/Tiliavir/diary-migrate/internal/model"
)

// Entry orderings inside a day.
const (
	OrderFile = "file"
	OrderTime = "time"
)

// Merge renders the entries of one day into a single document. Each entry
// becomes "[HH:MM]\n<text>", entries are separated by one blank line and the
// images of all entries are flattened in entry order.
//
// The exact layout is what earlier runs wrote to the remote service, so it
// must not change: reconciliation finds already migrated days by substring.
func Merge(day model.Day) model.RenderedDay {
	texts := make([]string, 0, len(day.Entries))
	var images []string
	for _, e := range day.Entries {
		texts = append(texts, strings.TrimSpace("["+e.Clock()+"]\n"+e.Text))
		images = append(images, e.Images...)
	}
	return model.RenderedDay{
		Date:    day.Date,
		Content: strings.Join(texts, "\n\n"),
		Images:  images,
	}
}

// Sort returns day with its entries ordered according to order. OrderTime
// sorts stably by time of day; any other value keeps file order.
func Sort(day model.Day, order string) model.Day {
	if order != OrderTime {
		return day
	}
	entries := make([]model.Entry, len(day.Entries))
	copy(entries, day.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time < entries[j].Time
	})
	return model.Day{Date: day.Date, Entries: entries}
}
