package model

// Entry is one timestamped journal post recovered from a source file.
type Entry struct {
	Date   string   `json:"date"` // YYYY-MM-DD, as written in the header
	Time   string   `json:"time"` // HH:MM:SS
	Text   string   `json:"text"`
	Images []string `json:"images"`
}

// Clock returns the HH:MM part of the entry time.
func (e Entry) Clock() string {
	if len(e.Time) < 5 {
		return e.Time
	}
	return e.Time[:5]
}

// Day holds every entry for one calendar date, possibly gathered from more
// than one source file. Entries keep file order, then in-file order.
type Day struct {
	Date    string  `json:"date"`
	Entries []Entry `json:"entries"`
}

// ImageCount is the number of image references across all entries.
func (d Day) ImageCount() int {
	n := 0
	for _, e := range d.Entries {
		n += len(e.Images)
	}
	return n
}

// RenderedDay is the merged document for one date.
type RenderedDay struct {
	Date    string
	Content string
	Images  []string
}

// ResolvedImage binds an image reference to a file on disk. An unresolved
// image has an empty Path and the reason in Err.
type ResolvedImage struct {
	Name string
	Path string
	Err  error
}

// Found reports whether the image exists on disk.
func (r ResolvedImage) Found() bool { return r.Path != "" && r.Err == nil }

// RemoteDocument is the diary service's record for a date.
type RemoteDocument struct {
	ID      string
	Date    string
	Content string
}
