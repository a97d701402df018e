package images

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/Tiliavir/diary-migrate/internal/model"
)

// DefaultFolder is the image folder name inside each year directory.
const DefaultFolder = "图片&视频"

// Reasons an image reference cannot be resolved.
var (
	ErrNoDateStamp = errors.New("filename does not start with a YYYYMMDD date stamp")
	ErrBadMonth    = errors.New("date stamp month out of range")
	ErrNotFound    = errors.New("image file not found")
)

var stampRe = regexp.MustCompile(`^\d{4}(\d{2})\d{2}`)

// Resolver locates image files in the exported archive layout
// <base>/<year>年/<folder>/<month>月/<filename>.
type Resolver struct {
	Base string
	// Folder overrides DefaultFolder when set.
	Folder string
	// Overrides maps a four-digit year to the folder name used that year.
	Overrides map[string]string
}

// NewResolver returns a Resolver for base using folder (DefaultFolder when
// empty) and the given per-year folder overrides.
func NewResolver(base, folder string, overrides map[string]string) *Resolver {
	return &Resolver{Base: base, Folder: folder, Overrides: overrides}
}

// FolderFor returns the image folder name used for year.
func (r *Resolver) FolderFor(year string) string {
	if name, ok := r.Overrides[year]; ok && name != "" {
		return name
	}
	if r.Folder != "" {
		return r.Folder
	}
	return DefaultFolder
}

// MonthDir extracts the month from the leading date stamp of filename and
// renders it as a month folder name, e.g. "20220815_001.jpg" -> "8月".
func MonthDir(filename string) (string, error) {
	m := stampRe.FindStringSubmatch(filename)
	if m == nil {
		return "", ErrNoDateStamp
	}
	month, err := strconv.Atoi(m[1])
	if err != nil || month < 1 || month > 12 {
		return "", fmt.Errorf("%w: %s", ErrBadMonth, m[1])
	}
	return strconv.Itoa(month) + "月", nil
}

// Candidate composes the expected path of filename without touching disk.
func (r *Resolver) Candidate(year, filename string) (string, error) {
	month, err := MonthDir(filename)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.Base, year+"年", r.FolderFor(year), month, filename), nil
}

// Resolve returns the path of filename for year. The returned error is one of
// the package's reasons (wrapped) and is meant to be reported, not to abort the
// caller's work.
func (r *Resolver) Resolve(year, filename string) (string, error) {
	path, err := r.Candidate(year, filename)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return path, nil
}

// ResolveAll resolves every image of a rendered day, keeping order. The year is
// taken from the day's date key.
func (r *Resolver) ResolveAll(day model.RenderedDay) []model.ResolvedImage {
	year := day.Date
	if len(year) >= 4 {
		year = year[:4]
	}
	out := make([]model.ResolvedImage, 0, len(day.Images))
	for _, name := range day.Images {
		path, err := r.Resolve(year, name)
		out = append(out, model.ResolvedImage{Name: name, Path: path, Err: err})
	}
	return out
}
