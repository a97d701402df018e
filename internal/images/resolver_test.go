package images_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Tiliavir/diary-migrate/internal/images"
	"github.com/Tiliavir/diary-migrate/internal/model"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("img"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestMonthDir(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr error
	}{
		{"20220815_001.jpg", "8月", nil},
		{"20231201.png", "12月", nil},
		{"20230101_x.png", "1月", nil},
		{"IMG_0001.jpg", "", images.ErrNoDateStamp},
		{"2022081.jpg", "", images.ErrNoDateStamp},
		{"20221315_x.jpg", "", images.ErrBadMonth},
		{"20220015_x.jpg", "", images.ErrBadMonth},
	}
	for _, tt := range tests {
		got, err := images.MonthDir(tt.name)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("MonthDir(%q) err = %v, want %v", tt.name, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("MonthDir(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
		}
	}
}

func TestResolveYearOverride(t *testing.T) {
	base := t.TempDir()
	r := images.NewResolver(base, "", map[string]string{"2022": "图片＆视频"})

	want := filepath.Join(base, "2022年", "图片＆视频", "8月", "20220815_001.jpg")
	touch(t, want)

	got, err := r.Resolve("2022", "20220815_001.jpg")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveDefaultFolder(t *testing.T) {
	base := t.TempDir()
	r := images.NewResolver(base, "", map[string]string{"2022": "图片＆视频"})

	want := filepath.Join(base, "2023年", images.DefaultFolder, "1月", "20230101_x.png")
	touch(t, want)

	got, err := r.Resolve("2023", "20230101_x.png")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveMissing(t *testing.T) {
	base := t.TempDir()
	r := images.NewResolver(base, "", nil)

	if _, err := r.Resolve("2023", "20230101_x.png"); !errors.Is(err, images.ErrNotFound) {
		t.Errorf("missing file err = %v, want ErrNotFound", err)
	}
	if _, err := r.Resolve("2023", "photo.png"); !errors.Is(err, images.ErrNoDateStamp) {
		t.Errorf("bad name err = %v, want ErrNoDateStamp", err)
	}

	// A directory with the file's name is not an image.
	dir := filepath.Join(base, "2023年", images.DefaultFolder, "2月", "20230201_d.jpg")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve("2023", "20230201_d.jpg"); !errors.Is(err, images.ErrNotFound) {
		t.Errorf("directory err = %v, want ErrNotFound", err)
	}
}

func TestFolderFor(t *testing.T) {
	r := images.NewResolver("b", "Pictures", map[string]string{"2021": "Fotos", "2020": ""})
	if got := r.FolderFor("2021"); got != "Fotos" {
		t.Errorf("FolderFor(2021) = %q", got)
	}
	if got := r.FolderFor("2020"); got != "Pictures" {
		t.Errorf("FolderFor(2020) = %q, want fallback", got)
	}
	if got := images.NewResolver("b", "", nil).FolderFor("2024"); got != images.DefaultFolder {
		t.Errorf("FolderFor default = %q", got)
	}
}

func TestResolveAll(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "2022年", "图片＆视频", "3月")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "20220301_a.jpg"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	r := images.NewResolver(base, "", map[string]string{"2022": "图片＆视频"})
	got := r.ResolveAll(model.RenderedDay{
		Date:   "2022-03-01",
		Images: []string{"20220301_a.jpg", "20220301_b.jpg", "20221301_c.jpg", "20220301_a.jpg"},
	})
	if len(got) != 4 {
		t.Fatalf("resolved %d images, want 4", len(got))
	}
	if !got[0].Found() || !got[3].Found() {
		t.Errorf("duplicates must both resolve: %+v", got)
	}
	if got[1].Found() || !errors.Is(got[1].Err, images.ErrNotFound) {
		t.Errorf("missing image = %+v", got[1])
	}
	if got[2].Found() || !errors.Is(got[2].Err, images.ErrBadMonth) {
		t.Errorf("bad month image = %+v", got[2])
	}
}
