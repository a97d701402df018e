package migrate_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Tiliavir/diary-migrate/internal/archive"
	"github.com/Tiliavir/diary-migrate/internal/migrate"
	"github.com/Tiliavir/diary-migrate/internal/timecalc"
)

// fakeRemote keeps documents in memory keyed by date.
type fakeRemote struct {
	docs      map[string]string
	ids       map[string]string
	nextID    int
	uploads   []string
	writes    int
	failFind  map[string]bool
	failWrite map[string]bool
	failImage map[string]bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs:      map[string]string{},
		ids:       map[string]string{},
		failFind:  map[string]bool{},
		failWrite: map[string]bool{},
		failImage: map[string]bool{},
	}
}

func (f *fakeRemote) FindDocument(_ context.Context, date string) (string, bool, error) {
	if f.failFind[date] {
		return "", false, errors.New("listing unavailable")
	}
	id, ok := f.ids[date]
	return id, ok, nil
}

func (f *fakeRemote) FetchContent(_ context.Context, id string) (string, error) {
	for date, docID := range f.ids {
		if docID == id {
			return f.docs[date], nil
		}
	}
	return "", fmt.Errorf("no document %s", id)
}

func (f *fakeRemote) WriteDocument(_ context.Context, date, content, id string) error {
	if f.failWrite[date] {
		return errors.New("write rejected")
	}
	f.writes++
	if id == "" {
		f.nextID++
		id = fmt.Sprintf("d%d", f.nextID)
		f.ids[date] = id
	}
	f.docs[date] = content
	return nil
}

func (f *fakeRemote) UploadImage(_ context.Context, path string) (string, error) {
	name := filepath.Base(path)
	if f.failImage[name] {
		return "", errors.New("upload rejected")
	}
	f.uploads = append(f.uploads, name)
	return fmt.Sprintf("%d", 500+len(f.uploads)), nil
}

type fakeRecorder struct {
	reports []migrate.DayReport
}

func (r *fakeRecorder) Record(_ context.Context, report migrate.DayReport) error {
	r.reports = append(r.reports, report)
	return nil
}

const source2022 = `2022年01月01日 08:30:00
morning walk
[图片:20220101_a.jpg]
2022年01月01日 21:05:00
evening notes
2022年01月02日 09:00:00
second day
[图片：20220102_gone.jpg]
`

// buildArchive writes a 2022 export with one resolvable image.
func buildArchive(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, "2022年")
	imgDir := filepath.Join(dir, "图片&视频", "1月")
	if err := os.MkdirAll(imgDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, archive.SourceName("2022")), []byte(source2022), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(imgDir, "20220101_a.jpg"), []byte("jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}
	return base
}

func TestRunEndToEnd(t *testing.T) {
	base := buildArchive(t)
	remote := newFakeRemote()
	rec := &fakeRecorder{}
	var out bytes.Buffer

	res, err := migrate.New(migrate.Options{Base: base, Out: &out}, remote, rec).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := migrate.Result{Days: 2, Created: 2, ImagesUploaded: 1, ImagesMissing: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	wantDoc := "[08:30]\nmorning walk\n\n[21:05]\nevening notes\n\n[图501]\n"
	if got := remote.docs["2022-01-01"]; got != wantDoc {
		t.Errorf("2022-01-01 = %q, want %q", got, wantDoc)
	}
	if got := remote.docs["2022-01-02"]; got != "[09:00]\nsecond day" {
		t.Errorf("2022-01-02 = %q", got)
	}
	if len(rec.reports) != 2 || rec.reports[0].Action != "create" || rec.reports[1].Missing != 1 {
		t.Errorf("reports = %+v", rec.reports)
	}
	if !strings.Contains(out.String(), "✓ Created:  2022-01-01") {
		t.Errorf("progress output = %q", out.String())
	}
}

func TestRunIsIdempotentWithoutImages(t *testing.T) {
	base := buildArchive(t)
	remote := newFakeRemote()
	opts := migrate.Options{Base: base, Window: mustWindow(t, "2022-01-02", "2022-01-02")}

	if _, err := migrate.New(opts, remote, nil).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := migrate.New(opts, remote, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Skipped != 1 || res.Created != 0 || res.Appended != 0 {
		t.Errorf("second run = %+v, want one skip", res)
	}
	if remote.writes != 1 {
		t.Errorf("writes = %d, want 1", remote.writes)
	}
}

func TestRunWithImagesAppendsAgain(t *testing.T) {
	base := buildArchive(t)
	remote := newFakeRemote()
	opts := migrate.Options{Base: base, Window: mustWindow(t, "2022-01-01", "2022-01-01")}

	if _, err := migrate.New(opts, remote, nil).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := migrate.New(opts, remote, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Appended != 1 || res.Skipped != 0 || res.ImagesUploaded != 1 {
		t.Errorf("second run = %+v, want one append with one upload", res)
	}
	doc := remote.docs["2022-01-01"]
	for _, marker := range []string{"[图501]", "[图502]"} {
		if !strings.Contains(doc, marker) {
			t.Errorf("document missing %s:\n%s", marker, doc)
		}
	}
	if strings.Count(doc, "morning walk") != 2 {
		t.Errorf("re-run should append the day a second time:\n%s", doc)
	}
}

func TestRunAppendsToExistingDocument(t *testing.T) {
	base := buildArchive(t)
	remote := newFakeRemote()
	remote.ids["2022-01-02"] = "77"
	remote.docs["2022-01-02"] = "written on the phone\n\n"

	opts := migrate.Options{Base: base, Window: mustWindow(t, "2022-01-02", "")}
	res, err := migrate.New(opts, remote, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Appended != 1 {
		t.Errorf("result = %+v, want one append", res)
	}
	want := "written on the phone\n\n[09:00]\nsecond day"
	if got := remote.docs["2022-01-02"]; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if remote.ids["2022-01-02"] != "77" {
		t.Error("append must update the existing document")
	}
}

func TestRunDryRunWritesAndUploadsNothing(t *testing.T) {
	base := buildArchive(t)
	remote := newFakeRemote()
	var out bytes.Buffer

	res, err := migrate.New(migrate.Options{Base: base, DryRun: true, Out: &out}, remote, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if remote.writes != 0 || len(remote.uploads) != 0 {
		t.Errorf("dry run wrote %d documents and uploaded %v", remote.writes, remote.uploads)
	}
	if res.Created != 2 || res.ImagesMissing != 1 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(out.String(), "Would upload: 20220101_a.jpg") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunDryRunOffline(t *testing.T) {
	base := buildArchive(t)
	res, err := migrate.New(migrate.Options{Base: base, DryRun: true}, nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Created != 2 {
		t.Errorf("offline dry run = %+v, want every day as create", res)
	}
}

func TestRunRequiresRemote(t *testing.T) {
	_, err := migrate.New(migrate.Options{Base: t.TempDir()}, nil, nil).Run(context.Background())
	if !errors.Is(err, migrate.ErrNoRemote) {
		t.Errorf("err = %v, want ErrNoRemote", err)
	}
}

func TestRunUploadFailureKeepsDay(t *testing.T) {
	base := buildArchive(t)
	remote := newFakeRemote()
	remote.failImage["20220101_a.jpg"] = true

	res, err := migrate.New(migrate.Options{Base: base}, remote, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ImageFailures != 1 || res.Created != 2 {
		t.Errorf("result = %+v", res)
	}
	if got := remote.docs["2022-01-01"]; strings.Contains(got, "[图") {
		t.Errorf("failed upload left a marker: %q", got)
	}
}

func TestRunLookupFailureSkipsDay(t *testing.T) {
	base := buildArchive(t)
	remote := newFakeRemote()
	remote.failFind["2022-01-01"] = true
	rec := &fakeRecorder{}

	res, err := migrate.New(migrate.Options{Base: base}, remote, rec).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 || res.Created != 1 || !res.HasFailures() {
		t.Errorf("result = %+v", res)
	}
	if _, ok := remote.docs["2022-01-01"]; ok {
		t.Error("day with failed lookup was written")
	}
	if rec.reports[0].Action != migrate.ActionFailed || rec.reports[0].Err == nil {
		t.Errorf("report = %+v", rec.reports[0])
	}
}

func TestRunWriteFailure(t *testing.T) {
	base := buildArchive(t)
	remote := newFakeRemote()
	remote.failWrite["2022-01-02"] = true

	res, err := migrate.New(migrate.Options{Base: base}, remote, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 || res.Created != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRunCountsInvalidDates(t *testing.T) {
	base := buildArchive(t)
	extra := filepath.Join(base, "2023年")
	if err := os.MkdirAll(extra, 0o700); err != nil {
		t.Fatal(err)
	}
	content := "2023年02月30日 10:00:00\nimpossible day\n"
	if err := os.WriteFile(filepath.Join(extra, archive.SourceName("2023")), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	remote := newFakeRemote()
	opts := migrate.Options{Base: base, Logger: zap.New(core)}
	res, err := migrate.New(opts, remote, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.InvalidDates != 1 || res.Days != 2 {
		t.Errorf("result = %+v", res)
	}
	if _, ok := remote.docs["2023-02-30"]; ok {
		t.Error("invalid date was written")
	}
	warned := logs.FilterMessage("skipping invalid date").All()
	if len(warned) != 1 || warned[0].ContextMap()["date"] != "2023-02-30" {
		t.Errorf("invalid date warnings = %+v", warned)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	base := buildArchive(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	remote := newFakeRemote()
	_, err := migrate.New(migrate.Options{Base: base}, remote, nil).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if remote.writes != 0 {
		t.Errorf("writes = %d after cancellation", remote.writes)
	}
}

func TestPreview(t *testing.T) {
	if got := migrate.Preview("a\nb"); got != "a b" {
		t.Errorf("Preview short = %q", got)
	}
	long := strings.Repeat("日", 120)
	got := migrate.Preview(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 103 {
		t.Errorf("Preview long = %q", got)
	}
}

func mustWindow(t *testing.T, from, to string) timecalc.Window {
	t.Helper()
	w, err := timecalc.ParseWindow(from, to)
	if err != nil {
		t.Fatal(err)
	}
	return w
}
