package optimizer

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leeforge/catalogkit/concurrency"
	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/leeforge/catalogkit/logging"
	"github.com/leeforge/catalogkit/media/processor"
	"github.com/leeforge/catalogkit/media/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func noise(w, h int, seed int64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rand.New(rand.NewSource(seed)).Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func writeWebP(t *testing.T, path string, img image.Image, quality int) int64 {
	t.Helper()
	data, err := processor.EncodeBytes(img, processor.FormatWebP, quality)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return int64(len(data))
}

func newTestOptimizer(t *testing.T, public string) *Optimizer {
	t.Helper()
	backups, err := storage.NewLocalProvider(public, "")
	require.NoError(t, err)

	o := New(Options{
		PublicDir:         public,
		BackupPrefix:      "images_backup",
		Extensions:        []string{"png", "jpg", "jpeg"},
		ConvertQuality:    82,
		OptimizeThreshold: 0,
		OptimizeQuality:   82,
		Hero: HeroOptions{
			Patterns:   []string{"hero*.png", "hero*.jpg"},
			Spec:       processor.TargetSpec{Width: 54, Height: 96, Background: processor.White, Quality: 80, Format: processor.FormatWebP},
			SizeBudget: 200 * 1024,
		},
		Workers: 2,
	}, backups, logging.Nop())
	o.now = func() time.Time { return fixedNow }
	return o
}

func TestConvertPassConvertsAndBacksUp(t *testing.T) {
	public := t.TempDir()
	writePNG(t, filepath.Join(public, "a.png"), noise(40, 30, 1))
	writeJPEG(t, filepath.Join(public, "sub", "B.JPG"), noise(20, 50, 2))
	writePNG(t, filepath.Join(public, "images_backup_old", "x.png"), noise(4, 4, 3))
	require.NoError(t, os.WriteFile(filepath.Join(public, "notes.txt"), []byte("hi"), 0644))

	summary := newTestOptimizer(t, public).ConvertPass(context.Background())

	assert.Equal(t, 2, summary.Count(StatusConverted))
	assert.Equal(t, 0, summary.Count(StatusFailed))
	assert.NotEmpty(t, summary.RunID)

	for path, size := range map[string][2]int{
		filepath.Join(public, "a.webp"):        {40, 30},
		filepath.Join(public, "sub", "B.webp"): {20, 50},
	} {
		data, err := os.ReadFile(path)
		require.NoError(t, err, path)
		info, err := processor.Inspect(data)
		require.NoError(t, err)
		assert.Equal(t, "webp", info.Format)
		assert.Equal(t, size[0], info.Width)
		assert.Equal(t, size[1], info.Height)
	}

	backupRoot := filepath.Join(public, "images_backup_20240102_030405")
	original, err := os.ReadFile(filepath.Join(public, "a.png"))
	require.NoError(t, err)
	backedUp, err := os.ReadFile(filepath.Join(backupRoot, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, original, backedUp)
	assert.FileExists(t, filepath.Join(backupRoot, "sub", "B.JPG"))

	assert.NoFileExists(t, filepath.Join(public, "images_backup_old", "x.webp"))
}

func TestConvertPassSkipsFreshOutput(t *testing.T) {
	public := t.TempDir()
	src := filepath.Join(public, "a.png")
	out := filepath.Join(public, "a.webp")
	writePNG(t, src, noise(30, 30, 4))
	require.NoError(t, os.WriteFile(out, []byte("existing webp"), 0644))

	srcTime := time.Now().Add(-2 * time.Hour)
	outTime := srcTime.Add(time.Hour)
	require.NoError(t, os.Chtimes(src, srcTime, srcTime))
	require.NoError(t, os.Chtimes(out, outTime, outTime))

	summary := newTestOptimizer(t, public).ConvertPass(context.Background())

	assert.Equal(t, 1, summary.Count(StatusSkipped))
	assert.Equal(t, 0, summary.Count(StatusConverted))
	assert.Equal(t, 0, summary.Count(StatusFailed))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "existing webp", string(data))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(outTime))

	entries, err := os.ReadDir(public)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no backup may be written for skipped items")
}

func TestConvertPassReplacesStaleOutput(t *testing.T) {
	public := t.TempDir()
	src := filepath.Join(public, "a.png")
	out := filepath.Join(public, "a.webp")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(out, old, old))
	writePNG(t, src, noise(30, 30, 5))

	summary := newTestOptimizer(t, public).ConvertPass(context.Background())
	assert.Equal(t, 1, summary.Count(StatusConverted))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", string(data))
}

func TestConvertPassIsolatesFailures(t *testing.T) {
	public := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(public, "bad.png"), []byte("not a png"), 0644))
	writePNG(t, filepath.Join(public, "good.png"), noise(10, 10, 6))

	summary := newTestOptimizer(t, public).ConvertPass(context.Background())

	assert.Equal(t, 1, summary.Count(StatusConverted))
	assert.Equal(t, 1, summary.Count(StatusFailed))
	assert.True(t, summary.Errors().HasType(apperrors.ErrorTypeDecode))
	assert.FileExists(t, filepath.Join(public, "good.webp"))
	assert.NoFileExists(t, filepath.Join(public, "bad.webp"))

	report := summary.String()
	assert.Contains(t, report, "1 converted")
	assert.Contains(t, report, "1 failed")
	assert.Contains(t, report, "bad.png: [decode]")
}

func TestConvertPassManyWorkersKeepsOrder(t *testing.T) {
	public := t.TempDir()
	names := []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png"}
	for i, name := range names {
		writePNG(t, filepath.Join(public, name), noise(8, 8, int64(i)))
	}

	o := newTestOptimizer(t, public)
	o.exec = concurrency.NewParallelExecutor(4)

	summary := o.ConvertPass(context.Background())
	require.Len(t, summary.Results, len(names))
	for i, r := range summary.Results {
		assert.Equal(t, filepath.Join(public, names[i]), r.Path)
		assert.Equal(t, StatusConverted, r.Status)
	}
}

func TestOptimizePassReplacesWhenSmaller(t *testing.T) {
	public := t.TempDir()
	big := filepath.Join(public, "big.webp")
	bigSize := writeWebP(t, big, noise(64, 64, 7), 100)

	o := newTestOptimizer(t, public)
	o.opts.OptimizeQuality = 30
	summary := o.OptimizePass(context.Background())

	require.Len(t, summary.Results, 1)
	assert.Equal(t, StatusOptimized, summary.Results[0].Status)

	info, err := os.Stat(big)
	require.NoError(t, err)
	assert.Less(t, info.Size(), bigSize)
	assert.Equal(t, bigSize-info.Size(), summary.Saved())

	data, err := os.ReadFile(big)
	require.NoError(t, err)
	_, err = processor.Inspect(data)
	assert.NoError(t, err)

	backedUp, err := os.ReadFile(filepath.Join(public, "images_backup_20240102_030405", "big.webp"))
	require.NoError(t, err)
	assert.Len(t, backedUp, int(bigSize))

	entries, err := os.ReadDir(public)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only the image and its backup directory may remain")
}

func TestOptimizePassKeepsOriginalWhenNotSmaller(t *testing.T) {
	public := t.TempDir()
	small := filepath.Join(public, "small.webp")
	writeWebP(t, small, noise(64, 64, 7), 5)
	before, err := os.ReadFile(small)
	require.NoError(t, err)

	o := newTestOptimizer(t, public)
	o.opts.OptimizeQuality = 100
	summary := o.OptimizePass(context.Background())

	require.Len(t, summary.Results, 1)
	assert.Equal(t, StatusUnchanged, summary.Results[0].Status)
	assert.Zero(t, summary.Saved())

	after, err := os.ReadFile(small)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestOptimizePassNeverGrows(t *testing.T) {
	public := t.TempDir()
	path := filepath.Join(public, "photo.webp")
	writeWebP(t, path, noise(48, 48, 8), 90)

	o := newTestOptimizer(t, public)
	o.OptimizePass(context.Background())
	first, err := os.Stat(path)
	require.NoError(t, err)

	o.OptimizePass(context.Background())
	second, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, second.Size(), first.Size())
}

func TestOptimizePassNoBackupWhenUnchanged(t *testing.T) {
	public := t.TempDir()
	writeWebP(t, filepath.Join(public, "small.webp"), noise(32, 32, 6), 5)

	o := newTestOptimizer(t, public)
	o.opts.OptimizeQuality = 100
	o.OptimizePass(context.Background())

	assert.NoDirExists(t, filepath.Join(public, "images_backup_20240102_030405"))
}

func TestOptimizePassThreshold(t *testing.T) {
	public := t.TempDir()
	writeWebP(t, filepath.Join(public, "tiny.webp"), noise(8, 8, 9), 50)

	o := newTestOptimizer(t, public)
	o.opts.OptimizeThreshold = 512 * 1024
	summary := o.OptimizePass(context.Background())
	assert.Empty(t, summary.Results)
}

func TestHeroPass(t *testing.T) {
	public := t.TempDir()
	writePNG(t, filepath.Join(public, "hero-main.png"), noise(80, 60, 10))
	writeJPEG(t, filepath.Join(public, "hero2.jpg"), noise(30, 90, 11))
	writePNG(t, filepath.Join(public, "other.png"), noise(10, 10, 12))

	o := newTestOptimizer(t, public)
	o.opts.Hero.SizeBudget = 1
	summary := o.HeroPass(context.Background())

	require.Len(t, summary.Results, 2)
	assert.Equal(t, 2, summary.Count(StatusConverted))
	for _, r := range summary.Results {
		assert.Contains(t, r.Reason, "exceeds")
		data, err := os.ReadFile(r.Output)
		require.NoError(t, err)
		info, err := processor.Inspect(data)
		require.NoError(t, err)
		assert.Equal(t, processor.ImageInfo{Width: 54, Height: 96, Format: "webp"}, info)
	}
	assert.FileExists(t, filepath.Join(public, "hero-main.webp"))
	assert.FileExists(t, filepath.Join(public, "hero2.webp"))
	assert.NoFileExists(t, filepath.Join(public, "other.webp"))
}

func TestHeroPassInvalidSpec(t *testing.T) {
	public := t.TempDir()
	writePNG(t, filepath.Join(public, "hero.png"), noise(10, 10, 13))

	o := newTestOptimizer(t, public)
	o.opts.Hero.Spec.Width = 0
	summary := o.HeroPass(context.Background())

	assert.Equal(t, 1, summary.Count(StatusFailed))
	assert.True(t, summary.Errors().HasType(apperrors.ErrorTypeInvalidSpec))
}

func TestHeroPassWriteFailureIsEncodeError(t *testing.T) {
	public := t.TempDir()
	writePNG(t, filepath.Join(public, "hero.png"), noise(20, 20, 15))
	blocker := filepath.Join(public, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	o := newTestOptimizer(t, public)
	o.opts.Hero.OutputDir = filepath.Join(blocker, "out")
	summary := o.HeroPass(context.Background())

	require.Equal(t, 1, summary.Count(StatusFailed))
	assert.Equal(t, map[apperrors.ErrorType]int{apperrors.ErrorTypeEncode: 1}, summary.Errors().CountByType())
	assert.ErrorIs(t, summary.Results[0].Err, apperrors.ErrEncode)
}

func TestConvertPassWriteFailureIsEncodeError(t *testing.T) {
	public := t.TempDir()
	writePNG(t, filepath.Join(public, "a.png"), noise(16, 16, 16))
	// a directory where the webp should go makes the rename fail
	out := filepath.Join(public, "a.webp")
	require.NoError(t, os.Mkdir(out, 0755))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(out, old, old))

	o := newTestOptimizer(t, public)
	summary := o.ConvertPass(context.Background())

	require.Equal(t, 1, summary.Count(StatusFailed))
	assert.True(t, summary.Errors().HasType(apperrors.ErrorTypeEncode))
}

func TestRunSharesBackupDirectory(t *testing.T) {
	public := t.TempDir()
	writePNG(t, filepath.Join(public, "a.png"), noise(40, 40, 17))
	writeWebP(t, filepath.Join(public, "b.webp"), noise(40, 40, 18), 100)

	o := newTestOptimizer(t, public)
	o.opts.OptimizeQuality = 30
	calls := 0
	o.now = func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Hour)
	}
	o.Run(context.Background())

	var backups []string
	entries, err := os.ReadDir(public)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() {
			backups = append(backups, e.Name())
		}
	}
	require.Len(t, backups, 1)
	assert.FileExists(t, filepath.Join(public, backups[0], "a.png"))
	assert.FileExists(t, filepath.Join(public, backups[0], "b.webp"))
}

func TestRunUsesContextRunID(t *testing.T) {
	public := t.TempDir()
	writePNG(t, filepath.Join(public, "a.png"), noise(10, 10, 14))

	ctx := logging.SetRunID(context.Background(), "run-7")
	summary := newTestOptimizer(t, public).Run(ctx)

	assert.Equal(t, "run-7", summary.RunID)
	assert.Equal(t, 1, summary.Count(StatusConverted))
	// the optimize pass picks up the webp written by the convert pass
	assert.Equal(t, 1, summary.Count(StatusOptimized)+summary.Count(StatusUnchanged))
}

func TestSummaryString(t *testing.T) {
	s := NewSummary("r1")
	s.Add(Result{Path: "a.png", Status: StatusConverted, InputSize: 2_000_000, OutputSize: 500_000})
	s.Add(Result{Path: "b.png", Status: StatusConverted, InputSize: 1_000_000, OutputSize: 500_000})
	s.Add(Result{Path: "c.png", Status: StatusSkipped, InputSize: 9_000_000})

	out := s.String()
	assert.Contains(t, out, "run r1: 2 converted, 0 optimized, 1 skipped, 0 unchanged, 0 failed")
	assert.Contains(t, out, "saved 2.0 MB (3.0 MB -> 1.0 MB)")
	assert.NotContains(t, out, "failed:")

	grown := NewSummary("r2")
	grown.Add(Result{Path: "d.png", Status: StatusConverted, InputSize: 1000, OutputSize: 3000})
	assert.Contains(t, grown.String(), "grew 2.0 kB")
}

func TestWatchConvertsNewFiles(t *testing.T) {
	public := t.TempDir()
	o := newTestOptimizer(t, public)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan Result, 4)
	done := make(chan error, 1)
	go func() {
		done <- o.Watch(ctx, 50*time.Millisecond, func(r Result) { results <- r })
	}()

	// give the watcher time to register the directory
	time.Sleep(200 * time.Millisecond)
	writePNG(t, filepath.Join(public, "new.png"), noise(16, 16, 15))

	select {
	case r := <-results:
		assert.Equal(t, StatusConverted, r.Status)
		assert.Equal(t, filepath.Join(public, "new.webp"), r.Output)
	case <-time.After(10 * time.Second):
		t.Fatal("no conversion observed")
	}

	cancel()
	assert.NoError(t, <-done)
}
