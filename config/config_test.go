package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leeforge/catalogkit/media/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func testOptions(dir string) ConfigOptions {
	opts := DefaultConfigOptions()
	opts.BasePath = dir
	return opts
}

func TestParseEnv(t *testing.T) {
	assert.Equal(t, DevMode, ParseEnv(""))
	assert.Equal(t, DevMode, ParseEnv("whatever"))
	assert.Equal(t, ProMode, ParseEnv(" PROD "))
	assert.Equal(t, TestMode, ParseEnv("testing"))
}

func TestLoadSettingsDefaultsWithoutFiles(t *testing.T) {
	settings, cfg, err := LoadSettings(testOptions(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, cfg.Files())

	assert.Equal(t, 1, settings.Workers)
	assert.Equal(t, "public", settings.Media.PublicDir)
	assert.Equal(t, []string{"png", "jpg", "jpeg"}, settings.Media.Convert.Extensions)
	assert.Equal(t, 82, *settings.Media.Convert.Quality)
	assert.Equal(t, 82, *settings.Media.Optimize.Quality)
	assert.EqualValues(t, 524288, settings.Media.Optimize.Threshold)
	assert.Equal(t, 1080, settings.Media.Hero.Width)
	assert.Equal(t, 1920, settings.Media.Hero.Height)
	assert.Equal(t, 80, *settings.Media.Hero.Quality)
	assert.Equal(t, "#ffffff", settings.Media.Hero.Background)
	assert.EqualValues(t, 204800, settings.Media.Hero.SizeBudget)
	assert.Equal(t, 500*time.Millisecond, settings.Media.Watch.Debounce)
	assert.Equal(t, "product_audit_results.json", settings.Catalog.ReportPath)
	assert.Equal(t, storage.TypeLocal, settings.Storage.Type)
	assert.Equal(t, "public", settings.HeroOutputDir())
	assert.Equal(t, "logs", settings.Log.Director)
}

func TestRequiredFilesMissing(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.AllowMissing = false

	_, err := NewConfig(opts)
	assert.ErrorIs(t, err, ErrNoConfigFiles)
}

func TestLayeredFilesAndEnvOverride(t *testing.T) {
	t.Setenv(EnvModeKey, "production")
	t.Setenv("CATALOGKIT_MEDIA_HERO_QUALITY", "70")

	dir := t.TempDir()
	writeSettings(t, dir, "settings.yaml", `
workers: 2
media:
  public_dir: site/public
  hero:
    quality: 75
    output_dir: site/out
catalog:
  path: data/catalog.yaml
assets:
  mapping:
    - source: "Product Shots/Artboard 1.png"
      target: walnut-oil.png
`)
	writeSettings(t, dir, "settings.local.yaml", "workers: 3\n")
	writeSettings(t, dir, "settings.prod.yaml", "log:\n  level: warn\n")
	writeSettings(t, dir, "settings.test.yaml", "workers: 9\n")

	settings, cfg, err := LoadSettings(testOptions(dir))
	require.NoError(t, err)
	require.Len(t, cfg.Files(), 3)

	assert.Equal(t, 3, settings.Workers)
	assert.Equal(t, "site/public", settings.Media.PublicDir)
	assert.Equal(t, 70, *settings.Media.Hero.Quality)
	assert.Equal(t, "site/out", settings.HeroOutputDir())
	assert.Equal(t, 1080, settings.Media.Hero.Width)
	assert.Equal(t, "warn", settings.Log.Level)
	assert.Equal(t, "data/catalog.yaml", settings.Catalog.Path)
	require.Len(t, settings.Assets.Mapping, 1)
	assert.Equal(t, "Product Shots/Artboard 1.png", settings.Assets.Mapping[0].Source)
}

func TestValidationRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, "settings.yaml", `
workers: 0
media:
  hero:
    format: gif
    background: white
`)

	_, _, err := LoadSettings(testOptions(dir))
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "Format"), msg)
	assert.True(t, strings.Contains(msg, "Background"), msg)
}

func TestQualityZeroIsKept(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, "settings.yaml", `
media:
  convert:
    quality: 0
  hero:
    quality: 0
`)

	settings, _, err := LoadSettings(testOptions(dir))
	require.NoError(t, err)
	assert.Equal(t, 0, *settings.Media.Convert.Quality)
	assert.Equal(t, 0, *settings.Media.Hero.Quality)
	assert.Equal(t, 82, *settings.Media.Optimize.Quality)
}

func TestQualityUpperBound(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, "settings.yaml", "media:\n  optimize:\n    quality: 101\n")

	_, _, err := LoadSettings(testOptions(dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Quality")
}

func TestWorkersUpperBound(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, "settings.yaml", "workers: 100\n")

	_, _, err := LoadSettings(testOptions(dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Workers")
}

func TestOSSRequiresCredentials(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, "settings.yaml", `
storage:
  type: oss
  oss:
    endpoint: oss-cn-hangzhou.aliyuncs.com
`)

	_, _, err := LoadSettings(testOptions(dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required_for_oss")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "CATALOGKIT_MEDIA_HERO_SIZE_BUDGET", EnvKey("catalogkit", "media.hero.size_budget"))
	assert.Equal(t, "LOG_LEVEL", EnvKey("", "log.level"))
}

func TestGetSet(t *testing.T) {
	dir := t.TempDir()
	writeSettings(t, dir, "settings.yaml", "workers: 4\n")

	cfg, err := NewConfig(testOptions(dir))
	require.NoError(t, err)
	assert.EqualValues(t, 4, cfg.Get("workers"))

	cfg.Set("workers", 5)
	assert.EqualValues(t, 5, cfg.Get("workers"))
}

func TestShippedSettingsFile(t *testing.T) {
	t.Setenv(EnvModeKey, "test")
	settings, cfg, err := LoadSettings(testOptions("."))
	require.NoError(t, err)
	require.Len(t, cfg.Files(), 1)

	assert.Equal(t, "webp", settings.Media.Hero.Format)
	assert.Equal(t, "public", settings.HeroOutputDir())
	require.Len(t, settings.Assets.Mapping, 3)
	assert.Equal(t, "acacia honey.png", settings.Assets.Mapping[0].Source)
	assert.Equal(t, "acacia-honey.png", settings.Assets.Mapping[0].Target)
	assert.False(t, settings.Spelling.DisableDefaults)
}
