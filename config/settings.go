package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/leeforge/catalogkit/logging"
	"github.com/leeforge/catalogkit/media/storage"
)

// Settings is the full settings tree of a catalogkit run.
type Settings struct {
	Log      logging.Config   `mapstructure:"log" json:"log" yaml:"log"`
	Workers  int              `mapstructure:"workers" json:"workers" yaml:"workers" default:"1" validate:"gte=1,lte=64"`
	Media    MediaSettings    `mapstructure:"media" json:"media" yaml:"media"`
	Catalog  CatalogSettings  `mapstructure:"catalog" json:"catalog" yaml:"catalog"`
	Storage  storage.Config   `mapstructure:"storage" json:"storage" yaml:"storage"`
	Assets   AssetSettings    `mapstructure:"assets" json:"assets" yaml:"assets"`
	Spelling SpellingSettings `mapstructure:"spelling" json:"spelling" yaml:"spelling"`
}

type MediaSettings struct {
	PublicDir    string           `mapstructure:"public_dir" json:"public_dir" yaml:"public_dir" default:"public" validate:"required"`
	BackupPrefix string           `mapstructure:"backup_prefix" json:"backup_prefix" yaml:"backup_prefix" default:"images_backup" validate:"required"`
	Convert      ConvertSettings  `mapstructure:"convert" json:"convert" yaml:"convert"`
	Optimize     OptimizeSettings `mapstructure:"optimize" json:"optimize" yaml:"optimize"`
	Hero         HeroSettings     `mapstructure:"hero" json:"hero" yaml:"hero"`
	Watch        WatchSettings    `mapstructure:"watch" json:"watch" yaml:"watch"`
}

type ConvertSettings struct {
	Extensions []string `mapstructure:"extensions" json:"extensions" yaml:"extensions" default:"[\"png\",\"jpg\",\"jpeg\"]" validate:"min=1,dive,required"`

	// Quality is a pointer so an explicit 0 survives the defaults pass.
	Quality *int `mapstructure:"quality" json:"quality" yaml:"quality" default:"82" validate:"omitempty,gte=0,lte=100"`
}

type OptimizeSettings struct {
	// Threshold in bytes; smaller .webp files are left alone.
	Threshold int64 `mapstructure:"threshold" json:"threshold" yaml:"threshold" default:"524288" validate:"gte=0"`
	Quality   *int  `mapstructure:"quality" json:"quality" yaml:"quality" default:"82" validate:"omitempty,gte=0,lte=100"`
}

type HeroSettings struct {
	Patterns   []string `mapstructure:"patterns" json:"patterns" yaml:"patterns" default:"[\"hero*.png\",\"hero*.jpg\"]" validate:"min=1,dive,required"`
	OutputDir  string   `mapstructure:"output_dir" json:"output_dir" yaml:"output_dir"`
	Width      int      `mapstructure:"width" json:"width" yaml:"width" default:"1080" validate:"gt=0"`
	Height     int      `mapstructure:"height" json:"height" yaml:"height" default:"1920" validate:"gt=0"`
	Quality    *int     `mapstructure:"quality" json:"quality" yaml:"quality" default:"80" validate:"omitempty,gte=0,lte=100"`
	Format     string   `mapstructure:"format" json:"format" yaml:"format" default:"webp" validate:"oneof=webp jpeg"`
	Background string   `mapstructure:"background" json:"background" yaml:"background" default:"#ffffff" validate:"hexcolor"`
	Anchor     string   `mapstructure:"anchor" json:"anchor" yaml:"anchor" default:"center" validate:"oneof=center smart"`

	// SizeBudget in bytes; larger outputs are kept but logged as a warning.
	SizeBudget int64 `mapstructure:"size_budget" json:"size_budget" yaml:"size_budget" default:"204800" validate:"gte=0"`
}

type WatchSettings struct {
	Debounce time.Duration `mapstructure:"debounce" json:"debounce" yaml:"debounce" default:"500ms"`
}

type CatalogSettings struct {
	Path            string `mapstructure:"path" json:"path" yaml:"path" default:"data/products.json" validate:"required"`
	EnrichmentPath  string `mapstructure:"enrichment_path" json:"enrichment_path" yaml:"enrichment_path" default:"data/enrichment.yaml"`
	ReportPath      string `mapstructure:"report_path" json:"report_path" yaml:"report_path" default:"product_audit_results.json"`
	MinDetailLength int    `mapstructure:"min_detail_length" json:"min_detail_length" yaml:"min_detail_length" default:"100" validate:"gte=0"`
}

type AssetMapping struct {
	Source string `mapstructure:"source" json:"source" yaml:"source" validate:"required"`
	Target string `mapstructure:"target" json:"target" yaml:"target" validate:"required"`
}

type AssetSettings struct {
	SourceDir    string         `mapstructure:"source_dir" json:"source_dir" yaml:"source_dir" default:"assets"`
	TargetFolder string         `mapstructure:"target_folder" json:"target_folder" yaml:"target_folder" default:"products"`
	BackupFolder string         `mapstructure:"backup_folder" json:"backup_folder" yaml:"backup_folder" default:"products_backup"`
	Mapping      []AssetMapping `mapstructure:"mapping" json:"mapping" yaml:"mapping" validate:"dive"`
}

type SpellingSettings struct {
	Corrections     map[string]string `mapstructure:"corrections" json:"corrections" yaml:"corrections"`
	DisableDefaults bool              `mapstructure:"disable_defaults" json:"disable_defaults" yaml:"disable_defaults"`
}

// HeroOutputDir falls back to the public directory.
func (s *Settings) HeroOutputDir() string {
	if s.Media.Hero.OutputDir != "" {
		return s.Media.Hero.OutputDir
	}
	return s.Media.PublicDir
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateStorage, storage.Config{})
	return v
}

func validateStorage(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(storage.Config)
	if cfg.Type != storage.TypeOSS {
		return
	}
	if cfg.OSS.Endpoint == "" {
		sl.ReportError(cfg.OSS.Endpoint, "OSS.Endpoint", "Endpoint", "required_for_oss", "")
	}
	if cfg.OSS.Bucket == "" {
		sl.ReportError(cfg.OSS.Bucket, "OSS.Bucket", "Bucket", "required_for_oss", "")
	}
	if cfg.OSS.AccessKeyID == "" || cfg.OSS.AccessKeySecret == "" {
		sl.ReportError(cfg.OSS.AccessKeyID, "OSS.AccessKeyID", "AccessKeyID", "required_for_oss", "")
	}
}

// Validate checks the settings tree and joins every violation into one error.
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.Join(msgs...)
}

// LoadSettings merges the layered settings files over the defaults and
// validates the result.
func LoadSettings(optsArr ...ConfigOptions) (*Settings, *Config, error) {
	cfg, err := NewConfig(optsArr...)
	if err != nil {
		return nil, nil, err
	}

	settings := &Settings{Log: logging.DefaultConfig()}
	if err := cfg.BindWithDefaults(settings); err != nil {
		return nil, nil, err
	}

	if err := settings.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid settings: %w", err)
	}

	return settings, cfg, nil
}
