package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Config is the "log" section of the settings file.
type Config struct {
	// Director is the directory receiving <date>/<level>.log files.
	Director string `mapstructure:"director" json:"director" yaml:"director"`

	// Level is the minimum level (debug, info, warn, error, fatal).
	Level string `mapstructure:"level" json:"level" yaml:"level"`

	// Format is json or console.
	Format string `mapstructure:"format" json:"format" yaml:"format"`

	// EncodeLevel selects the zap level encoder (LowercaseLevelEncoder,
	// CapitalLevelEncoder, CapitalColorLevelEncoder).
	EncodeLevel string `mapstructure:"encode-level" json:"encodeLevel" yaml:"encode-level"`

	// TimeFormat uses Go time layout syntax.
	TimeFormat string `mapstructure:"time-format" json:"timeFormat" yaml:"time-format"`

	// LogInTerminal mirrors every entry to stdout.
	LogInTerminal bool `mapstructure:"log-in-terminal" json:"logInTerminal" yaml:"log-in-terminal"`

	// FileOutput disables the rotated files when false.
	FileOutput bool `mapstructure:"file-output" json:"fileOutput" yaml:"file-output"`

	MaxAge     int  `mapstructure:"max-age" json:"maxAge" yaml:"max-age"`
	MaxSize    int  `mapstructure:"max-size" json:"maxSize" yaml:"max-size"`
	MaxBackups int  `mapstructure:"max-backups" json:"maxBackups" yaml:"max-backups"`
	Compress   bool `mapstructure:"compress" json:"compress" yaml:"compress"`

	// ShowLineNumber adds the caller to each entry.
	ShowLineNumber bool `mapstructure:"show-line-number" json:"showLineNumber" yaml:"show-line-number"`
}

// DefaultConfig returns console output to the terminal plus rotated files
// under ./logs.
func DefaultConfig() Config {
	return Config{
		Director:       "logs",
		Level:          "info",
		Format:         "console",
		EncodeLevel:    "CapitalLevelEncoder",
		TimeFormat:     "2006/01/02 - 15:04:05",
		LogInTerminal:  true,
		FileOutput:     true,
		MaxAge:         7,
		MaxSize:        20,
		MaxBackups:     5,
		Compress:       true,
		ShowLineNumber: false,
	}
}

// TransportLevel converts the string level to zapcore.Level.
func (c Config) TransportLevel() zapcore.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ZapEncodeLevel returns the zapcore.LevelEncoder based on EncodeLevel.
func (c Config) ZapEncodeLevel() zapcore.LevelEncoder {
	switch c.EncodeLevel {
	case "CapitalLevelEncoder":
		return zapcore.CapitalLevelEncoder
	case "CapitalColorLevelEncoder":
		return zapcore.CapitalColorLevelEncoder
	case "LowercaseColorLevelEncoder":
		return zapcore.LowercaseColorLevelEncoder
	default:
		return zapcore.LowercaseLevelEncoder
	}
}

// applyDefaults fills empty fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Director == "" {
		c.Director = defaults.Director
	}
	if c.Format == "" {
		c.Format = defaults.Format
	}
	if c.TimeFormat == "" {
		c.TimeFormat = defaults.TimeFormat
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaults.MaxSize
	}
	if c.MaxAge == 0 {
		c.MaxAge = defaults.MaxAge
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = defaults.MaxBackups
	}
}
