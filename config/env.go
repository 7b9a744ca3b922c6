package config

import (
	"os"
	"strings"
)

const EnvModeKey = "CATALOGKIT_ENV"

type EnvMode string

const (
	DevMode  EnvMode = "development"
	ProMode  EnvMode = "production"
	TestMode EnvMode = "test"
)

func ParseEnv(env string) EnvMode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Mode reads CATALOGKIT_ENV on every call so tests can switch it with t.Setenv.
func Mode() EnvMode {
	return ParseEnv(os.Getenv(EnvModeKey))
}

// modeAliases lists the file-name suffixes accepted for a mode, in load order.
func modeAliases(mode EnvMode) []string {
	switch mode {
	case ProMode:
		return []string{"pro", "prod", "production"}
	case TestMode:
		return []string{"test"}
	default:
		return []string{"dev", "development"}
	}
}
