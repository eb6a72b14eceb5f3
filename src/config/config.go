package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvFileEnvVar = "TEXT_EXTRACTOR_ENV"

	ClipboardBackendTool   = "tool"
	ClipboardBackendNative = "native"

	ProbeMethodWhich    = "which"
	ProbeMethodLookPath = "lookpath"

	NotifierDesktop = "desktop"
	NotifierLog     = "log"

	defaultCaptureTimeoutSec = 120
	defaultProcessTimeoutSec = 60
)

type LoadOptions struct {
	SettingsPathOverride string
	LogLevelOverride     string
}

type Config struct {
	CaptureTool      string
	OCRTool          string
	ClipboardTool    string
	ClipboardBackend string
	ProbeMethod      string
	TempDir          string
	CaptureTimeout   time.Duration
	ProcessTimeout   time.Duration
	SettingsPath     string
	Hotkey           string
	Notifier         string

	LogLevel          string
	LogFormat         string
	EnableFileLogging bool
	LogFile           string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// .env next to the executable wins over TEXT_EXTRACTOR_ENV; real
	// environment variables are never overwritten by either.
	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{
		CaptureTool:       getEnvWithDefault("CAPTURE_TOOL", "gnome-screenshot"),
		OCRTool:           getEnvWithDefault("OCR_TOOL", "tesseract"),
		ClipboardTool:     getEnvWithDefault("CLIPBOARD_TOOL", "xclip"),
		ClipboardBackend:  oneOf(os.Getenv("CLIPBOARD_BACKEND"), ClipboardBackendTool, ClipboardBackendNative),
		ProbeMethod:       oneOf(os.Getenv("PROBE_METHOD"), ProbeMethodWhich, ProbeMethodLookPath),
		TempDir:           getEnvWithDefault("TEMP_DIR", os.TempDir()),
		CaptureTimeout:    secondsFromEnv("CAPTURE_TIMEOUT_SEC", defaultCaptureTimeoutSec),
		ProcessTimeout:    secondsFromEnv("PROCESS_TIMEOUT_SEC", defaultProcessTimeoutSec),
		SettingsPath:      resolveSettingsPath(opts),
		Hotkey:            getEnvWithDefault("HOTKEY", "Ctrl+Shift+E"),
		Notifier:          oneOf(os.Getenv("NOTIFIER"), NotifierDesktop, NotifierLog),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:         oneOf(os.Getenv("LOG_FORMAT"), "console", "json"),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		LogFile:           getEnvWithDefault("LOG_FILE", "text_extractor.log"),
	}

	if override := strings.TrimSpace(opts.LogLevelOverride); override != "" {
		cfg.LogLevel = override
	}

	return cfg, nil
}

// UsesClipboardTool reports whether clipboard writes go through the external tool.
func (c *Config) UsesClipboardTool() bool {
	return c.ClipboardBackend == ClipboardBackendTool
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func resolveSettingsPath(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.SettingsPathOverride); override != "" {
		return override
	}
	if p := strings.TrimSpace(os.Getenv("SETTINGS_FILE")); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			base = dir
		} else {
			base = os.TempDir()
		}
	}
	return filepath.Join(base, "text-extractor", "settings.yaml")
}

func secondsFromEnv(key string, def int) time.Duration {
	n := def
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	return time.Duration(n) * time.Second
}

// oneOf returns value when it is one of allowed (case-insensitive), else allowed[0].
func oneOf(value string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return a
		}
	}
	return allowed[0]
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
