// Package runtimeinit builds the object graph shared by the resident and
// the one-shot CLI verbs.
package runtimeinit

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"text-extractor/src/clipboard"
	"text-extractor/src/config"
	"text-extractor/src/deps"
	"text-extractor/src/execrun"
	"text-extractor/src/logutil"
	"text-extractor/src/notification"
	"text-extractor/src/ocr"
	"text-extractor/src/pipeline"
	"text-extractor/src/settings"
)

type Options struct {
	LoadOptions config.LoadOptions
	// LogOutput overrides stderr for console logging.
	LogOutput io.Writer
	// Runner replaces the os/exec runner, mainly in tests.
	Runner execrun.Runner
}

type Runtime struct {
	Config    *config.Config
	Log       zerolog.Logger
	Settings  *settings.Store
	Runner    execrun.Runner
	Engine    ocr.Engine
	Languages deps.LanguageProbe
	Checker   *deps.Checker
	Publisher clipboard.Publisher
	Notifier  notification.Notifier
	Pipeline  *pipeline.Pipeline
}

func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logutil.New(logutil.Options{
		Level:             cfg.LogLevel,
		Format:            cfg.LogFormat,
		EnableFileLogging: cfg.EnableFileLogging,
		FilePath:          cfg.LogFile,
		Output:            opts.LogOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	store, err := settings.Open(cfg.SettingsPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings %s: %w", cfg.SettingsPath, err)
	}

	runner := opts.Runner
	if runner == nil {
		runner = execrun.NewExecRunner()
	}

	engine := ocr.Engine{Tool: cfg.OCRTool, Runner: runner, Timeout: cfg.ProcessTimeout}
	languages := deps.EngineLanguageProbe{Engine: engine}

	var commands deps.CommandProbe = deps.WhichProbe{Runner: runner, Timeout: cfg.ProcessTimeout}
	if cfg.ProbeMethod == config.ProbeMethodLookPath {
		commands = deps.LookPathProbe{}
	}

	catalog := deps.CatalogOptions{OCRTool: cfg.OCRTool, CaptureTool: cfg.CaptureTool}
	var publisher clipboard.Publisher = clipboard.NativePublisher{}
	if cfg.UsesClipboardTool() {
		catalog.ClipboardTool = cfg.ClipboardTool
		publisher = clipboard.ToolPublisher{Tool: cfg.ClipboardTool, Runner: runner, Timeout: cfg.ProcessTimeout}
	}
	checker := &deps.Checker{Catalog: deps.Catalog(catalog), Commands: commands, Languages: languages}

	notifier := notification.New(cfg.Notifier, log)

	p, err := pipeline.New(pipeline.Options{
		CaptureTool:    cfg.CaptureTool,
		CaptureTimeout: cfg.CaptureTimeout,
		TempDir:        cfg.TempDir,
		Runner:         runner,
		Recognizer:     engine,
		Checker:        checker,
		Publisher:      publisher,
		Notifier:       notifier,
		Settings:       store,
		Log:            log,
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("capture", cfg.CaptureTool).
		Str("ocr", cfg.OCRTool).
		Str("clipboard", cfg.ClipboardBackend).
		Str("settings", store.Path()).
		Msg("runtime ready")

	return &Runtime{
		Config:    cfg,
		Log:       log,
		Settings:  store,
		Runner:    runner,
		Engine:    engine,
		Languages: languages,
		Checker:   checker,
		Publisher: publisher,
		Notifier:  notifier,
		Pipeline:  p,
	}, nil
}
