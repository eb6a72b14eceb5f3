package deps

import (
	"context"
	"os/exec"
	"slices"
	"strings"
	"time"

	"text-extractor/src/execrun"
	"text-extractor/src/ocr"
)

// CommandProbe reports whether an executable can be launched.
type CommandProbe interface {
	Exists(ctx context.Context, command string) bool
}

// LanguageProbe reports whether the OCR engine has a language pack.
type LanguageProbe interface {
	IsInstalled(ctx context.Context, language string) bool
}

// WhichProbe asks `which`. A spawn failure counts as absent.
type WhichProbe struct {
	Runner  execrun.Runner
	Timeout time.Duration
}

func (p WhichProbe) Exists(ctx context.Context, command string) bool {
	if strings.TrimSpace(command) == "" {
		return false
	}
	out := p.Runner.Run(ctx, execrun.Command{Argv: []string{"which", command}, Timeout: p.Timeout})
	return out.Succeeded
}

// LookPathProbe resolves the command against PATH in-process.
type LookPathProbe struct {
	LookPath func(string) (string, error)
}

func (p LookPathProbe) Exists(_ context.Context, command string) bool {
	if strings.TrimSpace(command) == "" {
		return false
	}
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	_, err := lookPath(command)
	return err == nil
}

// EngineLanguageProbe lists the engine's languages and matches codes as
// whole tokens, case-insensitively; "chi" does not match "chi_sim".
type EngineLanguageProbe struct {
	Engine ocr.Engine
}

func (p EngineLanguageProbe) IsInstalled(ctx context.Context, language string) bool {
	code := strings.ToLower(strings.TrimSpace(language))
	if code == "" {
		return false
	}
	langs, err := p.Engine.InstalledLanguages(ctx)
	if err != nil {
		return false
	}
	return slices.Contains(langs, code)
}
