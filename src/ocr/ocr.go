package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"text-extractor/src/execrun"
)

// BaseLanguage ships with every tesseract install and is never probed.
const BaseLanguage = "eng"

var (
	ErrLanguageMissing   = errors.New("language pack not installed")
	ErrRecognitionFailed = errors.New("ocr failed")
)

// Engine describes how to drive the tesseract executable.
type Engine struct {
	Tool    string
	Runner  execrun.Runner
	Timeout time.Duration
}

// RecognizeArgs builds argv for recognising image into <stem>.txt.
func (e Engine) RecognizeArgs(imagePath, outputStem, language string) []string {
	return []string{e.tool(), imagePath, outputStem, "-l", language}
}

// ListLangsArgs builds argv for enumerating installed language packs.
func (e Engine) ListLangsArgs() []string {
	return []string{e.tool(), "--list-langs"}
}

// Recognize runs the engine and classifies a failure from its stderr.
func (e Engine) Recognize(ctx context.Context, imagePath, outputStem, language string) error {
	out := e.Runner.Run(ctx, execrun.Command{
		Argv:          e.RecognizeArgs(imagePath, outputStem, language),
		CaptureStderr: true,
		Timeout:       e.Timeout,
	})
	if out.Succeeded {
		return nil
	}
	cause := ClassifyStderr(out.StderrLine)
	if out.Err != nil {
		return fmt.Errorf("%w: %v", cause, out.Err)
	}
	if out.StderrLine != "" {
		return fmt.Errorf("%w: exit %d: %s", cause, out.ExitCode, out.StderrLine)
	}
	return fmt.Errorf("%w: exit %d", cause, out.ExitCode)
}

// InstalledLanguages returns the codes reported by --list-langs.
func (e Engine) InstalledLanguages(ctx context.Context) ([]string, error) {
	out := e.Runner.Run(ctx, execrun.Command{
		Argv:          e.ListLangsArgs(),
		CaptureStdout: true,
		Timeout:       e.Timeout,
	})
	if !out.Succeeded {
		if out.Err != nil {
			return nil, fmt.Errorf("list languages: %w", out.Err)
		}
		return nil, fmt.Errorf("list languages: exit %d", out.ExitCode)
	}
	return ParseLanguageList(out.Stdout), nil
}

func (e Engine) tool() string {
	if strings.TrimSpace(e.Tool) == "" {
		return "tesseract"
	}
	return e.Tool
}

// OutputPath is where tesseract writes text for a given output stem.
func OutputPath(stem string) string { return stem + ".txt" }

// ParseLanguageList extracts one lowercase code per line, skipping the
// "List of available languages ..." header tesseract prints first.
func ParseLanguageList(out []byte) []string {
	var langs []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(strings.ToLower(line), "list of available languages") {
			continue
		}
		if strings.ContainsAny(line, " \t:") {
			continue
		}
		langs = append(langs, strings.ToLower(line))
	}
	return langs
}

// ClassifyStderr maps the first stderr line of a failed run to a cause.
func ClassifyStderr(line string) error {
	l := strings.ToLower(line)
	switch {
	case strings.Contains(l, "not installed"),
		strings.Contains(l, "not found"),
		strings.Contains(l, "failed loading language"):
		return ErrLanguageMissing
	default:
		return ErrRecognitionFailed
	}
}
