package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"text-extractor/src/execrun"
	"text-extractor/src/execrun/exectest"
	"text-extractor/src/ocr"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00}

// tesseractWriting answers a recognize call by writing text to <stem>.txt.
func tesseractWriting(text string) exectest.Handler {
	return func(_ context.Context, cmd execrun.Command) execrun.Outcome {
		if err := os.WriteFile(ocr.OutputPath(cmd.Argv[2]), []byte(text), 0o600); err != nil {
			return execrun.Failed(err)
		}
		return execrun.Outcome{Succeeded: true}
	}
}

func TestPNGValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"ValidPNG", pngHeader, false},
		{"InvalidMagic", []byte{0x00, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, true},
		{"TooShort", []byte{0x89, 'P', 'N', 'G'}, true},
		{"Empty", []byte{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePNG(tt.data)
			assert.Equal(t, tt.wantErr, err != nil, "validatePNG() error = %v", err)
		})
	}
}

func TestNormalizeLegacyArgs(t *testing.T) {
	got := normalizeLegacyArgs([]string{"ocr-file", "-file", "a.png", "-json", "-language=tam", "-v"})
	assert.Equal(t, []string{"ocr-file", "--file", "a.png", "--json", "--language=tam", "-v"}, got)
}

func TestRunWithOptionsPlainText(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEMP_DIR", dir)
	image := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, os.WriteFile(image, pngHeader, 0o600))
	runner := exectest.New().On("tesseract", tesseractWriting("Hello World\n"))

	var out bytes.Buffer
	err := runWithOptions(context.Background(), cliOptions{filePath: image, language: "eng", runner: runner}, &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "Hello World", out.String())

	calls := runner.CallsTo("tesseract")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-l", "eng"}, calls[0].Argv[3:])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged files are removed")
}

func TestRunWithOptionsJSONFromStdin(t *testing.T) {
	t.Setenv("TEMP_DIR", t.TempDir())
	runner := exectest.New().On("tesseract", tesseractWriting("one two three"))

	var out bytes.Buffer
	opts := cliOptions{filePath: "-", language: "eng", jsonOutput: true, stdin: bytes.NewReader(pngHeader), runner: runner}
	require.NoError(t, runWithOptions(context.Background(), opts, &out, &bytes.Buffer{}))

	var result OCRResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, "one two three", result.Text)
	assert.Equal(t, 3, result.WordCount)
	assert.Equal(t, "-", result.Source)
}

func TestRunWithOptionsRejectsUnknownLanguage(t *testing.T) {
	err := runWithOptions(context.Background(), cliOptions{filePath: "-", language: "xx", stdin: bytes.NewReader(pngHeader)}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown language")
}

func TestRunWithOptionsLanguageMissing(t *testing.T) {
	t.Setenv("TEMP_DIR", t.TempDir())
	runner := exectest.New().On("tesseract", exectest.Exit(1, "Failed loading language 'tam'"))

	err := runWithOptions(context.Background(), cliOptions{filePath: "-", language: "tam", stdin: bytes.NewReader(pngHeader), runner: runner}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, ocr.ErrLanguageMissing)
}

// endless never runs out of bytes.
type endless struct{ read int }

func (e *endless) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	e.read += len(p)
	return len(p), nil
}

func TestRunWithOptionsStopsReadingOversizedStdin(t *testing.T) {
	in := &endless{}
	err := runWithOptions(context.Background(), cliOptions{filePath: "-", language: "eng", stdin: in}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "exceeds maximum size")
	assert.LessOrEqual(t, in.read, maxFileSize+64*1024)
}
