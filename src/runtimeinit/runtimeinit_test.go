package runtimeinit

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"text-extractor/src/clipboard"
	"text-extractor/src/config"
	"text-extractor/src/execrun/exectest"
	"text-extractor/src/settings"
)

func TestBootstrapWiresToolBackend(t *testing.T) {
	t.Setenv("NOTIFIER", "log")
	t.Setenv("CLIPBOARD_BACKEND", "tool")
	t.Setenv("PROBE_METHOD", "which")
	path := filepath.Join(t.TempDir(), "settings.yaml")
	runner := exectest.New().On("which", exectest.Which("tesseract", "xclip"))

	var logs bytes.Buffer
	rt, err := Bootstrap(Options{
		LoadOptions: config.LoadOptions{SettingsPathOverride: path},
		LogOutput:   &logs,
		Runner:      runner,
	})
	require.NoError(t, err)

	assert.Equal(t, path, rt.Settings.Path())
	assert.Equal(t, settings.DefaultLanguage, rt.Settings.Language())
	_, isTool := rt.Publisher.(clipboard.ToolPublisher)
	assert.True(t, isTool)
	require.Len(t, rt.Checker.Catalog, 3)

	report := rt.Checker.CheckAll(context.Background(), "eng")
	require.Len(t, report, 1)
	assert.Equal(t, rt.Config.CaptureTool, report[0].Command)
}

func TestBootstrapNativeClipboardDropsToolDescriptor(t *testing.T) {
	t.Setenv("NOTIFIER", "log")
	t.Setenv("CLIPBOARD_BACKEND", "native")
	rt, err := Bootstrap(Options{
		LoadOptions: config.LoadOptions{SettingsPathOverride: filepath.Join(t.TempDir(), "s.yaml")},
		LogOutput:   &bytes.Buffer{},
		Runner:      exectest.New(),
	})
	require.NoError(t, err)

	_, isNative := rt.Publisher.(clipboard.NativePublisher)
	assert.True(t, isNative)
	for _, d := range rt.Checker.Catalog {
		assert.NotEqual(t, "xclip", d.Command)
	}
}
