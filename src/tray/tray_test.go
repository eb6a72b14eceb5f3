package tray

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIconIsPNG(t *testing.T) {
	data := Icon()
	require.NotEmpty(t, data)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, iconSize, img.Bounds().Dx())
	assert.Equal(t, iconSize, img.Bounds().Dy())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Language: Tamil", languageLabel("Tamil"))
	assert.Equal(t, "Extract Text from Screen", extractLabel(""))
	assert.Equal(t, "Extract Text from Screen (Ctrl+Shift+E)", extractLabel("Ctrl+Shift+E"))
	assert.Equal(t, busyTooltip, tooltip(true))
	assert.Equal(t, idleTooltip, tooltip(false))
}

func TestUpdatesBeforeReadyAreKept(t *testing.T) {
	tr := New(Options{Language: "English"})
	tr.SetLanguage("Hindi")
	tr.SetBusy(true)
	assert.Equal(t, "Hindi", tr.language)
	assert.True(t, tr.busy)
}
