package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

const iconSize = 22

var (
	iconOnce sync.Once
	iconPNG  []byte
)

// Icon returns the tray icon: a page with text lines inside a dashed
// selection frame, encoded as PNG.
func Icon() []byte {
	iconOnce.Do(func() {
		var buf bytes.Buffer
		if err := png.Encode(&buf, drawIcon()); err == nil {
			iconPNG = buf.Bytes()
		}
	})
	return iconPNG
}

func drawIcon() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	frame := color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	page := color.NRGBA{R: 0xf4, G: 0xf4, B: 0xf4, A: 0xff}
	ink := color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}

	for y := 4; y < 18; y++ {
		for x := 5; x < 17; x++ {
			img.Set(x, y, page)
		}
	}
	for _, y := range []int{7, 10, 13} {
		for x := 7; x < 15; x++ {
			img.Set(x, y, ink)
		}
	}
	// Dashed selection border.
	for i := 1; i < iconSize-1; i++ {
		if i%3 == 2 {
			continue
		}
		img.Set(i, 1, frame)
		img.Set(i, iconSize-2, frame)
		img.Set(1, i, frame)
		img.Set(iconSize-2, i, frame)
	}
	return img
}
