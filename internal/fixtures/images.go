package fixtures

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func testImage(alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 80, A: alpha})
		}
	}
	return img
}

// PNG returns a small PNG image, translucent when alpha is true
func PNG(t testing.TB, alpha bool) []byte {
	t.Helper()
	a := uint8(255)
	if alpha {
		a = 128
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(a)))
	return buf.Bytes()
}

// JPEG returns a small opaque JPEG image
func JPEG(t testing.TB) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(255), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}
