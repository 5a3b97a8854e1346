package attachment

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// rasterTypes are re-encoded on upload. GIF and WebP are stored as sent.
var rasterTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

type encodedImage struct {
	data        []byte
	ext         string
	contentType string
}

// reencode decodes a raster image, applies its EXIF orientation and writes it
// back as JPEG, or as PNG when it carries transparency.
func reencode(data []byte, quality int) (*encodedImage, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if hasAlpha(img) {
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
		return &encodedImage{data: buf.Bytes(), ext: ".png", contentType: "image/png"}, nil
	}

	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return &encodedImage{data: buf.Bytes(), ext: ".jpg", contentType: "image/jpeg"}, nil
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}
