package roles

import (
	"bytes"
	"fmt"
	"image"

	// Cover art arrives as jpeg, png, or webp depending on the CDN.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/EdlinOrg/prominentcolor"
	"golang.org/x/image/draw"
)

// paletteSize matches the 16-color adaptive palette the role colors were
// historically derived with.
const paletteSize = 16

// thumbnailEdge bounds the working image; quantizing a full cover is wasted work.
const thumbnailEdge = 100

// DominantColor derives a role color from raw cover-art bytes: decode, shrink
// to a thumbnail, quantize to an adaptive palette, and take the most frequent
// palette entry. Deterministic for identical input bytes.
func DominantColor(imageBytes []byte) (int, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to decode cover image: %w", err)
	}

	img = thumbnail(img, thumbnailEdge)

	colors, err := prominentcolor.KmeansWithAll(paletteSize, img, prominentcolor.ArgumentNoCropping, thumbnailEdge, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to quantize cover image: %w", err)
	}
	if len(colors) == 0 {
		return 0, fmt.Errorf("cover image produced an empty palette")
	}

	// Entries come back ordered by pixel count, most frequent first.
	dominant := colors[0].Color
	return int(dominant.R)<<16 | int(dominant.G)<<8 | int(dominant.B), nil
}

// thumbnail scales an image down so its longest edge is at most maxEdge,
// preserving aspect ratio. Images already small enough pass through.
func thumbnail(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	if w > h {
		h = h * maxEdge / w
		w = maxEdge
	} else {
		w = w * maxEdge / h
		h = maxEdge
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
