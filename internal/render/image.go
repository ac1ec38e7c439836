// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Fit downscales img so its longest side is at most maxEdge pixels,
// preserving the aspect ratio. Images already within bounds, or a
// non-positive maxEdge, are returned unchanged.
func Fit(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxEdge
		nh = max(1, h*maxEdge/w)
	} else {
		nh = maxEdge
		nw = max(1, w*maxEdge/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// EncodePNG serializes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
