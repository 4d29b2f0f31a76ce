// Package preprocess prepares rendered page images for the layout model.
package preprocess

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Scale is the upscaling factor applied to every page image.
const Scale = 2

// Preprocess flattens img onto an opaque white background and upscales it
// by Scale in both dimensions with a Lanczos filter. The input is not modified.
func Preprocess(img image.Image) *image.NRGBA {
	if img == nil {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	b := img.Bounds()
	if b.Empty() {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}

	rgb := imaging.New(b.Dx(), b.Dy(), color.White)
	draw.Draw(rgb, rgb.Bounds(), img, b.Min, draw.Over)

	return imaging.Resize(rgb, b.Dx()*Scale, b.Dy()*Scale, imaging.Lanczos)
}
