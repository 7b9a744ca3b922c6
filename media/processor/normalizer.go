package processor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/nfnt/resize"
)

// Normalizer produces exact-size, opaque images from arbitrary sources:
// cover-fit resize, crop, flatten, encode. It holds no per-call state and is
// safe for concurrent use.
type Normalizer struct {
	filter resize.InterpolationFunction
}

func NewNormalizer() *Normalizer {
	return &Normalizer{filter: resize.Lanczos3}
}

// Pipeline returns the raster steps used for spec.
func (n *Normalizer) Pipeline(spec TargetSpec) *Pipeline {
	return NewPipeline(
		CoverResizeStep{Width: spec.Width, Height: spec.Height, Filter: n.filter},
		CropStep{Width: spec.Width, Height: spec.Height, Anchor: spec.Anchor},
		FlattenStep{Background: spec.background()},
	)
}

// Normalize returns a spec.Width x spec.Height opaque raster. Encoder
// parameters of spec are not looked at.
func (n *Normalizer) Normalize(src image.Image, spec TargetSpec) (*image.NRGBA, error) {
	if err := spec.validateGeometry(); err != nil {
		return nil, err
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.New(apperrors.ErrorTypeDecode, "empty source image")
	}

	out, err := n.Pipeline(spec).Run(src)
	if err != nil {
		return nil, err
	}
	return out.(*image.NRGBA), nil
}

// NormalizeBytes decodes data, normalizes it and encodes the result.
func (n *Normalizer) NormalizeBytes(data []byte, spec TargetSpec) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	src, _, err := Decode(data)
	if err != nil {
		return nil, err
	}

	out, err := n.Normalize(src, spec)
	if err != nil {
		return nil, err
	}
	return EncodeBytes(out, spec.Format, spec.Quality)
}

// Reencode keeps the source dimensions: flatten over bg, then encode.
func (n *Normalizer) Reencode(data []byte, format Format, quality int, bg color.Color) ([]byte, error) {
	if err := validateEncoding(format, quality); err != nil {
		return nil, err
	}

	src, _, err := Decode(data)
	if err != nil {
		return nil, err
	}

	out, err := NewPipeline(FlattenStep{Background: bg}).Run(src)
	if err != nil {
		return nil, err
	}
	return EncodeBytes(out, format, quality)
}

// Flatten composites img over bg (forced opaque) and returns an opaque NRGBA
// image with bounds starting at (0,0). Opaque sources are copied unchanged.
func Flatten(img image.Image, bg color.Color) *image.NRGBA {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return imaging.Clone(img)
	}
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), opaque(bg))
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}
