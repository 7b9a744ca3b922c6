package processor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
	"github.com/nfnt/resize"
)

// Step is one raster stage of a normalization pipeline.
type Step interface {
	Name() string
	Apply(img image.Image) (image.Image, error)
}

// Pipeline runs its steps in order, feeding each the previous output.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the step names in order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

func (p *Pipeline) Run(img image.Image) (image.Image, error) {
	var err error
	for _, step := range p.steps {
		img, err = step.Apply(img)
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}

// CoverResizeStep scales the image to its cover size for Width x Height.
type CoverResizeStep struct {
	Width  int
	Height int
	Filter resize.InterpolationFunction
}

func (CoverResizeStep) Name() string { return "cover-resize" }

func (s CoverResizeStep) Apply(img image.Image) (image.Image, error) {
	b := img.Bounds()
	rw, rh := CoverSize(b.Dx(), b.Dy(), s.Width, s.Height)
	if rw == b.Dx() && rh == b.Dy() {
		return img, nil
	}
	return resize.Resize(uint(rw), uint(rh), img, s.Filter), nil
}

// CropStep cuts a Width x Height window out of an image that covers it.
type CropStep struct {
	Width  int
	Height int
	Anchor Anchor
}

func (CropStep) Name() string { return "crop" }

func (s CropStep) Apply(img image.Image) (image.Image, error) {
	b := img.Bounds()
	offset, err := s.offset(img)
	if err != nil {
		return nil, err
	}
	window := image.Rect(offset.X, offset.Y, offset.X+s.Width, offset.Y+s.Height).Add(b.Min)
	return imaging.Crop(img, window), nil
}

func (s CropStep) offset(img image.Image) (image.Point, error) {
	b := img.Bounds()
	center := CenterOffset(b.Dx(), b.Dy(), s.Width, s.Height)
	if s.Anchor != AnchorSmart || (b.Dx() == s.Width && b.Dy() == s.Height) {
		return center, nil
	}

	analyzer := smartcrop.NewAnalyzer(lanczosResizer{})
	best, err := analyzer.FindBestCrop(img, s.Width, s.Height)
	if err != nil {
		// no usable features: keep the center window
		return center, nil
	}
	return clampOffset(best.Min.Sub(b.Min), b.Dx(), b.Dy(), s.Width, s.Height), nil
}

// FlattenStep composites the image over an opaque background.
type FlattenStep struct {
	Background color.Color
}

func (FlattenStep) Name() string { return "flatten" }

func (s FlattenStep) Apply(img image.Image) (image.Image, error) {
	return Flatten(img, s.Background), nil
}

// lanczosResizer adapts nfnt/resize to the smartcrop.Resizer interface.
type lanczosResizer struct{}

func (lanczosResizer) Resize(img image.Image, width, height uint) image.Image {
	return resize.Resize(width, height, img, resize.Lanczos3)
}
