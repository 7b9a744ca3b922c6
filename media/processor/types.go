package processor

import (
	"fmt"
	"image/color"
	"strings"

	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/lucasb-eyer/go-colorful"
)

// Format is a lossy output encoding.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
)

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return "." + string(f)
}

func (f Format) Valid() bool {
	return f == FormatWebP || f == FormatJPEG
}

// ParseFormat accepts "webp", "jpeg" and "jpg" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webp":
		return FormatWebP, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", apperrors.NewEncode(s, fmt.Errorf("unsupported output format %q", s))
}

// Anchor selects where the crop window sits inside the resized image.
type Anchor string

const (
	AnchorCenter Anchor = "center"

	// AnchorSmart places the window on the most interesting region.
	AnchorSmart Anchor = "smart"
)

func ParseAnchor(s string) (Anchor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "center":
		return AnchorCenter, nil
	case "smart":
		return AnchorSmart, nil
	}
	return "", apperrors.NewInvalidSpec("anchor", s, "must be center or smart")
}

// TargetSpec describes one normalized output.
type TargetSpec struct {
	Width  int
	Height int

	// Background is composited under transparent pixels; nil means opaque white.
	Background color.Color
	Quality    int
	Format     Format
	Anchor     Anchor
}

// Presets
var (
	White = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

	HeroPortrait = TargetSpec{Width: 1080, Height: 1920, Background: White, Quality: 80, Format: FormatWebP, Anchor: AnchorCenter}
)

// Validate checks geometry first, then the encoder parameters.
func (s TargetSpec) Validate() error {
	if err := s.validateGeometry(); err != nil {
		return err
	}
	return validateEncoding(s.Format, s.Quality)
}

func (s TargetSpec) validateGeometry() error {
	if s.Width <= 0 {
		return apperrors.NewInvalidSpec("width", s.Width, "must be positive")
	}
	if s.Height <= 0 {
		return apperrors.NewInvalidSpec("height", s.Height, "must be positive")
	}
	switch s.Anchor {
	case "", AnchorCenter, AnchorSmart:
	default:
		return apperrors.NewInvalidSpec("anchor", s.Anchor, "must be center or smart")
	}
	return nil
}

func validateEncoding(format Format, quality int) error {
	if !format.Valid() {
		return apperrors.NewEncode(string(format), fmt.Errorf("unsupported output format %q", format))
	}
	if quality < 0 || quality > 100 {
		return apperrors.NewEncode(string(format), fmt.Errorf("quality %d outside 0..100", quality))
	}
	return nil
}

// background returns the spec background forced to full opacity.
func (s TargetSpec) background() color.NRGBA {
	return opaque(s.Background)
}

func opaque(c color.Color) color.NRGBA {
	if c == nil {
		return White
	}
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	nc.A = 0xff
	return nc
}

// ParseColor parses "#rgb" or "#rrggbb" into an opaque color.
func ParseColor(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(strings.TrimSpace(hex))
	if err != nil {
		return color.NRGBA{}, apperrors.NewInvalidSpec("background", hex, "must be a #rgb or #rrggbb color")
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}
