package processor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	apperrors "github.com/leeforge/catalogkit/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageInfo is the header information of an encoded image.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// Inspect reads only the image header.
func Inspect(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, apperrors.NewDecode(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, apperrors.NewDecode(fmt.Errorf("empty %s image %dx%d", format, cfg.Width, cfg.Height))
	}
	return ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Decode decodes jpeg, png, gif, bmp, tiff or webp data. JPEG EXIF
// orientation is applied.
func Decode(data []byte) (image.Image, ImageInfo, error) {
	info, err := Inspect(data)
	if err != nil {
		return nil, ImageInfo{}, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ImageInfo{}, apperrors.NewDecode(err)
	}

	b := img.Bounds()
	info.Width, info.Height = b.Dx(), b.Dy()
	return img, info, nil
}

// webpMethod is the slowest libwebp method, which gives the smallest output.
const webpMethod = 6

// Encode writes img as format at quality. WebP goes through libwebp at its
// highest compression effort.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	if err := validateEncoding(format, quality); err != nil {
		return err
	}

	var err error
	switch format {
	case FormatWebP:
		err = encodeWebP(w, img, quality)
	case FormatJPEG:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return apperrors.NewEncode(string(format), err)
	}
	return nil
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(w io.Writer, img image.Image, quality int) error {
	opts, err := webpOptions(quality)
	if err != nil {
		return err
	}
	return webp.Encode(w, img, opts)
}

func webpOptions(quality int) (*encoder.Options, error) {
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return nil, err
	}
	opts.Method = webpMethod
	return opts, nil
}
