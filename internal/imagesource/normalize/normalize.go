// Package normalize is the Go replacement for the browser's off-screen canvas
// step: decode the fetched bytes, re-draw them in memory, and re-encode at a
// controlled format and quality.
package normalize

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	// Register the webp decoder so imaging.Decode can read webp payloads.
	_ "golang.org/x/image/webp"

	"github.com/goliatone/go-scenemerge/pkg/imagesource"
)

// Normalizer decodes arbitrary image bytes and re-encodes them into the
// hinted transport format. It reports the MIME type it actually produced,
// which may differ from the hint when an encoder is unavailable.
type Normalizer struct {
	quality int
}

// Ensure the implementation satisfies the public interface.
var _ imagesource.Normalizer = (*Normalizer)(nil)

// New constructs a Normalizer. Quality outside the 1-100 range falls back to
// imagesource.DefaultQuality.
func New(quality int) *Normalizer {
	if quality < 1 || quality > 100 {
		quality = imagesource.DefaultQuality
	}
	return &Normalizer{quality: quality}
}

// Normalize decodes data and re-encodes it using mimeHint as the target
// format. Decode and encode failures are returned to the caller, which treats
// them as recoverable per-attempt failures.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, mimeHint string) (imagesource.EncodedImage, error) {
	img, err := n.decode(ctx, data)
	if err != nil {
		return imagesource.EncodedImage{}, err
	}
	return n.encode(img, mimeHint)
}

// ExtractRegion decodes data, crops rect out of it, and re-encodes the crop.
func (n *Normalizer) ExtractRegion(ctx context.Context, data []byte, rect image.Rectangle, mimeHint string) (imagesource.EncodedImage, error) {
	img, err := n.decode(ctx, data)
	if err != nil {
		return imagesource.EncodedImage{}, err
	}

	rect = rect.Canon()
	if rect.Empty() {
		return imagesource.EncodedImage{}, fmt.Errorf("normalize: region %v is empty", rect)
	}
	if !rect.In(img.Bounds()) {
		return imagesource.EncodedImage{}, fmt.Errorf("normalize: region %v is outside image bounds %v", rect, img.Bounds())
	}

	return n.encode(imaging.Crop(img, rect), mimeHint)
}

func (n *Normalizer) decode(ctx context.Context, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("normalize: image data is empty")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("normalize: decode image: %w", err)
	}
	return img, nil
}

// encode writes img in the hinted format. When the webp encoder cannot be
// initialised the image falls back to JPEG and the reported MIME type says
// so, matching how browser canvases substitute a supported format.
func (n *Normalizer) encode(img image.Image, mimeHint string) (imagesource.EncodedImage, error) {
	var buf bytes.Buffer

	switch mimeHint {
	case imagesource.MIMEPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return imagesource.EncodedImage{}, fmt.Errorf("normalize: encode png: %w", err)
		}
		return imagesource.NewEncodedImage(buf.Bytes(), imagesource.MIMEPNG)

	case imagesource.MIMEWebP:
		if err := n.encodeWebP(&buf, img); err == nil {
			return imagesource.NewEncodedImage(buf.Bytes(), imagesource.MIMEWebP)
		}
		buf.Reset()
		fallthrough

	default:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.quality)); err != nil {
			return imagesource.EncodedImage{}, fmt.Errorf("normalize: encode jpeg: %w", err)
		}
		return imagesource.NewEncodedImage(buf.Bytes(), imagesource.MIMEJPEG)
	}
}

func (n *Normalizer) encodeWebP(buf *bytes.Buffer, img image.Image) error {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(n.quality))
	if err != nil {
		return fmt.Errorf("normalize: webp encoder options: %w", err)
	}
	if err := webp.Encode(buf, img, options); err != nil {
		return fmt.Errorf("normalize: encode webp: %w", err)
	}
	return nil
}
