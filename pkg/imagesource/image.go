package imagesource

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
)

// MIME types produced by the normalization step.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"
)

// EncodedImage is the normalized unit passed between conversion steps and the
// external merge API: an opaque payload plus the MIME type tag identifying its
// format. Immutable once constructed.
type EncodedImage struct {
	payload  []byte
	mimeType string
}

// NewEncodedImage constructs an EncodedImage while validating the inputs. The
// payload is cloned so later mutation of the argument cannot leak in.
func NewEncodedImage(payload []byte, mimeType string) (EncodedImage, error) {
	if len(payload) == 0 {
		return EncodedImage{}, errors.New("imagesource: image payload is empty")
	}
	if mimeType == "" {
		return EncodedImage{}, errors.New("imagesource: mime type is required")
	}

	clone := append([]byte(nil), payload...)
	return EncodedImage{payload: clone, mimeType: mimeType}, nil
}

// MustNewEncodedImage panics if the image cannot be created. Useful for tests.
func MustNewEncodedImage(payload []byte, mimeType string) EncodedImage {
	img, err := NewEncodedImage(payload, mimeType)
	if err != nil {
		panic(err)
	}
	return img
}

// Payload returns the encoded bytes.
func (e EncodedImage) Payload() []byte {
	return e.payload
}

// MIMEType returns the format tag, e.g. "image/png".
func (e EncodedImage) MIMEType() string {
	return e.mimeType
}

// IsZero reports whether the image carries no payload.
func (e EncodedImage) IsZero() bool {
	return len(e.payload) == 0
}

// DataURL renders the image as a data: URL suitable for inlining into HTML.
func (e EncodedImage) DataURL() string {
	if e.IsZero() {
		return ""
	}
	return "data:" + e.mimeType + ";base64," + base64.StdEncoding.EncodeToString(e.payload)
}

// FromFile reads a local file and wraps it with the declared MIME type. When
// declaredMIME is empty the type is inferred from the file extension. Read
// failures are terminal; there is no alternate source for a local file.
func FromFile(filePath, declaredMIME string) (EncodedImage, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("imagesource: read file %q: %w", filePath, err)
	}
	mimeType := declaredMIME
	if mimeType == "" {
		mimeType = InferMIMEType(filePath)
	}
	return NewEncodedImage(data, mimeType)
}

// FromReader drains the reader and wraps the bytes with the declared MIME
// type. Read failures are terminal.
func FromReader(r io.Reader, declaredMIME string) (EncodedImage, error) {
	if r == nil {
		return EncodedImage{}, errors.New("imagesource: reader is nil")
	}
	if declaredMIME == "" {
		return EncodedImage{}, errors.New("imagesource: declared mime type is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("imagesource: read payload: %w", err)
	}
	return NewEncodedImage(data, declaredMIME)
}

// FromDataURL parses a data: URL, taking the MIME type from the header and
// the payload from the substring following the comma separator. Base64 and
// percent-encoded bodies are both accepted.
func FromDataURL(raw string) (EncodedImage, error) {
	const prefix = "data:"
	if !strings.HasPrefix(raw, prefix) {
		return EncodedImage{}, errors.New("imagesource: not a data URL")
	}

	rest := raw[len(prefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return EncodedImage{}, errors.New("imagesource: data URL is missing the comma separator")
	}

	header := rest[:comma]
	body := rest[comma+1:]

	mimeType := header
	base64Encoded := false
	if idx := strings.IndexByte(header, ';'); idx >= 0 {
		mimeType = header[:idx]
		base64Encoded = strings.Contains(header[idx:], "base64")
	}
	if mimeType == "" {
		mimeType = "text/plain"
	}

	var payload []byte
	if base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return EncodedImage{}, fmt.Errorf("imagesource: decode data URL payload: %w", err)
		}
		payload = decoded
	} else {
		unescaped, err := url.PathUnescape(body)
		if err != nil {
			return EncodedImage{}, fmt.Errorf("imagesource: unescape data URL payload: %w", err)
		}
		payload = []byte(unescaped)
	}

	return NewEncodedImage(payload, mimeType)
}

// InferMIMEType maps a URL or file path to the MIME type used as the encoding
// hint: .png and .webp map to their formats, everything else falls back to
// JPEG.
func InferMIMEType(location string) string {
	trimmed := location
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	switch strings.ToLower(path.Ext(trimmed)) {
	case ".png":
		return MIMEPNG
	case ".webp":
		return MIMEWebP
	default:
		return MIMEJPEG
	}
}

// PreferredMIME chooses between the type the encoder reported it actually
// produced and the type inferred from the location. The reported type wins
// unless it is empty or generic.
func PreferredMIME(reported, inferred string) string {
	switch reported {
	case "", "application/octet-stream", "binary/octet-stream":
		return inferred
	default:
		return reported
	}
}
