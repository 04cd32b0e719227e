// Package merge defines the contract for the external generative-image
// collaborator that composites a product image into a scene, plus the
// registry and status plumbing the orchestrator builds on.
package merge

import (
	"context"
	"errors"

	"github.com/goliatone/go-scenemerge/pkg/imagesource"
)

// Request carries the normalized inputs for one composite: the background
// scene and the product are required, the annotated region of the scene is
// optional, and Instructions is free-form placement guidance.
type Request struct {
	Background   imagesource.EncodedImage
	Product      imagesource.EncodedImage
	Region       *imagesource.EncodedImage
	Instructions string
}

// Validate reports whether the request carries the required images.
func (r Request) Validate() error {
	if r.Background.IsZero() {
		return errors.New("merge: background image is required")
	}
	if r.Product.IsZero() {
		return errors.New("merge: product image is required")
	}
	if r.Region != nil && r.Region.IsZero() {
		return errors.New("merge: region image is empty")
	}
	return nil
}

// Merger is the opaque external collaborator: it accepts the request's
// payloads and MIME types and returns a single encoded composite, or fails
// with a descriptive error. Implementations live under internal/merger.
type Merger interface {
	// Name identifies the merger inside a Registry.
	Name() string

	Merge(ctx context.Context, req Request) (imagesource.EncodedImage, error)
}

// ResultMIME is assumed for provider responses that omit a MIME type.
const ResultMIME = imagesource.MIMEPNG
