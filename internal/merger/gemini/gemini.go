// Package gemini implements the merge.Merger contract on top of Google's
// generative image API. It ships the scene, product, and optional region as
// inline image parts with a placement prompt and returns the first image blob
// the model answers with.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/goliatone/go-scenemerge/pkg/imagesource"
	"github.com/goliatone/go-scenemerge/pkg/merge"
)

// DefaultModel is used when the configuration leaves the model blank.
const DefaultModel = "gemini-2.5-flash-image-preview"

// Name is the registry key for this merger.
const Name = "gemini"

// Config carries the provider credentials and model selection.
type Config struct {
	APIKey string
	Model  string
}

// Merger talks to the Gemini API.
type Merger struct {
	client *genai.Client
	model  string
}

// Ensure the implementation satisfies the public interface.
var _ merge.Merger = (*Merger)(nil)

// New constructs a Merger, validating the credentials up front.
func New(ctx context.Context, cfg Config) (*Merger, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Merger{client: client, model: model}, nil
}

// Name identifies the merger inside a registry.
func (m *Merger) Name() string {
	return Name
}

// Close releases the underlying API client.
func (m *Merger) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}

// Merge sends the request images and the placement prompt to the model and
// extracts the composite from the response.
func (m *Merger) Merge(ctx context.Context, req merge.Request) (imagesource.EncodedImage, error) {
	if err := req.Validate(); err != nil {
		return imagesource.EncodedImage{}, err
	}

	parts := []genai.Part{
		imagePart(req.Background),
		imagePart(req.Product),
	}
	if req.Region != nil {
		parts = append(parts, imagePart(*req.Region))
	}
	parts = append(parts, genai.Text(buildPrompt(req)))

	model := m.client.GenerativeModel(m.model)
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return imagesource.EncodedImage{}, fmt.Errorf("gemini: generate composite: %w", err)
	}

	blob, err := firstImageBlob(resp)
	if err != nil {
		return imagesource.EncodedImage{}, err
	}

	return imagesource.NewEncodedImage(blob.Data, imagesource.PreferredMIME(blob.MIMEType, merge.ResultMIME))
}

// imagePart wraps an EncodedImage as an inline blob. genai expects the MIME
// subtype, not the full tag.
func imagePart(img imagesource.EncodedImage) genai.Part {
	return genai.ImageData(mimeSubtype(img.MIMEType()), img.Payload())
}

func mimeSubtype(mimeType string) string {
	if idx := strings.IndexByte(mimeType, '/'); idx >= 0 {
		return mimeType[idx+1:]
	}
	return mimeType
}

// buildPrompt describes the composite task in the order the image parts were
// attached: scene first, product second, optional region third.
func buildPrompt(req merge.Request) string {
	var sb strings.Builder
	sb.WriteString("The first image is a location photo and the second image is a product photo. ")
	sb.WriteString("Create a single photorealistic image of the product placed naturally inside the location, ")
	sb.WriteString("matching the location's lighting, perspective, and scale.")
	if req.Region != nil {
		sb.WriteString(" The third image is the exact region of the location where the product must be placed.")
	}
	if instructions := strings.TrimSpace(req.Instructions); instructions != "" {
		sb.WriteString(" Additional guidance: ")
		sb.WriteString(instructions)
	}
	sb.WriteString(" Respond with the composite image only.")
	return sb.String()
}

// firstImageBlob walks the candidates for the first inline image. Text-only
// answers are treated as provider refusals and surfaced verbatim.
func firstImageBlob(resp *genai.GenerateContentResponse) (genai.Blob, error) {
	if resp == nil {
		return genai.Blob{}, errors.New("gemini: empty response")
	}

	var refusal string
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			switch value := part.(type) {
			case genai.Blob:
				if len(value.Data) > 0 {
					return value, nil
				}
			case genai.Text:
				if refusal == "" {
					refusal = strings.TrimSpace(string(value))
				}
			}
		}
	}

	if refusal != "" {
		return genai.Blob{}, fmt.Errorf("gemini: model returned no image: %s", refusal)
	}
	return genai.Blob{}, errors.New("gemini: model returned no image")
}
