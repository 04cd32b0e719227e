package gemini

import (
	"context"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/goliatone/go-scenemerge/pkg/imagesource"
	"github.com/goliatone/go-scenemerge/pkg/merge"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestMimeSubtype(t *testing.T) {
	cases := map[string]string{
		"image/png":  "png",
		"image/jpeg": "jpeg",
		"image/webp": "webp",
		"png":        "png",
		"":           "",
	}
	for in, want := range cases {
		if got := mimeSubtype(in); got != want {
			t.Fatalf("mimeSubtype(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	background := imagesource.MustNewEncodedImage([]byte("bg"), imagesource.MIMEJPEG)
	product := imagesource.MustNewEncodedImage([]byte("p"), imagesource.MIMEPNG)
	region := imagesource.MustNewEncodedImage([]byte("r"), imagesource.MIMEJPEG)

	t.Run("base", func(t *testing.T) {
		prompt := buildPrompt(merge.Request{Background: background, Product: product})
		if !strings.Contains(prompt, "first image is a location photo") {
			t.Fatalf("prompt missing scene framing: %q", prompt)
		}
		if strings.Contains(prompt, "third image") {
			t.Fatalf("prompt mentions a region that was not supplied: %q", prompt)
		}
	})

	t.Run("with region", func(t *testing.T) {
		prompt := buildPrompt(merge.Request{Background: background, Product: product, Region: &region})
		if !strings.Contains(prompt, "third image is the exact region") {
			t.Fatalf("prompt missing region sentence: %q", prompt)
		}
	})

	t.Run("with instructions", func(t *testing.T) {
		prompt := buildPrompt(merge.Request{
			Background:   background,
			Product:      product,
			Instructions: "slightly left of center",
		})
		if !strings.Contains(prompt, "Additional guidance: slightly left of center") {
			t.Fatalf("prompt missing guidance: %q", prompt)
		}
	})

	t.Run("blank instructions omitted", func(t *testing.T) {
		prompt := buildPrompt(merge.Request{Background: background, Product: product, Instructions: "   "})
		if strings.Contains(prompt, "Additional guidance") {
			t.Fatalf("prompt should omit blank guidance: %q", prompt)
		}
	})
}

func TestFirstImageBlob(t *testing.T) {
	blob := genai.Blob{MIMEType: "image/png", Data: []byte("composite")}

	t.Run("blob found", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{
					genai.Text("here you go"),
					blob,
				}},
			}},
		}
		got, err := firstImageBlob(resp)
		if err != nil {
			t.Fatalf("first image blob: %v", err)
		}
		if string(got.Data) != "composite" {
			t.Fatalf("data = %q", got.Data)
		}
	})

	t.Run("empty blobs skipped", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}},
				{Content: &genai.Content{Parts: []genai.Part{blob}}},
			},
		}
		got, err := firstImageBlob(resp)
		if err != nil {
			t.Fatalf("first image blob: %v", err)
		}
		if string(got.Data) != "composite" {
			t.Fatalf("data = %q", got.Data)
		}
	})

	t.Run("text refusal surfaced", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{
					genai.Text("I cannot composite that image."),
				}},
			}},
		}
		_, err := firstImageBlob(resp)
		if err == nil || !strings.Contains(err.Error(), "I cannot composite that image.") {
			t.Fatalf("expected refusal text in error, got %v", err)
		}
	})

	t.Run("nil response", func(t *testing.T) {
		if _, err := firstImageBlob(nil); err == nil {
			t.Fatalf("expected error for nil response")
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		if _, err := firstImageBlob(&genai.GenerateContentResponse{}); err == nil {
			t.Fatalf("expected error for empty response")
		}
	})

	t.Run("nil candidate content", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{nil, {Content: nil}}}
		if _, err := firstImageBlob(resp); err == nil {
			t.Fatalf("expected error when candidates carry no content")
		}
	})
}

func TestClose_NilClient(t *testing.T) {
	var m Merger
	if err := m.Close(); err != nil {
		t.Fatalf("close without client: %v", err)
	}
}
