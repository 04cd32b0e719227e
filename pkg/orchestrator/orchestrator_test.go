package orchestrator

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-scenemerge/pkg/imagesource"
	"github.com/goliatone/go-scenemerge/pkg/merge"
)

type fakeFetcher struct {
	images map[string]imagesource.EncodedImage
	err    error
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, src imagesource.Source) (imagesource.EncodedImage, error) {
	f.calls = append(f.calls, src.Location())
	if f.err != nil {
		return imagesource.EncodedImage{}, f.err
	}
	img, ok := f.images[src.Location()]
	if !ok {
		return imagesource.EncodedImage{}, errors.New("fake: unknown source")
	}
	return img, nil
}

type fakeNormalizer struct {
	region imagesource.EncodedImage
	err    error
	rects  []image.Rectangle
}

func (n *fakeNormalizer) Normalize(_ context.Context, data []byte, mimeHint string) (imagesource.EncodedImage, error) {
	return imagesource.NewEncodedImage(data, mimeHint)
}

func (n *fakeNormalizer) ExtractRegion(_ context.Context, _ []byte, rect image.Rectangle, _ string) (imagesource.EncodedImage, error) {
	n.rects = append(n.rects, rect)
	if n.err != nil {
		return imagesource.EncodedImage{}, n.err
	}
	return n.region, nil
}

type fakeMerger struct {
	name   string
	result imagesource.EncodedImage
	err    error
	reqs   []merge.Request
}

func (m *fakeMerger) Name() string {
	return m.name
}

func (m *fakeMerger) Merge(_ context.Context, req merge.Request) (imagesource.EncodedImage, error) {
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return imagesource.EncodedImage{}, m.err
	}
	return m.result, nil
}

func mustImage(t *testing.T, payload, mime string) imagesource.EncodedImage {
	t.Helper()
	img, err := imagesource.NewEncodedImage([]byte(payload), mime)
	if err != nil {
		t.Fatalf("new encoded image: %v", err)
	}
	return img
}

func TestCompose_Success(t *testing.T) {
	scene := mustImage(t, "scene", imagesource.MIMEJPEG)
	product := mustImage(t, "product", imagesource.MIMEPNG)
	composite := mustImage(t, "composite", imagesource.MIMEPNG)

	fetch := &fakeFetcher{images: map[string]imagesource.EncodedImage{
		"https://example.com/scene.jpg":   scene,
		"https://example.com/product.png": product,
	}}
	merger := &fakeMerger{name: "fake", result: composite}

	var statuses []merge.Status
	sut := New(
		WithFetcher(fetch),
		WithMergers(merger),
		WithStatusCallback(func(s merge.Status) { statuses = append(statuses, s) }),
	)

	result, err := sut.Compose(context.Background(), Request{
		Scene:        imagesource.SourceFromURL("https://example.com/scene.jpg"),
		Product:      imagesource.SourceFromURL("https://example.com/product.png"),
		Instructions: "on the table",
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if result.Status != merge.StatusSuccess {
		t.Fatalf("status = %s", result.Status)
	}
	if string(result.Composite.Payload()) != "composite" {
		t.Fatalf("composite payload = %q", result.Composite.Payload())
	}

	if diff := cmp.Diff([]merge.Status{merge.StatusLoading, merge.StatusSuccess}, statuses); diff != "" {
		t.Fatalf("status sequence mismatch (-want +got):\n%s", diff)
	}

	if len(merger.reqs) != 1 {
		t.Fatalf("merger called %d times", len(merger.reqs))
	}
	req := merger.reqs[0]
	if string(req.Background.Payload()) != "scene" || string(req.Product.Payload()) != "product" {
		t.Fatalf("merge request carries wrong images")
	}
	if req.Region != nil {
		t.Fatalf("unexpected region in merge request")
	}
	if req.Instructions != "on the table" {
		t.Fatalf("instructions = %q", req.Instructions)
	}
}

func TestCompose_PreloadedImagesBypassFetcher(t *testing.T) {
	scene := mustImage(t, "scene", imagesource.MIMEJPEG)
	product := mustImage(t, "product", imagesource.MIMEPNG)

	fetch := &fakeFetcher{}
	merger := &fakeMerger{name: "fake", result: mustImage(t, "composite", imagesource.MIMEPNG)}
	sut := New(WithFetcher(fetch), WithMergers(merger))

	if _, err := sut.Compose(context.Background(), Request{
		SceneImage:   &scene,
		ProductImage: &product,
	}); err != nil {
		t.Fatalf("compose: %v", err)
	}

	if len(fetch.calls) != 0 {
		t.Fatalf("fetcher should not run for preloaded images, got %v", fetch.calls)
	}
}

func TestCompose_RegionExtraction(t *testing.T) {
	scene := mustImage(t, "scene", imagesource.MIMEJPEG)
	product := mustImage(t, "product", imagesource.MIMEPNG)
	region := mustImage(t, "region", imagesource.MIMEJPEG)

	normalizer := &fakeNormalizer{region: region}
	merger := &fakeMerger{name: "fake", result: mustImage(t, "composite", imagesource.MIMEPNG)}
	sut := New(
		WithFetcher(&fakeFetcher{}),
		WithNormalizer(normalizer),
		WithMergers(merger),
	)

	rect := image.Rect(10, 10, 50, 40)
	if _, err := sut.Compose(context.Background(), Request{
		SceneImage:   &scene,
		ProductImage: &product,
		Region:       &rect,
	}); err != nil {
		t.Fatalf("compose: %v", err)
	}

	if diff := cmp.Diff([]image.Rectangle{rect}, normalizer.rects); diff != "" {
		t.Fatalf("extraction rect mismatch (-want +got):\n%s", diff)
	}
	if req := merger.reqs[0]; req.Region == nil || string(req.Region.Payload()) != "region" {
		t.Fatalf("merge request missing extracted region")
	}
}

func TestCompose_RegionFailureIsTerminal(t *testing.T) {
	scene := mustImage(t, "scene", imagesource.MIMEJPEG)
	product := mustImage(t, "product", imagesource.MIMEPNG)

	merger := &fakeMerger{name: "fake"}
	sut := New(
		WithFetcher(&fakeFetcher{}),
		WithNormalizer(&fakeNormalizer{err: errors.New("bad crop")}),
		WithMergers(merger),
	)

	rect := image.Rect(0, 0, 10, 10)
	result, err := sut.Compose(context.Background(), Request{
		SceneImage:   &scene,
		ProductImage: &product,
		Region:       &rect,
	})
	if err == nil {
		t.Fatalf("expected region failure")
	}
	if result.Status != merge.StatusError {
		t.Fatalf("status = %s", result.Status)
	}
	if len(merger.reqs) != 0 {
		t.Fatalf("merger must not run after region failure")
	}
}

func TestCompose_FetchFailure(t *testing.T) {
	var statuses []merge.Status
	sut := New(
		WithFetcher(&fakeFetcher{err: errors.New("network down")}),
		WithMergers(&fakeMerger{name: "fake"}),
		WithStatusCallback(func(s merge.Status) { statuses = append(statuses, s) }),
	)

	result, err := sut.Compose(context.Background(), Request{
		Scene:   imagesource.SourceFromURL("https://example.com/scene.jpg"),
		Product: imagesource.SourceFromURL("https://example.com/product.png"),
	})
	if err == nil {
		t.Fatalf("expected fetch failure")
	}
	if result.Status != merge.StatusError {
		t.Fatalf("status = %s", result.Status)
	}

	if diff := cmp.Diff([]merge.Status{merge.StatusLoading, merge.StatusError}, statuses); diff != "" {
		t.Fatalf("status sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_MergeFailure(t *testing.T) {
	scene := mustImage(t, "scene", imagesource.MIMEJPEG)
	product := mustImage(t, "product", imagesource.MIMEPNG)

	sut := New(
		WithFetcher(&fakeFetcher{}),
		WithMergers(&fakeMerger{name: "fake", err: errors.New("provider rejected the request")}),
	)

	result, err := sut.Compose(context.Background(), Request{
		SceneImage:   &scene,
		ProductImage: &product,
	})
	if err == nil {
		t.Fatalf("expected merge failure")
	}
	if result.Status != merge.StatusError {
		t.Fatalf("status = %s", result.Status)
	}
	if !strings.Contains(err.Error(), "provider rejected") {
		t.Fatalf("error should wrap the provider failure, got %v", err)
	}
}

func TestCompose_SanitizesInstructions(t *testing.T) {
	scene := mustImage(t, "scene", imagesource.MIMEJPEG)
	product := mustImage(t, "product", imagesource.MIMEPNG)

	merger := &fakeMerger{name: "fake", result: mustImage(t, "composite", imagesource.MIMEPNG)}
	sut := New(WithFetcher(&fakeFetcher{}), WithMergers(merger))

	if _, err := sut.Compose(context.Background(), Request{
		SceneImage:   &scene,
		ProductImage: &product,
		Instructions: "  <b>center</b> the product ",
	}); err != nil {
		t.Fatalf("compose: %v", err)
	}

	if got := merger.reqs[0].Instructions; got != "center the product" {
		t.Fatalf("instructions = %q, want sanitized text", got)
	}
}

func TestCompose_MergerSelection(t *testing.T) {
	scene := mustImage(t, "scene", imagesource.MIMEJPEG)
	product := mustImage(t, "product", imagesource.MIMEPNG)
	composite := mustImage(t, "composite", imagesource.MIMEPNG)

	run := func(t *testing.T, sut *Orchestrator, req Request) {
		t.Helper()
		if _, err := sut.Compose(context.Background(), req); err != nil {
			t.Fatalf("compose: %v", err)
		}
	}
	base := Request{SceneImage: &scene, ProductImage: &product}

	t.Run("named merger wins", func(t *testing.T) {
		alpha := &fakeMerger{name: "alpha", result: composite}
		beta := &fakeMerger{name: "beta", result: composite}
		sut := New(WithFetcher(&fakeFetcher{}), WithMergers(alpha, beta), WithDefaultMerger("alpha"))

		req := base
		req.Merger = "beta"
		run(t, sut, req)

		if len(beta.reqs) != 1 || len(alpha.reqs) != 0 {
			t.Fatalf("expected beta to handle the request")
		}
	})

	t.Run("default merger when unnamed", func(t *testing.T) {
		alpha := &fakeMerger{name: "alpha", result: composite}
		beta := &fakeMerger{name: "beta", result: composite}
		sut := New(WithFetcher(&fakeFetcher{}), WithMergers(alpha, beta), WithDefaultMerger("beta"))

		run(t, sut, base)

		if len(beta.reqs) != 1 || len(alpha.reqs) != 0 {
			t.Fatalf("expected the default merger to handle the request")
		}
	})

	t.Run("first registered as last resort", func(t *testing.T) {
		alpha := &fakeMerger{name: "alpha", result: composite}
		beta := &fakeMerger{name: "beta", result: composite}
		sut := New(WithFetcher(&fakeFetcher{}), WithMergers(beta, alpha))

		run(t, sut, base)

		if len(alpha.reqs) != 1 {
			t.Fatalf("expected the first listed name to handle the request")
		}
	})

	t.Run("unknown named merger fails", func(t *testing.T) {
		sut := New(WithFetcher(&fakeFetcher{}), WithMergers(&fakeMerger{name: "alpha", result: composite}))

		req := base
		req.Merger = "missing"
		if _, err := sut.Compose(context.Background(), req); err == nil {
			t.Fatalf("expected unknown merger error")
		}
	})

	t.Run("no mergers registered", func(t *testing.T) {
		sut := New(WithFetcher(&fakeFetcher{}))
		if _, err := sut.Compose(context.Background(), base); err == nil {
			t.Fatalf("expected error with empty registry")
		}
	})
}

func TestCompose_DuplicateMergerSurfacesOnCompose(t *testing.T) {
	scene := mustImage(t, "scene", imagesource.MIMEJPEG)
	product := mustImage(t, "product", imagesource.MIMEPNG)

	sut := New(
		WithFetcher(&fakeFetcher{}),
		WithMergers(&fakeMerger{name: "dupe"}, &fakeMerger{name: "dupe"}),
	)

	if _, err := sut.Compose(context.Background(), Request{SceneImage: &scene, ProductImage: &product}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestCompose_MissingInputs(t *testing.T) {
	product := mustImage(t, "product", imagesource.MIMEPNG)
	sut := New(WithFetcher(&fakeFetcher{}), WithMergers(&fakeMerger{name: "fake"}))

	if _, err := sut.Compose(context.Background(), Request{ProductImage: &product}); err == nil {
		t.Fatalf("expected error for missing scene")
	}
	if _, err := sut.Compose(context.Background(), Request{SceneImage: &product}); err == nil {
		t.Fatalf("expected error for missing product")
	}
}

func TestCompose_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sut := New(WithFetcher(&fakeFetcher{}), WithMergers(&fakeMerger{name: "fake"}))
	if _, err := sut.Compose(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
