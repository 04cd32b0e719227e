// Package scenemerge composites a product photo into a location photo via a
// remote generative-image provider. It exposes the resilient image fetcher,
// the merge orchestrator, and convenience wiring for common setups.
package scenemerge

import (
	"context"

	internalFetcher "github.com/goliatone/go-scenemerge/internal/imagesource/fetcher"
	"github.com/goliatone/go-scenemerge/internal/imagesource/normalize"
	"github.com/goliatone/go-scenemerge/pkg/imagesource"
	"github.com/goliatone/go-scenemerge/pkg/merge"
	"github.com/goliatone/go-scenemerge/pkg/orchestrator"
)

// EncodedImage is the normalized payload+MIME unit exchanged across the
// pipeline; aliased via the root package for convenience.
type EncodedImage = imagesource.EncodedImage

// Source identifies where an image originates (file, fs.FS, URL, bytes).
type Source = imagesource.Source

// ProxyEndpoint is a URL-prefix template for a fallback proxy.
type ProxyEndpoint = imagesource.ProxyEndpoint

// Request describes the inputs for one composite.
type Request = orchestrator.Request

// Result is the terminal outcome of a composite.
type Result = orchestrator.Result

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module so most callers need a single import.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// NewFetcher constructs the resilient image fetcher using the internal
// implementation while keeping the concrete type hidden from consumers. A
// missing normalizer is filled in with the built-in decode/re-encode surface.
func NewFetcher(options ...imagesource.FetcherOption) imagesource.Fetcher {
	cfg := imagesource.NewFetcherOptions(options...)
	if cfg.Normalizer == nil {
		cfg.Normalizer = normalize.New(cfg.Quality)
	}
	return internalFetcher.New(cfg)
}

// NewNormalizer constructs the built-in decode/re-encode implementation.
func NewNormalizer(quality int) imagesource.Normalizer {
	return normalize.New(quality)
}

// Compose fetches the scene and product, optionally extracts the annotated
// region, and merges them with the named provider. It is the simplest entry
// point for callers that just want a composite.
func Compose(ctx context.Context, req Request, options ...orchestrator.Option) (Result, error) {
	gen := orchestrator.New(options...)
	return gen.Compose(ctx, req)
}

// WithMergers registers merge providers that can be passed to Compose
// alongside other orchestrator options.
func WithMergers(mergers ...merge.Merger) orchestrator.Option {
	return orchestrator.WithMergers(mergers...)
}

// WithProxies configures the fallback proxy list used after a failed direct
// load.
func WithProxies(proxies ...imagesource.ProxyEndpoint) orchestrator.Option {
	return orchestrator.WithProxies(proxies...)
}
