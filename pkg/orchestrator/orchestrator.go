// Package orchestrator coordinates the full pipeline from image sources to a
// rendered composite: fetch the scene and product, optionally extract the
// annotated region, then delegate to the configured merge provider.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	internalFetcher "github.com/goliatone/go-scenemerge/internal/imagesource/fetcher"
	"github.com/goliatone/go-scenemerge/internal/imagesource/normalize"
	"github.com/goliatone/go-scenemerge/pkg/imagesource"
	"github.com/goliatone/go-scenemerge/pkg/merge"
)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithFetcher injects a custom image fetcher.
func WithFetcher(fetcher imagesource.Fetcher) Option {
	return func(o *Orchestrator) {
		o.fetcher = fetcher
	}
}

// WithNormalizer injects the decode/re-encode implementation used both by the
// default fetcher and for region extraction.
func WithNormalizer(normalizer imagesource.Normalizer) Option {
	return func(o *Orchestrator) {
		o.normalizer = normalizer
	}
}

// WithRegistry injects a merger registry.
func WithRegistry(registry *merge.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithMergers registers mergers on the orchestrator's registry. Registration
// failures surface on the first Compose call.
func WithMergers(mergers ...merge.Merger) Option {
	return func(o *Orchestrator) {
		o.pendingMergers = append(o.pendingMergers, mergers...)
	}
}

// WithDefaultMerger overrides the merger used when a request omits an
// explicit Merger field.
func WithDefaultMerger(name string) Option {
	return func(o *Orchestrator) {
		o.defaultMerger = name
	}
}

// WithProxies configures the fallback proxy list of the default fetcher.
func WithProxies(proxies ...imagesource.ProxyEndpoint) Option {
	return func(o *Orchestrator) {
		o.fetcherOptions = append(o.fetcherOptions, imagesource.WithProxies(proxies...))
	}
}

// WithQuality sets the re-encode quality used during normalization.
func WithQuality(quality int) Option {
	return func(o *Orchestrator) {
		o.quality = quality
	}
}

// WithFetcherOptions forwards additional options to the default fetcher.
func WithFetcherOptions(options ...imagesource.FetcherOption) Option {
	return func(o *Orchestrator) {
		o.fetcherOptions = append(o.fetcherOptions, options...)
	}
}

// WithLogger directs pipeline logging to the given logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithStatusCallback registers an observer invoked on every status change of
// a Compose call.
func WithStatusCallback(fn func(merge.Status)) Option {
	return func(o *Orchestrator) {
		o.statusFn = fn
	}
}

// Orchestrator coordinates fetch, normalization, and merge. It applies
// sensible defaults (built-in fetcher and normalizer, empty registry) while
// remaining open to dependency injection for advanced callers.
type Orchestrator struct {
	fetcher        imagesource.Fetcher
	normalizer     imagesource.Normalizer
	registry       *merge.Registry
	defaultMerger  string
	pendingMergers []merge.Merger
	fetcherOptions []imagesource.FetcherOption
	quality        int
	logger         *log.Logger
	statusFn       func(merge.Status)

	initialiseErr   error
	defaultsApplied bool
}

// New constructs an Orchestrator applying any provided options. Missing
// dependencies are initialised with the built-in implementations so callers
// can start with a single constructor call.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

// Request describes the inputs required to produce one composite.
type Request struct {
	// Scene identifies where the background image lives. Optional when
	// SceneImage is supplied.
	Scene imagesource.Source

	// SceneImage allows callers to bypass the fetcher when they already hold
	// the encoded background.
	SceneImage *imagesource.EncodedImage

	// Product identifies the product image. Optional when ProductImage is
	// supplied.
	Product imagesource.Source

	// ProductImage bypasses the fetcher for the product.
	ProductImage *imagesource.EncodedImage

	// Region optionally marks the sub-rectangle of the scene where the
	// product belongs. It is cropped out of the fetched scene and attached to
	// the merge request.
	Region *image.Rectangle

	// Instructions is free-form placement guidance. It is sanitized before
	// leaving the pipeline.
	Instructions string

	// Merger names the merge provider to use. If empty, the orchestrator
	// falls back to the configured default merger.
	Merger string
}

// Result is the terminal outcome of a Compose call.
type Result struct {
	Composite imagesource.EncodedImage
	Status    merge.Status
}

// Compose executes the fetch, region extraction, and merge sequence. Exactly
// one terminal outcome is produced per call: a composite with StatusSuccess,
// or an error with StatusError.
func (o *Orchestrator) Compose(ctx context.Context, req Request) (Result, error) {
	if ctx == nil {
		return Result{Status: merge.StatusError}, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return Result{Status: merge.StatusError}, err
	}
	if err := o.initialiseErr; err != nil {
		return Result{Status: merge.StatusError}, err
	}
	if !o.defaultsApplied {
		o.applyDefaults()
		if err := o.initialiseErr; err != nil {
			return Result{Status: merge.StatusError}, err
		}
	}

	var tracker merge.Tracker
	fail := func(err error) (Result, error) {
		_ = tracker.Transition(merge.StatusError)
		o.notify(tracker.Current())
		return Result{Status: merge.StatusError}, err
	}

	if err := tracker.Transition(merge.StatusLoading); err != nil {
		return Result{Status: merge.StatusError}, err
	}
	o.notify(tracker.Current())

	scene, err := o.resolveImage(ctx, req.Scene, req.SceneImage, "scene")
	if err != nil {
		return fail(err)
	}

	product, err := o.resolveImage(ctx, req.Product, req.ProductImage, "product")
	if err != nil {
		return fail(err)
	}

	var region *imagesource.EncodedImage
	if req.Region != nil {
		cropped, err := o.extractRegion(ctx, scene, *req.Region)
		if err != nil {
			return fail(err)
		}
		region = &cropped
	}

	merger, err := o.mergerFor(req.Merger)
	if err != nil {
		return fail(err)
	}

	composite, err := merger.Merge(ctx, merge.Request{
		Background:   scene,
		Product:      product,
		Region:       region,
		Instructions: merge.SanitizeInstructions(req.Instructions),
	})
	if err != nil {
		return fail(fmt.Errorf("orchestrator: merge composite: %w", err))
	}

	if err := tracker.Transition(merge.StatusSuccess); err != nil {
		return Result{Status: merge.StatusError}, err
	}
	o.notify(tracker.Current())

	return Result{Composite: composite, Status: merge.StatusSuccess}, nil
}

func (o *Orchestrator) resolveImage(ctx context.Context, src imagesource.Source, preloaded *imagesource.EncodedImage, role string) (imagesource.EncodedImage, error) {
	if preloaded != nil {
		if preloaded.IsZero() {
			return imagesource.EncodedImage{}, fmt.Errorf("orchestrator: %s image is empty", role)
		}
		return *preloaded, nil
	}
	if src == nil {
		return imagesource.EncodedImage{}, fmt.Errorf("orchestrator: %s source or image is required", role)
	}

	img, err := o.fetcher.Fetch(ctx, src)
	if err != nil {
		return imagesource.EncodedImage{}, fmt.Errorf("orchestrator: load %s image: %w", role, err)
	}
	return img, nil
}

func (o *Orchestrator) extractRegion(ctx context.Context, scene imagesource.EncodedImage, rect image.Rectangle) (imagesource.EncodedImage, error) {
	if o.normalizer == nil {
		return imagesource.EncodedImage{}, imagesource.ErrNormalizerUnavailable
	}

	region, err := o.normalizer.ExtractRegion(ctx, scene.Payload(), rect, scene.MIMEType())
	if err != nil {
		return imagesource.EncodedImage{}, fmt.Errorf("orchestrator: extract region: %w", err)
	}
	return region, nil
}

func (o *Orchestrator) mergerFor(name string) (merge.Merger, error) {
	if o.registry == nil {
		return nil, errors.New("orchestrator: merger registry is nil")
	}

	target := name
	if target == "" {
		target = o.defaultMerger
	}

	if target != "" {
		merger, err := o.registry.Get(target)
		if err == nil {
			return merger, nil
		}
		if name != "" {
			return nil, fmt.Errorf("orchestrator: merger %q: %w", name, err)
		}
	}

	names := o.registry.List()
	if len(names) == 0 {
		return nil, errors.New("orchestrator: no mergers registered")
	}

	merger, err := o.registry.Get(names[0])
	if err != nil {
		return nil, fmt.Errorf("orchestrator: merger %q: %w", names[0], err)
	}
	return merger, nil
}

func (o *Orchestrator) notify(status merge.Status) {
	if o.statusFn != nil {
		o.statusFn(status)
	}
}

func (o *Orchestrator) applyDefaults() {
	defer func() {
		o.defaultsApplied = true
	}()

	if o.normalizer == nil {
		o.normalizer = normalize.New(o.quality)
	}

	if o.fetcher == nil {
		options := append([]imagesource.FetcherOption{
			imagesource.WithNormalizer(o.normalizer),
			imagesource.WithQuality(o.quality),
		}, o.fetcherOptions...)
		if o.logger != nil {
			options = append(options, imagesource.WithLogger(o.logger))
		}
		o.fetcher = internalFetcher.New(imagesource.NewFetcherOptions(options...))
	}

	if o.registry == nil {
		o.registry = merge.NewRegistry()
	}

	for _, merger := range o.pendingMergers {
		if err := o.registry.Register(merger); err != nil {
			o.initialiseErr = err
			return
		}
	}
	o.pendingMergers = nil
}
