package imagesource

import (
	"context"
	"image"
	"io/fs"
	"log"
	"net/http"
	"time"
)

// Default knobs applied when options leave them unset.
const (
	// DefaultQuality is the re-encode quality used by the normalization step.
	DefaultQuality = 92

	// DefaultAttemptTimeout bounds a single load attempt. The browser original
	// left attempts unbounded; a hung request would stall the whole fallback
	// sequence, so the Go implementation caps each attempt by default.
	DefaultAttemptTimeout = 30 * time.Second
)

// Fetcher produces a normalized EncodedImage from a Source, tolerating that
// remote URLs may be unreachable directly: a failed direct load is retried
// once per configured proxy, in order, until one succeeds or all fail.
// Implementations live under internal/imagesource but satisfy this contract.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) (EncodedImage, error)
}

// Normalizer is the decode/re-encode surface every fetched payload passes
// through: decode the bytes, re-draw them, re-encode at the configured quality
// using the MIME hint, and report the type actually produced.
type Normalizer interface {
	Normalize(ctx context.Context, data []byte, mimeHint string) (EncodedImage, error)

	// ExtractRegion crops a rectangle out of the decoded image and re-encodes
	// it. Used to build the annotated-region image handed to the merge API.
	ExtractRegion(ctx context.Context, data []byte, rect image.Rectangle, mimeHint string) (EncodedImage, error)
}

// FetcherOptions configures how a Fetcher resolves sources.
type FetcherOptions struct {
	// HTTPClient allows callers to inject custom HTTP behaviour. Nil means a
	// default client is constructed.
	HTTPClient *http.Client

	// FileSystem enables loading from an abstract filesystem; defaults to the
	// operating system if nil.
	FileSystem fs.FS

	// Proxies is the ordered fallback list used after a failed direct load.
	// Nil means the built-in DefaultProxyList; an explicit empty list disables
	// proxy fallback entirely.
	Proxies ProxyList

	// ProxiesSet records whether Proxies was configured explicitly so the
	// empty list can be distinguished from "use the defaults".
	ProxiesSet bool

	// AttemptTimeout caps a single load attempt. Zero falls back to
	// DefaultAttemptTimeout; negative disables the bound.
	AttemptTimeout time.Duration

	// Quality is the re-encode quality in the 1-100 range. Zero falls back to
	// DefaultQuality.
	Quality int

	// Normalizer overrides the decode/re-encode implementation. Nil leaves
	// selection to the constructor.
	Normalizer Normalizer

	// Logger receives per-attempt failures, which are recoverable and logged
	// only. Nil keeps the fetcher silent.
	Logger *log.Logger
}

// FetcherOption mutates FetcherOptions prior to construction.
type FetcherOption func(*FetcherOptions)

// WithHTTPClient injects a custom HTTP client for remote images.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(opts *FetcherOptions) {
		opts.HTTPClient = client
	}
}

// WithFileSystem injects an fs.FS implementation for fs sources.
func WithFileSystem(files fs.FS) FetcherOption {
	return func(opts *FetcherOptions) {
		opts.FileSystem = files
	}
}

// WithProxies replaces the fallback proxy list. Passing an empty list turns
// proxy fallback off.
func WithProxies(proxies ...ProxyEndpoint) FetcherOption {
	return func(opts *FetcherOptions) {
		opts.Proxies = ProxyList(proxies).Clone()
		opts.ProxiesSet = true
	}
}

// WithAttemptTimeout caps each load attempt. Negative values disable the
// bound, restoring the original unbounded behaviour.
func WithAttemptTimeout(timeout time.Duration) FetcherOption {
	return func(opts *FetcherOptions) {
		opts.AttemptTimeout = timeout
	}
}

// WithQuality overrides the re-encode quality used during normalization.
func WithQuality(quality int) FetcherOption {
	return func(opts *FetcherOptions) {
		opts.Quality = quality
	}
}

// WithNormalizer injects a custom normalization implementation.
func WithNormalizer(n Normalizer) FetcherOption {
	return func(opts *FetcherOptions) {
		opts.Normalizer = n
	}
}

// WithLogger directs recoverable per-attempt failures to the given logger.
func WithLogger(logger *log.Logger) FetcherOption {
	return func(opts *FetcherOptions) {
		opts.Logger = logger
	}
}

// NewFetcherOptions applies a set of FetcherOption values and returns the
// resulting configuration. Implementations can embed this helper to stay
// consistent.
func NewFetcherOptions(options ...FetcherOption) FetcherOptions {
	cfg := FetcherOptions{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return cfg
}

// Construction helpers live in the top-level scenemerge package to prevent import cycles.
