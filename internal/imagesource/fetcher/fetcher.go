package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goliatone/go-scenemerge/pkg/imagesource"
)

// Fetcher implements imagesource.Fetcher by delegating to file, fs.FS, bytes,
// or HTTP strategies. Remote loads walk the direct-then-proxied fallback
// sequence; local loads are single attempts with no fallback.
type Fetcher struct {
	http       *http.Client
	fs         fs.FS
	proxies    imagesource.ProxyList
	timeout    time.Duration
	normalizer imagesource.Normalizer
	logger     *log.Logger
}

// Ensure the implementation satisfies the public interface.
var _ imagesource.Fetcher = (*Fetcher)(nil)

// New constructs a Fetcher from pre-resolved options. The normalizer is taken
// as-is: leaving it nil makes every Fetch fail fast with
// imagesource.ErrNormalizerUnavailable, mirroring a missing drawing surface.
func New(options imagesource.FetcherOptions) *Fetcher {
	client := options.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	proxies := options.Proxies.Clone()
	if proxies == nil && !options.ProxiesSet {
		proxies = imagesource.DefaultProxyList()
	}

	timeout := options.AttemptTimeout
	switch {
	case timeout == 0:
		timeout = imagesource.DefaultAttemptTimeout
	case timeout < 0:
		timeout = 0
	}

	return &Fetcher{
		http:       client,
		fs:         options.FileSystem,
		proxies:    proxies,
		timeout:    timeout,
		normalizer: options.Normalizer,
		logger:     options.Logger,
	}
}

// Fetch resolves the source into a normalized EncodedImage. Every fetch has
// exactly one terminal outcome: an image, or an error after the configured
// sequence is exhausted. Nothing is cached between calls.
func (f *Fetcher) Fetch(ctx context.Context, src imagesource.Source) (imagesource.EncodedImage, error) {
	if src == nil {
		return imagesource.EncodedImage{}, errors.New("fetcher: source is nil")
	}
	if f.normalizer == nil {
		return imagesource.EncodedImage{}, imagesource.ErrNormalizerUnavailable
	}
	if err := ctx.Err(); err != nil {
		return imagesource.EncodedImage{}, err
	}

	switch src.Kind() {
	case imagesource.SourceKindFile:
		return f.fetchFile(ctx, src.Location())
	case imagesource.SourceKindFS:
		return f.fetchFS(ctx, src.Location())
	case imagesource.SourceKindBytes:
		return f.fetchBytes(ctx, src)
	case imagesource.SourceKindURL:
		return f.fetchURL(ctx, src.Location())
	default:
		return imagesource.EncodedImage{}, fmt.Errorf("fetcher: unsupported source kind %q", src.Kind())
	}
}

// fetchURL runs the fallback sequence: the direct URL first, then each proxy
// in configuration order. The first success wins; exhaustion yields an
// aggregate FetchError naming every attempt.
func (f *Fetcher) fetchURL(ctx context.Context, rawURL string) (imagesource.EncodedImage, error) {
	hint := imagesource.InferMIMEType(rawURL)

	locations := make([]string, 0, len(f.proxies)+1)
	locations = append(locations, rawURL)
	for _, proxy := range f.proxies {
		locations = append(locations, proxy.Wrap(rawURL))
	}

	attempts := make([]imagesource.Attempt, 0, len(locations))
	for _, location := range locations {
		img, err := f.attempt(ctx, location, hint)
		if err == nil {
			return img, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return imagesource.EncodedImage{}, ctxErr
			}
		}
		f.logf("fetcher: load %s: %v", location, err)
		attempts = append(attempts, imagesource.Attempt{Location: location, Err: err})
	}

	return imagesource.EncodedImage{}, &imagesource.FetchError{Source: rawURL, Attempts: attempts}
}

// attempt performs one full load: transfer the bytes, then decode and
// re-encode them. Any failure along the way fails the whole attempt.
func (f *Fetcher) attempt(ctx context.Context, location, hint string) (imagesource.EncodedImage, error) {
	data, err := loadHTTP(ctx, f.http, location, f.timeout)
	if err != nil {
		return imagesource.EncodedImage{}, err
	}
	return f.normalizer.Normalize(ctx, data, hint)
}

func (f *Fetcher) fetchFile(ctx context.Context, path string) (imagesource.EncodedImage, error) {
	if path == "" {
		return imagesource.EncodedImage{}, errors.New("fetcher: file path is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return imagesource.EncodedImage{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return imagesource.EncodedImage{}, fmt.Errorf("fetcher: read file %q: %w", path, err)
	}

	return f.normalizer.Normalize(ctx, data, imagesource.InferMIMEType(path))
}

func (f *Fetcher) fetchFS(ctx context.Context, name string) (imagesource.EncodedImage, error) {
	if name == "" {
		return imagesource.EncodedImage{}, errors.New("fetcher: fs path is required")
	}
	if f.fs == nil {
		return imagesource.EncodedImage{}, errors.New("fetcher: fs is nil")
	}

	data, err := fs.ReadFile(f.fs, name)
	if err != nil {
		return imagesource.EncodedImage{}, fmt.Errorf("fetcher: read %q: %w", name, err)
	}

	return f.normalizer.Normalize(ctx, data, imagesource.InferMIMEType(name))
}

func (f *Fetcher) fetchBytes(ctx context.Context, src imagesource.Source) (imagesource.EncodedImage, error) {
	data, ok := src.(imagesource.DataSource)
	if !ok {
		return imagesource.EncodedImage{}, errors.New("fetcher: bytes source does not expose its payload")
	}

	hint := data.DeclaredMIME()
	if hint == "" {
		hint = imagesource.MIMEJPEG
	}
	return f.normalizer.Normalize(ctx, data.Data(), hint)
}

func (f *Fetcher) logf(format string, args ...any) {
	if f.logger == nil {
		return
	}
	f.logger.Printf(format, args...)
}
