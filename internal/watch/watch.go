// Package watch implements drop-folder mode: every product photo that lands
// in the watched directory is composited into the configured scene and the
// result written to the output directory.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-scenemerge/pkg/imagesource"
	"github.com/goliatone/go-scenemerge/pkg/orchestrator"
)

// debounceDelay lets editors and download managers finish writing before a
// file is processed.
const debounceDelay = 500 * time.Millisecond

// outputSuffix marks composites written by the watcher. Files carrying it are
// never reprocessed, otherwise a watcher writing into its own folder would
// feed itself forever.
const outputSuffix = "-composite"

// Options configures a Watcher.
type Options struct {
	// Dir is the folder monitored for new product photos.
	Dir string

	// ScenePath is the location photo every composite uses as background.
	ScenePath string

	// OutputDir receives the composites. Defaults to Dir.
	OutputDir string

	// Instructions is passed through to every composite.
	Instructions string

	// Merger names the merge provider. Empty uses the orchestrator default.
	Merger string

	// Logger receives progress and per-file failures. Nil falls back to the
	// standard logger.
	Logger *log.Logger
}

// Watcher turns filesystem events into composite runs.
type Watcher struct {
	opts    Options
	orch    *orchestrator.Orchestrator
	watcher *fsnotify.Watcher
	logger  *log.Logger
}

// New validates the options and constructs a Watcher.
func New(opts Options, orch *orchestrator.Orchestrator) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("watch: dir is required")
	}
	if opts.ScenePath == "" {
		return nil, fmt.Errorf("watch: scene path is required")
	}
	if orch == nil {
		return nil, fmt.Errorf("watch: orchestrator is required")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = opts.Dir
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Watcher{opts: opts, orch: orch, watcher: fsWatcher, logger: logger}, nil
}

// Run watches the drop folder until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.watcher.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch: watch folder %s: %w", w.opts.Dir, err)
	}
	defer w.watcher.Close()

	w.logger.Printf("watching %s", w.opts.Dir)

	var debounceMu sync.Mutex
	debounce := make(map[string]*time.Timer)
	defer func() {
		debounceMu.Lock()
		defer debounceMu.Unlock()
		for _, timer := range debounce {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !eligible(event.Name) {
				continue
			}

			name := event.Name
			debounceMu.Lock()
			if timer, exists := debounce[name]; exists {
				timer.Stop()
			}
			debounce[name] = time.AfterFunc(debounceDelay, func() {
				debounceMu.Lock()
				delete(debounce, name)
				debounceMu.Unlock()
				if err := w.process(ctx, name); err != nil {
					w.logger.Printf("watch: %s: %v", name, err)
				}
			})
			debounceMu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("watch: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) process(ctx context.Context, productPath string) error {
	w.logger.Printf("compositing %s", productPath)

	result, err := w.orch.Compose(ctx, orchestrator.Request{
		Scene:        imagesource.SourceFromFile(w.opts.ScenePath),
		Product:      imagesource.SourceFromFile(productPath),
		Instructions: w.opts.Instructions,
		Merger:       w.opts.Merger,
	})
	if err != nil {
		return err
	}

	target := OutputPath(w.opts.OutputDir, productPath, result.Composite.MIMEType())
	if err := os.WriteFile(target, result.Composite.Payload(), 0o644); err != nil {
		return fmt.Errorf("watch: write composite: %w", err)
	}

	w.logger.Printf("wrote %s", target)
	return nil
}

// eligible filters the events down to finished image files: known extensions
// only, no dotfiles, no partial downloads.
func eligible(name string) bool {
	base := filepath.Base(name)
	if base == "" || base[0] == '.' {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	if strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), outputSuffix) {
		return false
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp", ".tif", ".tiff":
		return true
	default:
		return false
	}
}

// OutputPath derives the composite filename from the product filename and the
// composite's MIME type.
func OutputPath(outputDir, productPath, mimeType string) string {
	base := filepath.Base(productPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	ext := ".png"
	switch mimeType {
	case imagesource.MIMEJPEG:
		ext = ".jpg"
	case imagesource.MIMEWebP:
		ext = ".webp"
	}

	return filepath.Join(outputDir, stem+outputSuffix+ext)
}
