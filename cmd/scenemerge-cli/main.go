package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/joho/godotenv"

	"github.com/goliatone/go-scenemerge/internal/config"
	"github.com/goliatone/go-scenemerge/internal/merger/gemini"
	"github.com/goliatone/go-scenemerge/internal/watch"
	"github.com/goliatone/go-scenemerge/pkg/imagesource"
	"github.com/goliatone/go-scenemerge/pkg/orchestrator"
)

func main() {
	configPath := flag.String("config", "", "configuration file (yaml)")
	scene := flag.String("scene", "", "location photo path or URL")
	product := flag.String("product", "", "product photo path or URL")
	region := flag.String("region", "", "scene sub-region as x0,y0,x1,y1")
	instructions := flag.String("instructions", "", "placement guidance for the merge provider")
	mergerName := flag.String("merger", "", "merge provider to use")
	output := flag.String("output", "", "output file (derived from the result type if empty)")
	watchMode := flag.Bool("watch", false, "watch the configured drop folder instead of running once")
	flag.Parse()

	// Credentials may live in a .env next to the binary.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := gemini.New(ctx, gemini.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	})
	if err != nil {
		log.Fatalf("Failed to create merge provider: %v", err)
	}
	defer provider.Close()

	options := []orchestrator.Option{
		orchestrator.WithMergers(provider),
		orchestrator.WithQuality(cfg.Fetch.Quality),
		orchestrator.WithLogger(log.Default()),
		orchestrator.WithFetcherOptions(imagesource.WithAttemptTimeout(cfg.AttemptTimeout())),
	}
	if proxies, ok := cfg.Proxies(); ok {
		options = append(options, orchestrator.WithProxies(proxies...))
	}
	gen := orchestrator.New(options...)

	if *watchMode {
		runWatch(ctx, cfg, gen, *instructions, *mergerName)
		return
	}

	sceneRef, err := askIfMissing(*scene, "Location photo (path or URL):")
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	productRef, err := askIfMissing(*product, "Product photo (path or URL):")
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	sceneSource, err := parseSource(sceneRef)
	if err != nil {
		log.Fatalf("Invalid scene source: %v", err)
	}
	productSource, err := parseSource(productRef)
	if err != nil {
		log.Fatalf("Invalid product source: %v", err)
	}

	rect, err := parseRegion(*region)
	if err != nil {
		log.Fatalf("Invalid region: %v", err)
	}

	result, err := gen.Compose(ctx, orchestrator.Request{
		Scene:        sceneSource,
		Product:      productSource,
		Region:       rect,
		Instructions: *instructions,
		Merger:       *mergerName,
	})
	if err != nil {
		log.Fatalf("Failed to compose: %v", err)
	}

	target := *output
	if target == "" {
		target = watch.OutputPath(".", productRef, result.Composite.MIMEType())
	}
	ok, err := confirmOverwrite(target)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	if !ok {
		fmt.Println("Aborted.")
		return
	}
	if err := os.WriteFile(target, result.Composite.Payload(), 0o644); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	fmt.Printf("Composite written to %s\n", target)
}

func runWatch(ctx context.Context, cfg *config.Config, gen *orchestrator.Orchestrator, instructions, mergerName string) {
	watcher, err := watch.New(watch.Options{
		Dir:          cfg.Watch.Dir,
		ScenePath:    cfg.Watch.ScenePath,
		OutputDir:    cfg.Watch.OutputDir,
		Instructions: instructions,
		Merger:       mergerName,
	}, gen)
	if err != nil {
		log.Fatalf("Failed to create watcher: %v", err)
	}

	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Watcher failed: %v", err)
	}
}

// askIfMissing prompts interactively for values the flags left empty.
func askIfMissing(value, message string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed != "" {
		return trimmed, nil
	}

	var answer string
	prompt := &survey.Input{Message: message}
	if err := survey.AskOne(prompt, &answer, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// confirmOverwrite asks before clobbering an existing output file.
func confirmOverwrite(target string) (bool, error) {
	if _, err := os.Stat(target); err != nil {
		return true, nil
	}

	var ok bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("%s already exists. Overwrite?", target),
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func parseSource(raw string) (imagesource.Source, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", raw, err)
		}
		return imagesource.SourceFromURL(raw), nil
	}
	if strings.HasPrefix(raw, "data:") {
		img, err := imagesource.FromDataURL(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid data URL: %w", err)
		}
		return imagesource.SourceFromBytes(img.Payload(), img.MIMEType()), nil
	}
	return imagesource.SourceFromFile(raw), nil
}

func parseRegion(raw string) (*image.Rectangle, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	parts := strings.Split(trimmed, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected x0,y0,x1,y1, got %q", raw)
	}

	coords := make([]int, 4)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("coordinate %q: %w", part, err)
		}
		coords[i] = v
	}

	rect := image.Rect(coords[0], coords[1], coords[2], coords[3])
	return &rect, nil
}
