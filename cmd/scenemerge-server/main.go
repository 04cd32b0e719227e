package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/goliatone/go-scenemerge/internal/config"
	"github.com/goliatone/go-scenemerge/internal/merger/gemini"
	"github.com/goliatone/go-scenemerge/pkg/imagesource"
	"github.com/goliatone/go-scenemerge/pkg/merge"
	"github.com/goliatone/go-scenemerge/pkg/orchestrator"
	"github.com/goliatone/go-scenemerge/pkg/page"
)

// maxUploadBytes bounds multipart parsing; generative providers reject large
// inputs anyway.
const maxUploadBytes = 32 << 20

func main() {
	configPath := flag.String("config", "", "configuration file (yaml)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

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

	app := &application{
		orch:    orchestrator.New(options...),
		mergers: []string{provider.Name()},
	}
	app.pages, err = page.New()
	if err != nil {
		log.Fatalf("Failed to create page renderer: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", app.handleIndex)
	mux.HandleFunc("POST /merge", app.handleMerge)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	listenAddr := cfg.ListenAddr()
	if *addr != "" {
		listenAddr = *addr
	}

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

type application struct {
	orch    *orchestrator.Orchestrator
	pages   *page.Renderer
	mergers []string
}

// handleIndex serves the upload page. The img query parameter pre-populates
// the product image URL so links can deep-link a product.
func (a *application) handleIndex(w http.ResponseWriter, r *http.Request) {
	a.renderUpload(w, page.UploadData{
		ProductURL: strings.TrimSpace(r.URL.Query().Get("img")),
		Mergers:    a.mergers,
	})
}

func (a *application) handleMerge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.renderUploadError(w, fmt.Sprintf("could not read the upload: %v", err))
		return
	}

	req := orchestrator.Request{
		Instructions: r.FormValue("instructions"),
		Merger:       r.FormValue("merger"),
	}

	sceneImage, sceneSource, err := formImage(r, "scene", "scene_url")
	if err != nil {
		a.renderUploadError(w, err.Error())
		return
	}
	req.SceneImage, req.Scene = sceneImage, sceneSource

	productImage, productSource, err := formImage(r, "product", "product_url")
	if err != nil {
		a.renderUploadError(w, err.Error())
		return
	}
	req.ProductImage, req.Product = productImage, productSource

	req.Region, err = parseRegion(r.FormValue("region"))
	if err != nil {
		a.renderUploadError(w, fmt.Sprintf("invalid region: %v", err))
		return
	}

	result, err := a.orch.Compose(r.Context(), req)
	if err != nil {
		log.Printf("compose failed: %v", err)
		a.renderUploadError(w, "The images could not be composited. Please try different sources.")
		return
	}

	body, err := a.pages.RenderResult(page.ResultData{
		CompositeDataURL: result.Composite.DataURL(),
		Instructions:     merge.SanitizeInstructions(req.Instructions),
		Status:           result.Status,
	})
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

// formImage resolves one image role from either an uploaded file or a URL
// field. Uploads bypass the fetcher; URLs go through the fallback sequence.
func formImage(r *http.Request, fileField, urlField string) (*imagesource.EncodedImage, imagesource.Source, error) {
	file, header, err := r.FormFile(fileField)
	if err == nil {
		defer file.Close()

		declared := header.Header.Get("Content-Type")
		if declared == "" {
			declared = imagesource.InferMIMEType(header.Filename)
		}
		img, err := imagesource.FromReader(file, declared)
		if err != nil {
			return nil, nil, fmt.Errorf("could not read the %s upload: %w", fileField, err)
		}
		return &img, nil, nil
	}
	if !errors.Is(err, http.ErrMissingFile) {
		return nil, nil, fmt.Errorf("could not read the %s upload: %w", fileField, err)
	}

	raw := strings.TrimSpace(r.FormValue(urlField))
	if raw == "" {
		return nil, nil, fmt.Errorf("a %s photo is required", fileField)
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return nil, nil, fmt.Errorf("the %s URL must be http or https", fileField)
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return nil, nil, fmt.Errorf("the %s URL is not valid", fileField)
	}
	return nil, imagesource.SourceFromURL(raw), nil
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

func (a *application) renderUpload(w http.ResponseWriter, data page.UploadData) {
	a.renderUploadStatus(w, data, http.StatusOK)
}

func (a *application) renderUploadError(w http.ResponseWriter, message string) {
	a.renderUploadStatus(w, page.UploadData{Mergers: a.mergers, Error: message}, http.StatusUnprocessableEntity)
}

func (a *application) renderUploadStatus(w http.ResponseWriter, data page.UploadData, status int) {
	body, err := a.pages.RenderUpload(data)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
