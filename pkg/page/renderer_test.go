package page

import (
	"strings"
	"testing"
	"testing/fstest"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-scenemerge/pkg/merge"
)

func TestRenderUpload_EmbeddedTemplates(t *testing.T) {
	sut, err := New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := sut.RenderUpload(UploadData{
		ProductURL: "https://example.com/lamp.png",
		Mergers:    []string{"gemini"},
	})
	if err != nil {
		t.Fatalf("render upload: %v", err)
	}

	html := string(out)
	if !strings.Contains(html, `value="https://example.com/lamp.png"`) {
		t.Fatalf("upload page missing pre-populated product url:\n%s", html)
	}
	if !strings.Contains(html, `<option value="gemini">`) {
		t.Fatalf("upload page missing merger option:\n%s", html)
	}
	if strings.Contains(html, `class="error"`) {
		t.Fatalf("upload page should omit the error block when no error is set")
	}
}

func TestRenderUpload_Error(t *testing.T) {
	sut, err := New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := sut.RenderUpload(UploadData{Error: "scene image is required"})
	if err != nil {
		t.Fatalf("render upload: %v", err)
	}
	if !strings.Contains(string(out), "scene image is required") {
		t.Fatalf("upload page missing error message:\n%s", out)
	}
}

func TestRenderResult(t *testing.T) {
	sut, err := New()
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := sut.RenderResult(ResultData{
		CompositeDataURL: "data:image/png;base64,QUJD",
		Instructions:     "on the table",
		Status:           merge.StatusSuccess,
	})
	if err != nil {
		t.Fatalf("render result: %v", err)
	}

	html := string(out)
	if !strings.Contains(html, `src="data:image/png;base64,QUJD"`) {
		t.Fatalf("result page missing composite data url:\n%s", html)
	}
	if !strings.Contains(html, "on the table") {
		t.Fatalf("result page missing instructions:\n%s", html)
	}
	if !strings.Contains(html, "success") {
		t.Fatalf("result page missing status:\n%s", html)
	}
}

func TestRenderer_CustomFS(t *testing.T) {
	files := fstest.MapFS{
		"upload.html": &fstest.MapFile{Data: []byte("custom {{ product_url }}")},
	}

	sut, err := New(WithFS(files))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := sut.RenderUpload(UploadData{ProductURL: "x"})
	if err != nil {
		t.Fatalf("render upload: %v", err)
	}
	if got := string(out); got != "custom x" {
		t.Fatalf("output = %q", got)
	}
}

func TestRenderer_CustomExtension(t *testing.T) {
	files := fstest.MapFS{
		"upload.tpl": &fstest.MapFile{Data: []byte("ok")},
	}

	sut, err := New(WithFS(files), WithExtension("tpl"))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	if _, err := sut.RenderUpload(UploadData{}); err != nil {
		t.Fatalf("render upload: %v", err)
	}
}

func TestRenderer_GlobalData(t *testing.T) {
	files := fstest.MapFS{
		"upload.html": &fstest.MapFile{Data: []byte("{{ site_name }}")},
	}

	sut, err := New(WithFS(files), WithGlobalData(map[string]any{"site_name": "Scene Merge"}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := sut.RenderUpload(UploadData{})
	if err != nil {
		t.Fatalf("render upload: %v", err)
	}
	if got := string(out); got != "Scene Merge" {
		t.Fatalf("output = %q", got)
	}
}

func TestRenderer_Theme(t *testing.T) {
	sut, err := New(WithTheme(&theme.RendererConfig{
		Theme:   "studio",
		Variant: "dark",
		CSSVars: map[string]string{
			"--fg": "#eee",
			"--bg": "#111",
		},
	}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := sut.RenderUpload(UploadData{})
	if err != nil {
		t.Fatalf("render upload: %v", err)
	}

	html := string(out)
	if !strings.Contains(html, `data-theme="studio"`) {
		t.Fatalf("page missing theme attribute:\n%s", html)
	}
	if !strings.Contains(html, `data-theme-variant="dark"`) {
		t.Fatalf("page missing variant attribute:\n%s", html)
	}
	// Keys render sorted so the style block is deterministic.
	if !strings.Contains(html, "--bg: #111; --fg: #eee;") {
		t.Fatalf("page missing css vars style:\n%s", html)
	}
}

func TestRenderer_ThemeStylesheet(t *testing.T) {
	sut, err := New(WithTheme(&theme.RendererConfig{
		Theme: "studio",
		AssetURL: func(key string) string {
			if key == themeAssetStylesheet {
				return "/static/studio.css"
			}
			return ""
		},
	}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := sut.RenderUpload(UploadData{})
	if err != nil {
		t.Fatalf("render upload: %v", err)
	}
	if !strings.Contains(string(out), `href="/static/studio.css"`) {
		t.Fatalf("page missing theme stylesheet:\n%s", out)
	}
}

func TestRenderer_MissingTemplate(t *testing.T) {
	sut, err := New(WithFS(fstest.MapFS{}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if _, err := sut.RenderUpload(UploadData{}); err == nil {
		t.Fatalf("expected error for missing template")
	}
}

func TestCSSVarsStyle(t *testing.T) {
	if got := cssVarsStyle(nil); got != "" {
		t.Fatalf("cssVarsStyle(nil) = %q", got)
	}
	got := cssVarsStyle(map[string]string{"--b": "2", "--a": "1"})
	if got != "--a: 1; --b: 2;" {
		t.Fatalf("cssVarsStyle = %q", got)
	}
}
