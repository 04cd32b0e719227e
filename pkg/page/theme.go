package page

import (
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"
)

const themeAssetStylesheet = "page.stylesheet"

// WithTheme injects a resolved go-theme configuration so pages pick up the
// theme's CSS variables and stylesheet asset.
func WithTheme(cfg *theme.RendererConfig) Option {
	return func(c *config) {
		c.theme = buildThemeContext(cfg)
	}
}

// themeContext is the template-facing projection of a theme selection.
type themeContext struct {
	Name          string
	Variant       string
	CSSVars       map[string]string
	CSSVarsStyle  string
	StylesheetURL string
}

func buildThemeContext(cfg *theme.RendererConfig) *themeContext {
	if cfg == nil {
		return nil
	}
	ctx := &themeContext{
		Name:    cfg.Theme,
		Variant: cfg.Variant,
		CSSVars: copyStringMap(cfg.CSSVars),
	}
	ctx.CSSVarsStyle = cssVarsStyle(ctx.CSSVars)
	if cfg.AssetURL != nil {
		if resolved := strings.TrimSpace(cfg.AssetURL(themeAssetStylesheet)); resolved != "" {
			ctx.StylesheetURL = resolved
		}
	}
	return ctx
}

func (r *Renderer) themeView() map[string]any {
	if r.theme == nil {
		return map[string]any{}
	}
	return map[string]any{
		"name":           r.theme.Name,
		"variant":        r.theme.Variant,
		"css_vars_style": r.theme.CSSVarsStyle,
		"stylesheet_url": r.theme.StylesheetURL,
	}
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(vars[key])
		sb.WriteString("; ")
	}
	return strings.TrimSpace(sb.String())
}
