package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCacheable(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://x/bee_mobile.js", false},
		{"https://x/app.woff2", true},
		{"https://x/app.unknown", false},
		{"https://x/static/jquery.min.js", false},
		{"https://x/main.bundle.js", false},
		{"https://x/vendor.js", true},
		{"https://x/APP.CSS", true},
		{"https://x/logo.png?v=3", true},
		{"https://x/logo.png#top", true},
		{"https://x/page.html?asset=a.png", false},
		{"https://x/noext", false},
		{"https://x.js/", false},
		{"http://x/img/photo.jpg", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsCacheable(tt.url))
		})
	}
}

func TestMimeFor(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, "image/png", p.MimeFor("png"))
	assert.Equal(t, "application/font-woff2", p.MimeFor("woff2"))
	assert.Equal(t, "text/javascript", p.MimeFor(".JS"))
	assert.Empty(t, p.MimeFor("unknown"))
}

func TestKeyAndExt(t *testing.T) {
	assert.Equal(t, "x.app.css", Key("https://x/app.css"))
	assert.Equal(t, "widget.cere.io.static.js.main.js", Key("http://widget.cere.io/static/js/Main.js"))
	assert.Equal(t, "x.logo.png?v=2", Key("https://x/logo.png?v=2#frag"))

	assert.Equal(t, "css", Ext("https://x/app.css"))
	assert.Equal(t, "png", Ext("https://x/a/LOGO.PNG?size=2"))
	assert.Empty(t, Ext("https://x/a/readme"))
	assert.Empty(t, Ext("https://example.com"))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPolicyYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policy.yaml", `
types:
  js: text/javascript
  webp: image/webp
exclusions:
  - kind: glob
    pattern: "/static/**/chunk-*.js"
  - kind: suffix
    pattern: .MAP.JS
`)

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.True(t, p.IsCacheable("https://x/hero.webp"))
	assert.False(t, p.IsCacheable("https://x/app.css"), "types section replaces the defaults")
	assert.False(t, p.IsCacheable("https://x/static/js/chunk-12.js"))
	assert.False(t, p.IsCacheable("https://x/app.map.js"))
	assert.True(t, p.IsCacheable("https://x/bee_mobile.js"), "exclusions section replaces the defaults")
}

func TestLoadPolicyTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policy.toml", `
[[exclusions]]
kind = "contains"
pattern = "experimental"
`)

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, "image/png", p.MimeFor("png"), "types keep their defaults")
	assert.False(t, p.IsCacheable("https://x/experimental/app.js"))
	assert.True(t, p.IsCacheable("https://x/bundle.css"))
}

func TestLoadPolicyErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown kind", "a.yaml", "exclusions:\n  - kind: regex\n    pattern: x\n"},
		{"bad glob", "b.yaml", "exclusions:\n  - kind: glob\n    pattern: \"[\"\n"},
		{"empty pattern", "c.toml", "[[exclusions]]\nkind = \"suffix\"\npattern = \"\"\n"},
		{"bad syntax", "d.toml", "types = [\n"},
		{"unsupported format", "e.json", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPolicy(writeFile(t, dir, tt.file, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadPolicy(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
