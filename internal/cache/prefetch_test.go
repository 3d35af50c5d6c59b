package cache

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nativePage = `<!doctype html>
<html>
<head>
  <link rel="stylesheet" href="/static/app.css">
  <link rel="icon" href="favicon.png">
  <script src="https://widget.cere.io/static/bee_mobile.js"></script>
  <script src="static/vendor.js"></script>
  <script>inline()</script>
</head>
<body>
  <img src="/img/logo.png">
  <img src="data:image/png;base64,AAAA">
  <img src="/img/logo.png">
</body>
</html>`

func TestAssetRefs(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(nativePage))
	require.NoError(t, err)
	base, _ := url.Parse("https://widget.cere.io/native.html?platform=go")

	assert.Equal(t, []string{
		"https://widget.cere.io/static/app.css",
		"https://widget.cere.io/favicon.png",
		"https://widget.cere.io/static/bee_mobile.js",
		"https://widget.cere.io/static/vendor.js",
		"https://widget.cere.io/img/logo.png",
	}, AssetRefs(doc, base))
}

func TestPrefetch(t *testing.T) {
	fetcher := newFakeFetcher()
	page := "https://widget.cere.io/native.html?platform=go"
	fetcher.set(page, []byte(nativePage))
	fetcher.set("https://widget.cere.io/static/app.css", []byte("body{}"))
	fetcher.set("https://widget.cere.io/static/vendor.js", []byte("var v"))
	c := newTestCache(t, fetcher)

	n, err := c.Prefetch(context.Background(), page)
	require.NoError(t, err)
	// app.css, favicon.png, vendor.js, logo.png; bee_mobile.js is excluded.
	assert.Equal(t, 4, n)
	c.Worker.Flush()

	assert.True(t, c.Store.Has(Key("https://widget.cere.io/static/app.css")))
	assert.True(t, c.Store.Has(Key("https://widget.cere.io/static/vendor.js")))
	assert.Zero(t, fetcher.count("https://widget.cere.io/static/bee_mobile.js"))

	// Cached entries are not enqueued again.
	n, err = c.Prefetch(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrefetchPageError(t *testing.T) {
	c := newTestCache(t, newFakeFetcher())
	_, err := c.Prefetch(context.Background(), "https://widget.cere.io/native.html")
	assert.Error(t, err)
}
