package cache

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Prefetcher warms the cache from the asset references in a page.
type Prefetcher struct {
	fetcher Fetcher
	policy  *Policy
	store   *Store
	worker  *Worker
	log     *logging.Logger
}

// NewPrefetcher creates a prefetcher that feeds worker.
func NewPrefetcher(fetcher Fetcher, policy *Policy, store *Store, worker *Worker, log *logging.Logger) *Prefetcher {
	return &Prefetcher{
		fetcher: fetcher,
		policy:  policy,
		store:   store,
		worker:  worker,
		log:     logging.OrNop(log).Named("cache.prefetch"),
	}
}

// Prefetch loads pageURL, collects script, stylesheet and image references,
// and enqueues the cacheable ones that are not cached yet. It returns the
// number of fills enqueued.
func (p *Prefetcher) Prefetch(ctx context.Context, pageURL string) (int, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return 0, fmt.Errorf("parse page url: %w", err)
	}

	resp, err := p.fetcher.Get(ctx, pageURL)
	if err != nil {
		return 0, fmt.Errorf("fetch page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return 0, fmt.Errorf("parse page: %w", err)
	}

	refs := AssetRefs(doc, base)
	enqueued := 0
	for _, ref := range refs {
		if !p.policy.IsCacheable(ref) || p.store.Has(Key(ref)) {
			continue
		}
		if p.worker.Enqueue(ref) {
			enqueued++
		}
	}

	p.log.Info("prefetch scheduled",
		zap.String("page", pageURL),
		zap.Int("references", len(refs)),
		zap.Int("enqueued", enqueued))
	return enqueued, nil
}

// AssetRefs returns the absolute URLs of script[src], link[href] and
// img[src] in document order, without duplicates.
func AssetRefs(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	var refs []string

	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "#") {
			return
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		s := abs.String()
		if !seen[s] {
			seen[s] = true
			refs = append(refs, s)
		}
	}

	doc.Find("script[src], link[href], img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
			return
		}
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})
	return refs
}
