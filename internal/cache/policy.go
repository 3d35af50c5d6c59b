package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// ErrNotCacheable is returned when a URL is outside the policy.
var ErrNotCacheable = errors.New("cache: url not cacheable")

// RuleKind selects how an exclusion pattern is matched.
type RuleKind string

const (
	// Contains matches anywhere in the lower-cased URL.
	Contains RuleKind = "contains"
	// Suffix matches the end of the URL path.
	Suffix RuleKind = "suffix"
	// Glob matches the URL path with doublestar syntax, e.g. "/static/**/vendor-*.js".
	Glob RuleKind = "glob"
)

// Rule excludes matching URLs from the cache.
type Rule struct {
	Kind    RuleKind `yaml:"kind" toml:"kind"`
	Pattern string   `yaml:"pattern" toml:"pattern"`
}

func (r Rule) matches(lowerURL, path string) bool {
	switch r.Kind {
	case Contains:
		return strings.Contains(lowerURL, r.Pattern)
	case Suffix:
		return strings.HasSuffix(path, r.Pattern)
	case Glob:
		ok, _ := doublestar.Match(r.Pattern, path)
		return ok
	default:
		return false
	}
}

// Policy decides which URLs are cached and the MIME type they are served
// with. It holds data only; the cache algorithm does not change with it.
type Policy struct {
	Types      map[string]string `yaml:"types" toml:"types"`
	Exclusions []Rule            `yaml:"exclusions" toml:"exclusions"`
}

// DefaultPolicy returns the built-in extension table and exclusions. The
// main bundle and the loader scripts change with every deploy.
func DefaultPolicy() *Policy {
	return &Policy{
		Types: map[string]string{
			"js":    "text/javascript",
			"png":   "image/png",
			"jpg":   "image/jpeg",
			"css":   "text/css",
			"svg":   "image/svg+xml",
			"woff":  "application/font-woff",
			"woff2": "application/font-woff2",
		},
		Exclusions: []Rule{
			{Kind: Contains, Pattern: "bee_mobile.js"},
			{Kind: Contains, Pattern: "jquery.min.js"},
			{Kind: Suffix, Pattern: "bundle.js"},
		},
	}
}

// LoadPolicy reads a YAML (.yaml, .yml) or TOML (.toml) policy file. Sections
// present in the file replace the corresponding defaults.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}

	var file Policy
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("policy %s: unsupported format", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}

	p := DefaultPolicy()
	if file.Types != nil {
		p.Types = file.Types
	}
	if file.Exclusions != nil {
		p.Exclusions = file.Exclusions
	}
	if err := p.normalize(); err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

func (p *Policy) normalize() error {
	types := make(map[string]string, len(p.Types))
	for ext, mime := range p.Types {
		ext = strings.TrimPrefix(strings.ToLower(ext), ".")
		if ext == "" || mime == "" {
			return fmt.Errorf("empty extension or mime type")
		}
		types[ext] = mime
	}
	p.Types = types

	for i, r := range p.Exclusions {
		r.Pattern = strings.ToLower(r.Pattern)
		switch r.Kind {
		case Contains, Suffix:
		case Glob:
			if !doublestar.ValidatePattern(r.Pattern) {
				return fmt.Errorf("invalid glob %q", r.Pattern)
			}
		default:
			return fmt.Errorf("unknown rule kind %q", r.Kind)
		}
		if r.Pattern == "" {
			return fmt.Errorf("empty %s pattern", r.Kind)
		}
		p.Exclusions[i] = r
	}
	return nil
}

// IsCacheable reports whether url has an allow-listed extension and matches
// no exclusion. It performs no I/O.
func (p *Policy) IsCacheable(url string) bool {
	lower := strings.ToLower(url)
	path := urlPath(lower)
	if _, ok := p.Types[extOf(path)]; !ok {
		return false
	}
	for _, r := range p.Exclusions {
		if r.matches(lower, path) {
			return false
		}
	}
	return true
}

// MimeFor returns the MIME type for ext, or "" if ext is not allow-listed.
func (p *Policy) MimeFor(ext string) string {
	return p.Types[strings.TrimPrefix(strings.ToLower(ext), ".")]
}

// Key derives the cache file name for url: lower-cased, scheme and fragment
// removed, "/" replaced with ".".
func Key(url string) string {
	k := strings.ToLower(url)
	k = strings.TrimPrefix(k, "https://")
	k = strings.TrimPrefix(k, "http://")
	if i := strings.IndexByte(k, '#'); i >= 0 {
		k = k[:i]
	}
	return strings.ReplaceAll(k, "/", ".")
}

// Ext returns the lower-cased extension of the URL path, without the dot.
func Ext(url string) string {
	return extOf(urlPath(strings.ToLower(url)))
}

// urlPath strips scheme, host, query and fragment.
func urlPath(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
		if j := strings.IndexByte(u, '/'); j >= 0 {
			u = u[j:]
		} else {
			u = "/"
		}
	}
	return u
}

func extOf(path string) string {
	base := path[strings.LastIndexByte(path, '/')+1:]
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return base[i+1:]
}
