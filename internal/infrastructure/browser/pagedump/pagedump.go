// Package pagedump reduces a live page's DOM to the markup worth keeping in a
// failure report: the body, without scripts, styles, comments or noisy attributes.
package pagedump

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

type Config struct {
	DropTags  []string
	DropAttrs []string
	// DropAttrPrefixes removes whole attribute families such as data-*.
	DropAttrPrefixes []string
	MaxBytes         int
}

var DefaultConfig = Config{
	DropTags: []string{
		"script", "style", "noscript", "svg", "iframe",
		"link", "meta", "head", "title",
	},
	DropAttrs: []string{
		"style", "srcset", "sizes", "loading", "decoding", "fetchpriority", "tabindex",
	},
	DropAttrPrefixes: []string{"data-", "aria-", "on"},
	MaxBytes:         64_000,
}

const truncatedMarker = "\n<!-- truncated -->"

// Clean returns the sanitized <body> of rawHTML. Input that cannot be parsed
// or has no body is returned truncated but otherwise unchanged.
func Clean(rawHTML string, cfg *Config) string {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	s := newSanitizer(cfg)

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return s.truncate(rawHTML)
	}
	body := findBody(doc)
	if body == nil {
		return s.truncate(rawHTML)
	}

	s.prune(body)

	var sb strings.Builder
	_ = html.Render(&sb, body)
	return s.truncate(sb.String())
}

type sanitizer struct {
	tags     map[string]struct{}
	attrs    map[string]struct{}
	prefixes []string
	maxBytes int
}

func newSanitizer(cfg *Config) *sanitizer {
	return &sanitizer{
		tags:     toSet(cfg.DropTags),
		attrs:    toSet(cfg.DropAttrs),
		prefixes: cfg.DropAttrPrefixes,
		maxBytes: cfg.MaxBytes,
	}
}

// prune strips n's subtree in place. n itself is kept.
func (s *sanitizer) prune(n *html.Node) {
	n.Attr = s.keepAttrs(n.Attr)

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && s.dropTag(c.Data):
			n.RemoveChild(c)
		case c.Type == html.ElementNode:
			s.prune(c)
		}
		c = next
	}
}

func (s *sanitizer) dropTag(tag string) bool {
	_, ok := s.tags[tag]
	return ok
}

func (s *sanitizer) keepAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		if _, drop := s.attrs[a.Key]; drop || hasAnyPrefix(a.Key, s.prefixes) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// truncate caps out at maxBytes without splitting a UTF-8 sequence.
func (s *sanitizer) truncate(out string) string {
	if s.maxBytes <= 0 || len(out) <= s.maxBytes {
		return out
	}
	cut := s.maxBytes
	for cut > 0 && !utf8.RuneStart(out[cut]) {
		cut--
	}
	return out[:cut] + truncatedMarker
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
