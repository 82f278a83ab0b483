/*
 * Post From Email - Copyright (C) 2024 Ollie Jones.
 *    Contact: oj@plumislandmedia.net
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

// Package sanitize turns raw email HTML into display-safe artifacts:
// it scrubs surveillance elements, normalizes styling, ingests remote
// images into local media, and caches the result as a file or an
// embeddable fragment.
package sanitize

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/OllieJones/post-from-email/store"
)

// Cache lifetimes for sanitized artifacts.
const (
	CacheLifetime      = 14 * 24 * time.Hour
	DebugCacheLifetime = 10 * time.Minute
)

// fileKeyPrefix prefixes the transient key that marks a cache file as
// live.
const fileKeyPrefix = "post-from-email-file-"

// Rule is one scrub expression: remove every element with the given
// tag, optionally restricted to an attribute value and to a document
// scope ("head" or "body").
type Rule struct {
	Scope string `json:"scope,omitempty"`
	Tag   string `json:"tag"`
	Attr  string `json:"attr,omitempty"`
	Value string `json:"value,omitempty"`
}

// DefaultRules scrub the usual email-marketing surveillance furniture:
// OpenGraph image meta tags, scripts, the tracking pixel wrapper, and
// the unsubscribe footer.
var DefaultRules = []Rule{
	{Scope: "head", Tag: "meta", Attr: "property", Value: "og:image"},
	{Tag: "script"},
	{Tag: "div", Attr: "id", Value: "tracking-image"},
	{Tag: "table", Attr: "class", Value: "footer-container"},
}

// Sanitizer drives the pipeline. Media and Transients may be nil in
// reduced configurations; image ingestion and caching are skipped
// without them.
type Sanitizer struct {
	Media      store.MediaStore
	Transients store.TransientStore

	// Rules overrides DefaultRules when non-nil.
	Rules []Rule

	// CacheDir receives sanitized document files; BaseURL prefixes
	// their public URLs.
	CacheDir string
	BaseURL  string

	// ResizerScriptURL is appended to cached documents so an embedding
	// iframe can track the document height.
	ResizerScriptURL string

	// Client fetches remote images and documents; nil means a default
	// client with a 30-second timeout.
	Client *http.Client

	// Debug shortens the cache lifetime.
	Debug bool
}

func (s *Sanitizer) lifetime() time.Duration {
	if s.Debug {
		return DebugCacheLifetime
	}
	return CacheLifetime
}

func (s *Sanitizer) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (s *Sanitizer) rules() []Rule {
	if s.Rules != nil {
		return s.Rules
	}
	return DefaultRules
}

// Parse reads markup permissively; malformed documents never abort the
// pipeline.
func Parse(raw []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(raw))
}

// Render serializes a document or fragment.
func Render(n *html.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Clean runs the in-place document passes: the scrub rules, the tiny
// tracking-image heuristic, and rgb() color normalization. A single
// failing rule is logged and skipped; the rest still run.
func (s *Sanitizer) Clean(root *html.Node) {
	for _, rule := range s.rules() {
		if err := applyRule(root, rule); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"tag":  rule.Tag,
				"attr": rule.Attr,
			}).Warn("sanitize_scrub_failed")
		}
	}
	removeTinyImages(root)
	normalizeColors(root)
}

// applyRule removes every element the rule matches. Matches are
// materialized before any removal; mutating the tree mid-walk skips
// siblings.
func applyRule(root *html.Node, rule Rule) error {
	if rule.Tag == "" {
		return errors.New("scrub rule has no tag")
	}

	scope := root
	if rule.Scope != "" {
		scope = findElement(root, rule.Scope)
		if scope == nil {
			return nil
		}
	}

	var doomed []*html.Node
	walk(scope, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != rule.Tag {
			return
		}
		if rule.Attr != "" && attr(n, rule.Attr) != rule.Value {
			return
		}
		doomed = append(doomed, n)
	})

	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return nil
}

// removeTinyImages drops images whose declared area is 16 square
// pixels or less: 1x1 beacons and their near relatives.
func removeTinyImages(root *html.Node) {
	var doomed []*html.Node
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "img" {
			return
		}
		w, werr := strconv.Atoi(attr(n, "width"))
		h, herr := strconv.Atoi(attr(n, "height"))
		if werr == nil && herr == nil && w*h <= 16 {
			doomed = append(doomed, n)
		}
	})

	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

var rgbPattern = regexp.MustCompile(`(?i)rgb\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*\)`)

// hexColor rewrites rgb(r, g, b) declarations to #rrggbb. Downstream
// display allowlists reject the functional syntax.
func hexColor(css string) string {
	return rgbPattern.ReplaceAllStringFunc(css, func(m string) string {
		parts := rgbPattern.FindStringSubmatch(m)
		channels := [3]int{}
		for i := 0; i < 3; i++ {
			v, err := strconv.Atoi(parts[i+1])
			if err != nil || v > 255 {
				v = 255
			}
			channels[i] = v
		}
		return fmt.Sprintf("#%02x%02x%02x", channels[0], channels[1], channels[2])
	})
}

// normalizeColors applies hexColor to style attributes and embedded
// style sheets.
func normalizeColors(root *html.Node) {
	walk(root, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		for i, a := range n.Attr {
			if a.Key == "style" {
				n.Attr[i].Val = hexColor(a.Val)
			}
		}
		if n.Data == "style" {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					c.Data = hexColor(c.Data)
				}
			}
		}
	})
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

func elementsOf(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
	})
	return out
}

func strip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
