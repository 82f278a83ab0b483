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

package sanitize

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// fileKey is the transient key marking a cache file as live. Transient
// keys have a bounded length, so long names are truncated.
func fileKey(name string) string {
	return strip(fileKeyPrefix+name, 160)
}

// CachedFile returns the public URL of a still-live sanitized
// document, or misses when the cache entry has expired or never
// existed.
func (s *Sanitizer) CachedFile(name string) (string, bool) {
	if s.Transients == nil {
		return "", false
	}
	value, ok := s.Transients.Get(fileKey(name))
	if !ok {
		return "", false
	}
	return string(value), true
}

// DocumentFile runs the full pipeline over a raw HTML document and
// writes the result to the cache directory under the given name,
// returning the artifact's public URL. A fresh cache entry
// short-circuits the pipeline entirely.
func (s *Sanitizer) DocumentFile(raw []byte, name string) (string, error) {
	if url, ok := s.CachedFile(name); ok {
		log.WithField("name", name).Trace("sanitize_cache_hit")
		return url, nil
	}

	root, err := Parse(raw)
	if err != nil {
		return "", err
	}

	s.Clean(root)
	s.Ingest(root)
	s.appendResizerScript(root)

	rendered, err := Render(root)
	if err != nil {
		return "", err
	}

	if err := s.writeFile(name, rendered); err != nil {
		return "", err
	}

	url := s.BaseURL + "/" + name
	if s.Transients != nil {
		if err := s.Transients.Set(fileKey(name), []byte(url), s.lifetime()); err != nil {
			return "", err
		}
	}

	log.WithFields(log.Fields{"name": name, "bytes": len(rendered)}).Debug("sanitize_document_file")
	return url, nil
}

// appendResizerScript adds the iframe resize-notification script as
// the last child of body, so an embedding page can track the
// document's height.
func (s *Sanitizer) appendResizerScript(root *html.Node) {
	if s.ResizerScriptURL == "" {
		return
	}
	body := findElement(root, "body")
	if body == nil {
		return
	}
	body.AppendChild(&html.Node{
		Type: html.ElementNode,
		Data: "script",
		Attr: []html.Attribute{{Key: "src", Val: s.ResizerScriptURL}},
	})
}

// writeFile lands the artifact atomically: temp file in the same
// directory, then rename. A concurrent reader sees the old file or
// the new one, never a torn write.
func (s *Sanitizer) writeFile(name string, data []byte) error {
	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.CacheDir, name+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.CacheDir, name))
}

// Sweep removes cache files whose transient entry has expired. Files
// still referenced by a live entry are kept.
func (s *Sanitizer) Sweep() error {
	entries, err := os.ReadDir(s.CacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".html") {
			continue
		}
		if _, ok := s.CachedFile(name); ok {
			continue
		}
		pathname := filepath.Join(s.CacheDir, name)
		if err := os.Remove(pathname); err != nil {
			log.WithError(err).WithField("file", pathname).Warn("sanitize_sweep_failed")
			continue
		}
		log.WithField("file", pathname).Debug("sanitize_sweep_removed")
	}
	return nil
}
