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
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/OllieJones/post-from-email/store"
)

// maxAssetSize caps a fetched remote image.
const maxAssetSize = 10 << 20

// Ingest pulls every remote image into the media store and rewrites
// the img src attributes to local rendition URLs. Assets are
// deduplicated by source URL, both against the store and within the
// document. A fetch failure leaves that one image pointing at its
// origin.
func (s *Sanitizer) Ingest(root *html.Node) {
	if s.Media == nil {
		return
	}

	resolved := map[string]*store.Media{}
	for _, img := range elementsOf(root, "img") {
		src := attr(img, "src")
		if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
			continue
		}

		media, seen := resolved[src]
		if !seen {
			media = s.resolve(src)
			resolved[src] = media
		}
		if media == nil {
			continue
		}

		setAttr(img, "src", media.Rendition(sizeHint(img)))
	}
}

// sizeHint picks a rendition request from the image's declared
// dimensions: an explicit width when one is given, the "medium" named
// size when only a height is declared, and "large" when neither is.
func sizeHint(img *html.Node) store.SizeHint {
	if w, err := strconv.Atoi(attr(img, "width")); err == nil && w > 0 {
		return store.SizeHint{Width: w}
	}
	if h, err := strconv.Atoi(attr(img, "height")); err == nil && h > 0 {
		return store.SizeHint{Named: "medium"}
	}
	return store.SizeHint{Named: "large"}
}

// resolve finds an asset by source URL, sideloading it on first
// sight. Returns nil when the asset cannot be obtained.
func (s *Sanitizer) resolve(src string) *store.Media {
	media, ok, err := s.Media.FindBySourceURL(src)
	if err != nil {
		log.WithError(err).WithField("src", src).Warn("sanitize_media_lookup_failed")
		return nil
	}
	if ok {
		return media
	}

	resp, err := s.client().Get(src)
	if err != nil {
		log.WithError(err).WithField("src", src).Warn("sanitize_fetch_failed")
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		log.WithFields(log.Fields{"src": src, "status": resp.StatusCode}).Warn("sanitize_fetch_failed")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
	if err != nil {
		log.WithError(err).WithField("src", src).Warn("sanitize_fetch_failed")
		return nil
	}

	contentType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	media, err = s.Media.Sideload(src, body, strings.TrimSpace(contentType))
	if err != nil {
		log.WithError(err).WithField("src", src).Warn("sanitize_sideload_failed")
		return nil
	}

	log.WithFields(log.Fields{"src": src, "asset": media.AssetID}).Debug("sanitize_ingest")
	return media
}
