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

// Package store defines the persistence contracts the pipeline writes
// through: content items, per-item metadata, expiring transients, and
// sideloaded media assets.
package store

import (
	"time"
)

// Item statuses.
const (
	StatusPublish = "publish"
	StatusPrivate = "private"
	StatusDraft   = "draft"
)

// Taxonomies.
const (
	TaxonomyCategory = "category"
	TaxonomyTag      = "post_tag"
)

// ContentFields is everything needed to create or update one content
// item.
type ContentFields struct {
	Author     int64   `json:"author"`
	Status     string  `json:"status"`
	Title      string  `json:"title"`
	Excerpt    string  `json:"excerpt"`
	Content    string  `json:"content"`
	DateLocal  string  `json:"date_local"`
	DateUTC    string  `json:"date_utc"`
	Categories []int64 `json:"categories,omitempty"`
	Tags       []int64 `json:"tags,omitempty"`
}

// Item is a stored content item.
type Item struct {
	ID int64 `json:"id"`
	ContentFields
}

// Term is one taxonomy term.
type Term struct {
	ID          int64  `json:"id"`
	Taxonomy    string `json:"taxonomy"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// ContentStore creates and reads content items and taxonomy terms.
type ContentStore interface {
	// CreateItem stores a new item and returns its ID.
	CreateItem(fields *ContentFields) (int64, error)
	// GetItem fetches an item by ID.
	GetItem(id int64) (*Item, bool, error)
	// FindItemByMeta returns the ID of the item whose metadata key
	// has the given value, for locating an earlier item with the same
	// identity tag.
	FindItemByMeta(key string, value []byte) (int64, bool, error)
	// UpdateItem rewrites an existing item's fields.
	UpdateItem(id int64, fields *ContentFields) error
	// GetTerms lists the terms of one taxonomy attached to a template
	// item.
	GetTerms(templateID int64, taxonomy string) ([]Term, error)
	// EnsureCategory finds a category term by slug, creating it on
	// first use, and returns its ID.
	EnsureCategory(name, description, slug string) (int64, error)
}

// MetaStore attaches key/value metadata to an owner, which may be a
// content item or a profile.
type MetaStore interface {
	GetMeta(ownerID int64, key string) ([]byte, bool, error)
	SetMeta(ownerID int64, key string, value []byte) error
}

// TransientStore is an expiring key/value cache. Get never returns an
// expired value.
type TransientStore interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// SizeHint describes the rendition a sanitized document wants for an
// image: an explicit pixel width, or a named size such as "medium" or
// "large" when the markup declares no usable width.
type SizeHint struct {
	Width int
	Named string
}

// Rendition is one stored variant of a media asset.
type Rendition struct {
	Width int    `json:"width"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// Media is a sideloaded asset with its renditions.
type Media struct {
	AssetID    string      `json:"asset_id"`
	SourceURL  string      `json:"source_url"`
	Renditions []Rendition `json:"renditions"`
}

// Rendition picks the best variant for a hint: a named match first,
// then the narrowest rendition at least as wide as the requested
// width, then the widest available.
func (m *Media) Rendition(hint SizeHint) string {
	if len(m.Renditions) == 0 {
		return m.SourceURL
	}

	if hint.Named != "" {
		for _, r := range m.Renditions {
			if r.Name == hint.Named {
				return r.URL
			}
		}
	}

	best := m.Renditions[0]
	if hint.Width > 0 {
		for _, r := range m.Renditions {
			if r.Width >= hint.Width && (best.Width < hint.Width || r.Width < best.Width) {
				best = r
			}
		}
		return best.URL
	}

	for _, r := range m.Renditions {
		if r.Width > best.Width {
			best = r
		}
	}
	return best.URL
}

// MediaStore ingests remote assets and finds them again by their
// origin URL, so an image referenced from several messages is stored
// once.
type MediaStore interface {
	FindBySourceURL(src string) (*Media, bool, error)
	Sideload(src string, body []byte, contentType string) (*Media, error)
}

// ItemError reports a content-store failure during item creation. The
// pipeline records it in the activity log instead of aborting the
// batch.
type ItemError struct {
	Op  string
	Err error
}

func (e *ItemError) Error() string {
	return "content store: " + e.Op + ": " + e.Err.Error()
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
