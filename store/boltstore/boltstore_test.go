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

package boltstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/OllieJones/post-from-email/store"
)

func testStore(t *testing.T) *Store {
	dir := t.TempDir()
	s, err := Open(Options{
		Path:         filepath.Join(dir, "test.db"),
		MediaDir:     filepath.Join(dir, "media"),
		MediaBaseURL: "http://localhost/media",
	})
	assert.NoError(t, err)
	if err != nil {
		t.FailNow()
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestItemRoundTrip(t *testing.T) {
	s := testStore(t)

	id, err := s.CreateItem(&store.ContentFields{
		Status: store.StatusPublish,
		Title:  "Weekly News",
	})
	assert.NoError(t, err)
	assert.NotZero(t, id)

	item, ok, err := s.GetItem(id)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Weekly News", item.Title)

	item.Title = "Weekly News, updated"
	assert.NoError(t, s.UpdateItem(id, &item.ContentFields))

	item, ok, err = s.GetItem(id)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Weekly News, updated", item.Title)

	_, ok, err = s.GetItem(id + 100)
	assert.NoError(t, err)
	assert.False(t, ok)

	err = s.UpdateItem(id+100, &item.ContentFields)
	var itemErr *store.ItemError
	assert.ErrorAs(t, err, &itemErr)
}

func TestFindItemByMeta(t *testing.T) {
	s := testStore(t)

	id, err := s.CreateItem(&store.ContentFields{Title: "tagged"})
	assert.NoError(t, err)
	assert.NoError(t, s.SetMeta(id, "post-from-email-source", []byte("abc123")))

	found, ok, err := s.FindItemByMeta("post-from-email-source", []byte("abc123"))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, found)

	_, ok, err = s.FindItemByMeta("post-from-email-source", []byte("missing"))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMeta(t *testing.T) {
	s := testStore(t)

	_, ok, err := s.GetMeta(1, "nothing")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.SetMeta(1, "key", []byte("value")))
	value, ok, err := s.GetMeta(1, "key")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), value)

	// Different owners do not collide on the same key.
	_, ok, err = s.GetMeta(2, "key")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTransientExpiry(t *testing.T) {
	s := testStore(t)

	assert.NoError(t, s.Set("fresh", []byte("yes"), time.Hour))
	value, ok := s.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, []byte("yes"), value)

	assert.NoError(t, s.Set("stale", []byte("no"), -time.Second))
	_, ok = s.Get("stale")
	assert.False(t, ok)

	assert.NoError(t, s.Delete("fresh"))
	_, ok = s.Get("fresh")
	assert.False(t, ok)
}

func TestEnsureCategory(t *testing.T) {
	s := testStore(t)

	id, err := s.EnsureCategory("Email", "Post From Email", "post-from-email")
	assert.NoError(t, err)
	assert.NotZero(t, id)

	// Idempotent by slug.
	again, err := s.EnsureCategory("Email", "Post From Email", "post-from-email")
	assert.NoError(t, err)
	assert.Equal(t, id, again)

	other, err := s.EnsureCategory("News", "News", "news")
	assert.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestTemplateTerms(t *testing.T) {
	s := testStore(t)

	catID, err := s.EnsureCategory("Email", "Post From Email", "post-from-email")
	assert.NoError(t, err)

	terms, err := s.GetTerms(7, store.TaxonomyCategory)
	assert.NoError(t, err)
	assert.Empty(t, terms)

	assert.NoError(t, s.SetTerms(7, store.TaxonomyCategory, []int64{catID}))
	terms, err = s.GetTerms(7, store.TaxonomyCategory)
	assert.NoError(t, err)
	if assert.Len(t, terms, 1) {
		assert.Equal(t, "post-from-email", terms[0].Slug)
	}
}

func TestSideload(t *testing.T) {
	s := testStore(t)

	const src = "https://cdn.example.com/banner.png"

	_, ok, err := s.FindBySourceURL(src)
	assert.NoError(t, err)
	assert.False(t, ok)

	media, err := s.Sideload(src, []byte{0x89, 'P', 'N', 'G'}, "image/png")
	assert.NoError(t, err)
	assert.NotEmpty(t, media.AssetID)
	if assert.Len(t, media.Renditions, 1) {
		assert.Contains(t, media.Renditions[0].URL, "http://localhost/media/")
		assert.Contains(t, media.Renditions[0].URL, ".png")
	}

	// The asset file landed in the media directory.
	entries, err := os.ReadDir(s.opt.MediaDir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)

	found, ok, err := s.FindBySourceURL(src)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, media.AssetID, found.AssetID)
}

func TestMediaRendition(t *testing.T) {
	media := &store.Media{
		SourceURL: "https://cdn.example.com/a.jpg",
		Renditions: []store.Rendition{
			{Width: 300, Name: "medium", URL: "u-medium"},
			{Width: 1024, Name: "large", URL: "u-large"},
		},
	}

	assert.Equal(t, "u-medium", media.Rendition(store.SizeHint{Named: "medium"}))
	assert.Equal(t, "u-medium", media.Rendition(store.SizeHint{Width: 200}))
	assert.Equal(t, "u-large", media.Rendition(store.SizeHint{Width: 800}))
	// No hint picks the widest rendition.
	assert.Equal(t, "u-large", media.Rendition(store.SizeHint{}))
}
