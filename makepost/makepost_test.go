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

package makepost

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/OllieJones/post-from-email/mailparse"
	"github.com/OllieJones/post-from-email/profile"
	"github.com/OllieJones/post-from-email/store"
)

// fakeStore is an in-memory store.ContentStore and store.MetaStore.
type fakeStore struct {
	items     map[int64]*store.ContentFields
	meta      map[string][]byte
	terms     map[string][]store.Term
	catBySlug map[string]int64
	nextID    int64
	nextTerm  int64
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:     map[int64]*store.ContentFields{},
		meta:      map[string][]byte{},
		terms:     map[string][]store.Term{},
		catBySlug: map[string]int64{},
	}
}

func (f *fakeStore) CreateItem(fields *store.ContentFields) (int64, error) {
	if f.createErr != nil {
		return 0, &store.ItemError{Op: "create item", Err: f.createErr}
	}
	f.nextID++
	copied := *fields
	f.items[f.nextID] = &copied
	return f.nextID, nil
}

func (f *fakeStore) GetItem(id int64) (*store.Item, bool, error) {
	fields, ok := f.items[id]
	if !ok {
		return nil, false, nil
	}
	return &store.Item{ID: id, ContentFields: *fields}, true, nil
}

func (f *fakeStore) UpdateItem(id int64, fields *store.ContentFields) error {
	if _, ok := f.items[id]; !ok {
		return &store.ItemError{Op: "update item", Err: fmt.Errorf("no item %d", id)}
	}
	copied := *fields
	f.items[id] = &copied
	return nil
}

func (f *fakeStore) FindItemByMeta(key string, value []byte) (int64, bool, error) {
	for id := range f.items {
		if bytes.Equal(f.meta[fmt.Sprintf("%d:%s", id, key)], value) {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeStore) GetTerms(templateID int64, taxonomy string) ([]store.Term, error) {
	return f.terms[fmt.Sprintf("%d:%s", templateID, taxonomy)], nil
}

func (f *fakeStore) EnsureCategory(name, description, slug string) (int64, error) {
	if id, ok := f.catBySlug[slug]; ok {
		return id, nil
	}
	f.nextTerm++
	f.catBySlug[slug] = f.nextTerm
	return f.nextTerm, nil
}

func (f *fakeStore) GetMeta(ownerID int64, key string) ([]byte, bool, error) {
	v, ok := f.meta[fmt.Sprintf("%d:%s", ownerID, key)]
	return v, ok, nil
}

func (f *fakeStore) SetMeta(ownerID int64, key string, value []byte) error {
	f.meta[fmt.Sprintf("%d:%s", ownerID, key)] = value
	return nil
}

func testEnvelope() *mailparse.Envelope {
	return &mailparse.Envelope{
		RawHeader: []byte("Message-ID: <20240220.1@mail.example.com>\r\nSubject: Fallback Subject\r\n"),
		Headers: map[string]string{
			"from":       "news@example.com",
			"to":         "box+news|sports@example.com",
			"subject":    "Fallback Subject",
			"date":       "Tue, 20 Feb 2024 10:30:00 +0000",
			"message-id": "<20240220.1@mail.example.com>",
		},
		HTML:  []byte("<html><head><title>Weekly Roundup</title></head><body>Lots of news.</body></html>"),
		Plain: []byte("Lots of news this week."),
	}
}

func testTransformer(f *fakeStore) *Transformer {
	return &Transformer{Content: f, Meta: f, Location: time.UTC}
}

func TestProcessCreatesItem(t *testing.T) {
	f := newFakeStore()
	p := profile.Template()

	result, err := testTransformer(f).Process(testEnvelope(), &p, 5)
	assert.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Equal(t, "Weekly Roundup", result.Title)
	assert.NotEmpty(t, result.Tag)

	item, ok, err := f.GetItem(result.ItemID)
	assert.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, int64(1), item.Author)
	assert.Equal(t, store.StatusPrivate, item.Status)
	assert.Equal(t, "Weekly Roundup", item.Title)
	assert.Equal(t, "Lots of news this week.", item.Excerpt)
	assert.Equal(t, "2024-02-20T10:30:00", item.DateLocal)
	assert.Equal(t, "2024-02-20T10:30:00", item.DateUTC)

	// The body is a reference to the sanitized document, not a copy.
	assert.Equal(t,
		`[post-from-email tag="`+result.Tag+`"  meta_tag="post-from-email-source" ]`,
		item.Content)

	// Plus-address categories plus the standing Email category.
	assert.Len(t, item.Categories, 3)
	assert.Contains(t, f.catBySlug, "news")
	assert.Contains(t, f.catBySlug, "sports")
	assert.Contains(t, f.catBySlug, "post-from-email")

	// Source HTML and the bidirectional profile link land in metadata.
	source, ok, _ := f.GetMeta(result.ItemID, MetaSource)
	assert.True(t, ok)
	assert.Contains(t, string(source), "Weekly Roundup")

	link, ok, _ := f.GetMeta(result.ItemID, MetaProfile)
	assert.True(t, ok)
	assert.Equal(t, "5", string(link))

	items, err := testTransformer(f).ProfileItems(5)
	assert.NoError(t, err)
	assert.Equal(t, []int64{result.ItemID}, items)
}

func TestProcessAppendsToProfileItemList(t *testing.T) {
	f := newFakeStore()
	p := profile.Template()
	tr := testTransformer(f)

	first, err := tr.Process(testEnvelope(), &p, 5)
	assert.NoError(t, err)

	env := testEnvelope()
	env.RawHeader = []byte("Message-ID: <20240221.2@mail.example.com>\r\nSubject: Second Issue\r\n")
	env.Headers["message-id"] = "<20240221.2@mail.example.com>"

	second, err := tr.Process(env, &p, 5)
	assert.NoError(t, err)
	assert.NotEqual(t, first.ItemID, second.ItemID)

	// Every item the profile made stays on its list.
	items, err := tr.ProfileItems(5)
	assert.NoError(t, err)
	assert.Equal(t, []int64{first.ItemID, second.ItemID}, items)

	// Reprocessing a message updates its item without duplicating the
	// list entry.
	_, err = tr.Process(testEnvelope(), &p, 5)
	assert.NoError(t, err)

	items, err = tr.ProfileItems(5)
	assert.NoError(t, err)
	assert.Equal(t, []int64{first.ItemID, second.ItemID}, items)
}

func TestProcessTitleFallsBackToSubject(t *testing.T) {
	f := newFakeStore()
	p := profile.Template()

	env := testEnvelope()
	env.HTML = []byte("<html><body>No title here.</body></html>")
	env.Headers["subject"] = "=?utf-8?q?Caf=C3=A9_News?="

	result, err := testTransformer(f).Process(env, &p, 0)
	assert.NoError(t, err)
	assert.Equal(t, "Café News", result.Title)
}

func TestProcessUpdatesExistingItem(t *testing.T) {
	f := newFakeStore()
	p := profile.Template()
	tr := testTransformer(f)

	first, err := tr.Process(testEnvelope(), &p, 0)
	assert.NoError(t, err)

	env := testEnvelope()
	env.HTML = []byte("<html><head><title>Corrected Roundup</title></head><body>Fixed.</body></html>")

	second, err := tr.Process(env, &p, 0)
	assert.NoError(t, err)

	// Same Message-ID means the same item, updated in place.
	assert.Equal(t, first.ItemID, second.ItemID)
	assert.True(t, second.Updated)
	assert.Len(t, f.items, 1)

	item, _, _ := f.GetItem(first.ItemID)
	assert.Equal(t, "Corrected Roundup", item.Title)
}

func TestProcessTemplateTerms(t *testing.T) {
	f := newFakeStore()
	f.terms["9:category"] = []store.Term{{ID: 41, Taxonomy: store.TaxonomyCategory, Slug: "newsletter"}}
	f.terms["9:post_tag"] = []store.Term{{ID: 77, Taxonomy: store.TaxonomyTag, Slug: "weekly"}}

	p := profile.Template()
	p.TemplateID = 9

	env := testEnvelope()
	env.Headers["to"] = "box@example.com"

	result, err := testTransformer(f).Process(env, &p, 0)
	assert.NoError(t, err)

	item, _, _ := f.GetItem(result.ItemID)
	assert.Contains(t, item.Categories, int64(41))
	assert.Equal(t, []int64{77}, item.Tags)
}

func TestProcessIncompleteEnvelope(t *testing.T) {
	f := newFakeStore()
	p := profile.Template()

	_, err := testTransformer(f).Process(&mailparse.Envelope{}, &p, 0)
	assert.Error(t, err)
	assert.Empty(t, f.items)
}

func TestProcessContentStoreFailure(t *testing.T) {
	f := newFakeStore()
	f.createErr = errors.New("disk full")
	p := profile.Template()

	_, err := testTransformer(f).Process(testEnvelope(), &p, 0)

	var itemErr *store.ItemError
	assert.ErrorAs(t, err, &itemErr)
}

func TestCategoriesFromAddress(t *testing.T) {
	assert.Nil(t, CategoriesFromAddress("box@example.com"))
	assert.Nil(t, CategoriesFromAddress("box+@example.com"))
	assert.Equal(t, []string{"news"}, CategoriesFromAddress("box+news@example.com"))
	assert.Equal(t, []string{"news", "sports"}, CategoriesFromAddress("box+news|sports@example.com"))
	assert.Equal(t, []string{"news"}, CategoriesFromAddress("box+news|@example.com"))
}

func TestExcerptFallsBackToHTMLText(t *testing.T) {
	env := testEnvelope()
	env.Plain = nil
	assert.Equal(t, "Lots of news.", excerpt(env))
}
