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

// Package makepost turns a validated message envelope into a content
// item: title, dates, excerpt, categories, and a shortcode body that
// points at the sanitized source document by identity tag.
package makepost

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/OllieJones/post-from-email/contenttag"
	"github.com/OllieJones/post-from-email/mailparse"
	"github.com/OllieJones/post-from-email/profile"
	"github.com/OllieJones/post-from-email/store"
)

// Item metadata keys.
const (
	// MetaSource holds the original message HTML on the item.
	MetaSource = "post-from-email-source"
	// MetaTag holds the identity tag, the dedup key for re-fetched
	// messages.
	MetaTag = "post-from-email-tag"
	// MetaProfile links an item back to the profile that made it.
	MetaProfile = "post-from-email-profile"
	// MetaItems holds, on the profile, the list of item ids the
	// profile created, in creation order.
	MetaItems = "post-from-email-item"
)

const excerptLength = 160

var errIncomplete = errors.New("message has no headers or no HTML body")

// Transformer builds content items from envelopes.
type Transformer struct {
	Content store.ContentStore
	Meta    store.MetaStore

	// Location resolves header dates without a zone; nil means the
	// system zone.
	Location *time.Location
}

// Result describes the item a Process call produced.
type Result struct {
	ItemID  int64
	Tag     string
	Title   string
	Updated bool
}

// Process derives a content item from the envelope and stores it,
// updating the earlier item when one with the same identity tag
// already exists. The profileID owns the activity trail; zero means no
// owning profile (webhook and URL ingress).
func (t *Transformer) Process(env *mailparse.Envelope, p *profile.Profile, profileID int64) (*Result, error) {
	if env == nil || len(env.Headers) == 0 || len(env.HTML) == 0 {
		return nil, errIncomplete
	}

	categories, err := t.categories(env, p)
	if err != nil {
		return nil, err
	}

	tags, err := t.templateTerms(p, store.TaxonomyTag)
	if err != nil {
		return nil, err
	}

	title := titleFrom(env.HTML)
	if title == "" {
		title = decodeSubject(env.Headers["subject"])
	}

	tag := contenttag.FromHeaderBlock(env.RawHeader)
	local, utc := itemDates(env.Headers["date"], t.location())

	fields := &store.ContentFields{
		Author:     1,
		Status:     store.StatusPrivate,
		Title:      title,
		Excerpt:    excerpt(env),
		Content:    shortcode(tag),
		DateLocal:  local,
		DateUTC:    utc,
		Categories: categories,
		Tags:       tags,
	}

	itemID, updated, err := t.upsert(tag, fields)
	if err != nil {
		return nil, err
	}

	if err := t.Meta.SetMeta(itemID, MetaSource, env.HTML); err != nil {
		return nil, err
	}
	if err := t.Meta.SetMeta(itemID, MetaTag, []byte(tag)); err != nil {
		return nil, err
	}
	if profileID != 0 {
		if err := t.Meta.SetMeta(itemID, MetaProfile, []byte(strconv.FormatInt(profileID, 10))); err != nil {
			return nil, err
		}
		if err := t.appendProfileItem(profileID, itemID); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"item":    itemID,
		"tag":     tag,
		"title":   title,
		"updated": updated,
	}).Info("makepost_item")

	return &Result{ItemID: itemID, Tag: tag, Title: title, Updated: updated}, nil
}

// appendProfileItem adds the item to the profile's created-item list.
// An item already on the list (an update of an existing tag) is not
// added twice.
func (t *Transformer) appendProfileItem(profileID, itemID int64) error {
	items, err := t.ProfileItems(profileID)
	if err != nil {
		return err
	}
	for _, id := range items {
		if id == itemID {
			return nil
		}
	}

	encoded, err := json.Marshal(append(items, itemID))
	if err != nil {
		return err
	}
	return t.Meta.SetMeta(profileID, MetaItems, encoded)
}

// ProfileItems returns the ids of the items the profile created, oldest
// first.
func (t *Transformer) ProfileItems(profileID int64) ([]int64, error) {
	raw, ok, err := t.Meta.GetMeta(profileID, MetaItems)
	if err != nil || !ok {
		return nil, err
	}

	var items []int64
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("profile %d item list: %w", profileID, err)
	}
	return items, nil
}

func (t *Transformer) location() *time.Location {
	if t.Location != nil {
		return t.Location
	}
	return time.Local
}

func (t *Transformer) upsert(tag string, fields *store.ContentFields) (int64, bool, error) {
	if id, ok, err := t.Content.FindItemByMeta(MetaTag, []byte(tag)); err != nil {
		return 0, false, err
	} else if ok {
		return id, true, t.Content.UpdateItem(id, fields)
	}

	id, err := t.Content.CreateItem(fields)
	return id, false, err
}

// categories collects plus-address categories from the To header, the
// standing Email category, and the template's category terms.
func (t *Transformer) categories(env *mailparse.Envelope, p *profile.Profile) ([]int64, error) {
	var ids []int64

	for _, name := range CategoriesFromAddress(env.Headers["to"]) {
		id, err := t.Content.EnsureCategory(name, name, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	id, err := t.Content.EnsureCategory("Email", "Post From Email", "post-from-email")
	if err != nil {
		return nil, err
	}
	ids = append(ids, id)

	templated, err := t.templateTerms(p, store.TaxonomyCategory)
	if err != nil {
		return nil, err
	}
	return append(ids, templated...), nil
}

func (t *Transformer) templateTerms(p *profile.Profile, taxonomy string) ([]int64, error) {
	if p == nil || p.TemplateID == 0 {
		return nil, nil
	}

	terms, err := t.Content.GetTerms(p.TemplateID, taxonomy)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, term := range terms {
		ids = append(ids, term.ID)
	}
	return ids, nil
}

// CategoriesFromAddress extracts category names from a plus-addressed
// recipient: box+cat1|cat2@example.com names cat1 and cat2.
func CategoriesFromAddress(to string) []string {
	local, _, _ := strings.Cut(to, "@")
	_, extra, found := strings.Cut(local, "+")
	if !found || extra == "" {
		return nil
	}

	var out []string
	for _, name := range strings.Split(extra, "|") {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// shortcode is the stored item body: a reference to the sanitized
// source document rather than a copy of it.
func shortcode(tag string) string {
	return fmt.Sprintf(`[post-from-email tag="%s"  meta_tag="%s" ]`, tag, MetaSource)
}

// itemDates renders the message date in the local zone and UTC. An
// absent or malformed Date header falls back to the current time.
func itemDates(header string, loc *time.Location) (string, string) {
	const layout = "2006-01-02T15:04:05"

	when, err := mail.ParseDate(header)
	if err != nil {
		when = time.Now()
	}
	return when.In(loc).Format(layout), when.UTC().Format(layout)
}

func decodeSubject(subject string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(subject)
	if err != nil {
		return subject
	}
	return decoded
}

// titleFrom returns the text of the document's title element, or "".
func titleFrom(doc []byte) string {
	root, err := html.Parse(strings.NewReader(string(doc)))
	if err != nil {
		return ""
	}
	if title := findElement(root, "title"); title != nil {
		return strings.TrimSpace(textOf(title))
	}
	return ""
}

// findElement returns the first element with the given tag name,
// depth first.
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

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// excerpt takes the first 160 characters of the plain-text part, or of
// the HTML's collapsed text when there is no plain part.
func excerpt(env *mailparse.Envelope) string {
	text := string(env.Plain)
	if text == "" {
		if root, err := html.Parse(strings.NewReader(string(env.HTML))); err == nil {
			if body := findElement(root, "body"); body != nil {
				text = textOf(body)
			} else {
				text = textOf(root)
			}
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > excerptLength {
		runes = runes[:excerptLength]
	}
	return string(runes)
}
