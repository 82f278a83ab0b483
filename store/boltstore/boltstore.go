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

// Package boltstore persists content items, metadata, transients, and
// media in a single bbolt file.
package boltstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/OllieJones/post-from-email/store"
)

var (
	bucketItems     = []byte("items")
	bucketItemMeta  = []byte("itemmeta")
	bucketTransient = []byte("transients")
	bucketMedia     = []byte("media")
	bucketTerms     = []byte("terms")
	bucketTermSlug  = []byte("termslug")
)

// Options configures a Store.
type Options struct {
	// Path is the bbolt database file.
	Path string
	// MediaDir receives sideloaded asset files. Created on demand.
	MediaDir string
	// MediaBaseURL prefixes the public URL of sideloaded assets.
	MediaBaseURL string
}

// Store implements store.ContentStore, store.MetaStore,
// store.TransientStore and store.MediaStore over one bbolt database.
type Store struct {
	db  *bolt.DB
	opt Options
}

// Open opens or creates the database and its buckets.
func Open(opt Options) (*Store, error) {
	db, err := bolt.Open(opt.Path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", opt.Path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketItems, bucketItemMeta, bucketTransient,
			bucketMedia, bucketTerms, bucketTermSlug,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, opt: opt}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// metaKey is ownerID, a NUL separator, then the key name.
func metaKey(ownerID int64, key string) []byte {
	return append(append(itob(ownerID), 0), key...)
}

func (s *Store) CreateItem(fields *store.ContentFields) (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketItems)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)

		raw, err := json.Marshal(&store.Item{ID: id, ContentFields: *fields})
		if err != nil {
			return err
		}
		return b.Put(itob(id), raw)
	})
	if err != nil {
		return 0, &store.ItemError{Op: "create item", Err: err}
	}

	log.WithFields(log.Fields{"id": id, "title": fields.Title}).Debug("store_create_item")
	return id, nil
}

func (s *Store) GetItem(id int64) (*store.Item, bool, error) {
	var item *store.Item
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketItems).Get(itob(id))
		if raw == nil {
			return nil
		}
		item = &store.Item{}
		return json.Unmarshal(raw, item)
	})
	return item, item != nil, err
}

func (s *Store) UpdateItem(id int64, fields *store.ContentFields) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketItems)
		if b.Get(itob(id)) == nil {
			return fmt.Errorf("no item %d", id)
		}
		raw, err := json.Marshal(&store.Item{ID: id, ContentFields: *fields})
		if err != nil {
			return err
		}
		return b.Put(itob(id), raw)
	})
	if err != nil {
		return &store.ItemError{Op: "update item", Err: err}
	}
	return nil
}

func (s *Store) FindItemByMeta(key string, value []byte) (int64, bool, error) {
	var id int64
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketItemMeta).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) <= 9 || string(k[9:]) != key {
				continue
			}
			if bytes.Equal(v, value) {
				id = btoi(k[:8])
				found = true
				return nil
			}
		}
		return nil
	})
	return id, found, err
}

func (s *Store) GetMeta(ownerID int64, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketItemMeta).Get(metaKey(ownerID, key))
		if raw != nil {
			value = append([]byte(nil), raw...)
		}
		return nil
	})
	return value, value != nil, err
}

func (s *Store) SetMeta(ownerID int64, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketItemMeta).Put(metaKey(ownerID, key), value)
	})
}

type transientRecord struct {
	Value   []byte    `json:"value"`
	Expires time.Time `json:"expires"`
}

func (s *Store) Get(key string) ([]byte, bool) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTransient).Get([]byte(key))
		if raw == nil {
			return nil
		}
		var rec transientRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if time.Now().After(rec.Expires) {
			return nil
		}
		value = rec.Value
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("store_transient_get_failed")
		return nil, false
	}
	return value, value != nil
}

func (s *Store) Set(key string, value []byte, ttl time.Duration) error {
	raw, err := json.Marshal(&transientRecord{Value: value, Expires: time.Now().Add(ttl)})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransient).Put([]byte(key), raw)
	})
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransient).Delete([]byte(key))
	})
}

func termSlugKey(taxonomy, slug string) []byte {
	return append(append([]byte(taxonomy), 0), slug...)
}

func (s *Store) EnsureCategory(name, description, slug string) (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		slugs := tx.Bucket(bucketTermSlug)
		if existing := slugs.Get(termSlugKey(store.TaxonomyCategory, slug)); existing != nil {
			id = btoi(existing)
			return nil
		}

		terms := tx.Bucket(bucketTerms)
		seq, err := terms.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)

		raw, err := json.Marshal(&store.Term{
			ID:          id,
			Taxonomy:    store.TaxonomyCategory,
			Name:        name,
			Slug:        slug,
			Description: description,
		})
		if err != nil {
			return err
		}
		if err := terms.Put(itob(id), raw); err != nil {
			return err
		}
		return slugs.Put(termSlugKey(store.TaxonomyCategory, slug), itob(id))
	})
	return id, err
}

// SetTerms attaches a taxonomy's term IDs to a template item. The
// runner reads them back with GetTerms when building content items.
func (s *Store) SetTerms(templateID int64, taxonomy string, ids []int64) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.SetMeta(templateID, "terms:"+taxonomy, raw)
}

func (s *Store) GetTerms(templateID int64, taxonomy string) ([]store.Term, error) {
	raw, ok, err := s.GetMeta(templateID, "terms:"+taxonomy)
	if err != nil || !ok {
		return nil, err
	}

	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}

	var out []store.Term
	err = s.db.View(func(tx *bolt.Tx) error {
		terms := tx.Bucket(bucketTerms)
		for _, id := range ids {
			rec := terms.Get(itob(id))
			if rec == nil {
				continue
			}
			var term store.Term
			if err := json.Unmarshal(rec, &term); err != nil {
				return err
			}
			out = append(out, term)
		}
		return nil
	})
	return out, err
}

var extensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
}

func (s *Store) FindBySourceURL(src string) (*store.Media, bool, error) {
	var media *store.Media
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMedia).Get([]byte(src))
		if raw == nil {
			return nil
		}
		media = &store.Media{}
		return json.Unmarshal(raw, media)
	})
	return media, media != nil, err
}

// Sideload copies one remote asset into the media directory and
// records it under its source URL.
func (s *Store) Sideload(src string, body []byte, contentType string) (*store.Media, error) {
	ext, ok := extensions[contentType]
	if !ok {
		ext = ".bin"
	}

	if err := os.MkdirAll(s.opt.MediaDir, 0o755); err != nil {
		return nil, err
	}

	assetID := uuid.NewString()
	name := assetID + ext
	if err := os.WriteFile(filepath.Join(s.opt.MediaDir, name), body, 0o644); err != nil {
		return nil, err
	}

	media := &store.Media{
		AssetID:   assetID,
		SourceURL: src,
		Renditions: []store.Rendition{
			{Name: "full", URL: s.opt.MediaBaseURL + "/" + name},
		},
	}

	raw, err := json.Marshal(media)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMedia).Put([]byte(src), raw)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"src": src, "asset": assetID}).Debug("store_sideload")
	return media, nil
}
