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

// Package postlog keeps a bounded per-profile activity log: one entry
// per processed message, newest first, capped so a busy mailbox can't
// grow the record without limit.
package postlog

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/OllieJones/post-from-email/store"
)

// MaxEntries is the retained history per profile.
const MaxEntries = 50

// metaKey is the profile metadata key holding the log.
const metaKey = "post-from-email-log"

// Message sources.
const (
	SourcePOP     = "pop"
	SourceWebhook = "webhook"
	SourceURLPost = "urlpost"
)

// Entry records one processing attempt. Valid, Allowed and Signed are
// tri-state: -1 not applicable, 0 failed, 1 passed.
type Entry struct {
	ProfileID int64     `json:"profile_id"`
	Time      time.Time `json:"time"`
	Source    string    `json:"source"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	Valid     int       `json:"valid"`
	Allowed   int       `json:"allowed"`
	Signed    int       `json:"signed"`
	// ItemID is the created content item, or -1 when nothing was
	// stored.
	ItemID int64    `json:"item_id"`
	Errors []string `json:"errors,omitempty"`
}

// Logger stores activity entries in profile metadata.
type Logger struct {
	meta store.MetaStore
}

func New(meta store.MetaStore) *Logger {
	return &Logger{meta: meta}
}

// Add prepends an entry to a profile's log and truncates the log to
// MaxEntries. A log that cannot be read starts over empty rather than
// blocking the entry.
func (l *Logger) Add(profileID int64, entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	entry.ProfileID = profileID

	entries, err := l.Entries(profileID)
	if err != nil {
		log.WithError(err).WithField("profile", profileID).Warn("postlog_read_failed")
		entries = nil
	}

	entries = append([]Entry{entry}, entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return l.meta.SetMeta(profileID, metaKey, raw)
}

// Entries returns a profile's log, newest first.
func (l *Logger) Entries(profileID int64) ([]Entry, error) {
	raw, ok, err := l.meta.GetMeta(profileID, metaKey)
	if err != nil || !ok {
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
