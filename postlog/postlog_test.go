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

package postlog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeMeta is an in-memory store.MetaStore.
type fakeMeta struct {
	values map[string][]byte
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{values: map[string][]byte{}}
}

func (f *fakeMeta) key(ownerID int64, key string) string {
	return fmt.Sprintf("%d:%s", ownerID, key)
}

func (f *fakeMeta) GetMeta(ownerID int64, key string) ([]byte, bool, error) {
	v, ok := f.values[f.key(ownerID, key)]
	return v, ok, nil
}

func (f *fakeMeta) SetMeta(ownerID int64, key string, value []byte) error {
	f.values[f.key(ownerID, key)] = value
	return nil
}

func TestLoggerNewestFirst(t *testing.T) {
	l := New(newFakeMeta())

	assert.NoError(t, l.Add(3, Entry{Source: SourcePOP, Subject: "first", ItemID: -1}))
	assert.NoError(t, l.Add(3, Entry{Source: SourcePOP, Subject: "second", ItemID: 12}))

	entries, err := l.Entries(3)
	assert.NoError(t, err)
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "second", entries[0].Subject)
		assert.Equal(t, "first", entries[1].Subject)
		assert.Equal(t, int64(3), entries[0].ProfileID)
		assert.False(t, entries[0].Time.IsZero())
	}
}

func TestLoggerTruncates(t *testing.T) {
	l := New(newFakeMeta())

	for i := 0; i < MaxEntries+13; i++ {
		assert.NoError(t, l.Add(1, Entry{Subject: fmt.Sprintf("message %d", i), ItemID: -1}))
	}

	entries, err := l.Entries(1)
	assert.NoError(t, err)
	assert.Len(t, entries, MaxEntries)
	// The newest entry survives; the oldest ones are gone.
	assert.Equal(t, fmt.Sprintf("message %d", MaxEntries+12), entries[0].Subject)
}

func TestLoggerProfilesIndependent(t *testing.T) {
	l := New(newFakeMeta())

	assert.NoError(t, l.Add(1, Entry{Subject: "for one", ItemID: -1}))

	entries, err := l.Entries(2)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}
