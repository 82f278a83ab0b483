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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.json")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestResolve(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.ConfigPath = writeConfig(t, `{
		"base_url": "https://posts.example.com",
		"profiles": {
			"12": {
				"type": "pop",
				"host": "pop.example.com",
				"port": 995,
				"user": "box@example.com",
				"timing": "hourly",
				"allowlist": ["Sender@Example.COM", "not an address"]
			},
			"3": {
				"type": "imap",
				"host": "imap.example.com",
				"port": 993,
				"timing": "daily"
			}
		}
	}`)

	assert.NoError(t, cfg.Resolve())
	assert.Equal(t, "https://posts.example.com", cfg.BaseURL)

	// ID order, not map order.
	if assert.Len(t, cfg.Resolved, 2) {
		assert.Equal(t, int64(3), cfg.Resolved[0].ID)
		assert.Equal(t, int64(12), cfg.Resolved[1].ID)
	}

	p := cfg.ResolvedMap[12]
	if assert.NotNil(t, p) {
		assert.True(t, p.Enabled())
		// Sanitization cleaned the allowlist and dropped the junk entry.
		assert.Equal(t, []string{"sender@example.com"}, p.Allowlist)
		assert.Equal(t, "INBOX", p.Folder)
	}
}

func TestResolveCoercesBadPort(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.ConfigPath = writeConfig(t, `{
		"profiles": {
			"1": {"type": "pop", "host": "pop.example.com", "port": 31337, "timing": "hourly"}
		}
	}`)

	assert.NoError(t, cfg.Resolve())
	p := cfg.ResolvedMap[1]
	if assert.NotNil(t, p) {
		assert.Equal(t, 0, p.Port)
		assert.False(t, p.Enabled())
	}
}

func TestResolveRejectsNonNumericKey(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.ConfigPath = writeConfig(t, `{"profiles": {"main": {"host": "pop.example.com"}}}`)

	err := cfg.Resolve()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "numeric ID")
}

func TestResolveDefaultsBaseURL(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.BaseURL = ""
	cfg.ConfigPath = writeConfig(t, `{"profiles": {}}`)

	assert.NoError(t, cfg.Resolve())
	assert.Equal(t, DefaultConfiguration().BaseURL, cfg.BaseURL)
}

func TestResolveMissingFile(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.ConfigPath = filepath.Join(t.TempDir(), "nope.json")
	assert.Error(t, cfg.Resolve())
}
