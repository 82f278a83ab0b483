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

// Package contenttag derives short, filename-safe identity tags for
// content items and cache files.
package contenttag

import (
	"crypto/md5" // #nosec G501 -- identity tags, not security
	"regexp"
	"strings"
)

// chars is a base32 alphabet with the look-alike letters i, l, o and u
// left out. Tags made from it are safe as filenames on any platform.
const chars = "0123456789abcdefghjkmnpqrstvwxyz"

// Encode packs data into the custom base32 alphabet, five bits per
// output character, without padding. Trailing bits are left-justified
// into the final character.
func Encode(data []byte) string {
	const mask = 0b11111

	var res strings.Builder
	remainder := 0
	remainderSize := 0

	for _, b := range data {
		remainder = (remainder << 8) | int(b)
		remainderSize += 8
		for remainderSize > 4 {
			remainderSize -= 5
			c := (remainder & (mask << remainderSize)) >> remainderSize
			res.WriteByte(chars[c])
		}
	}
	if remainderSize > 0 {
		remainder <<= 5 - remainderSize
		res.WriteByte(chars[remainder&mask])
	}

	return res.String()
}

// FromHeaderBlock derives the identity tag of a message from its raw
// header block. The same message always yields the same tag, which is
// how re-fetched messages update their earlier content item instead of
// creating a duplicate.
func FromHeaderBlock(raw []byte) string {
	sum := md5.Sum(raw) // #nosec G401
	return Encode(sum[:])
}

// FromHTML derives a tag from document content, for ingested documents
// that have no mail headers at all.
func FromHTML(html []byte) string {
	sum := md5.Sum(html) // #nosec G401
	return Encode(sum[:])
}

var keyUnsafe = regexp.MustCompile(`[^a-z0-9_-]`)

// sanitizeKey lowercases and strips everything outside [a-z0-9_-].
func sanitizeKey(s string) string {
	return keyUnsafe.ReplaceAllString(strings.ToLower(s), "")
}

// FileName is the cache file name for a tagged document.
func FileName(tag string) string {
	return tag + ".html"
}

// FileNameFromURL is the cache file name for a document ingested from
// a URL: "f-" plus the sanitized host and path. A name already in that
// form passes through unchanged.
func FileNameFromURL(host, path string) string {
	return "f-" + sanitizeKey(host+"-"+path) + ".html"
}
