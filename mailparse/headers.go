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

package mailparse

import (
	"regexp"
	"sort"
	"strings"
)

var foldedLine = regexp.MustCompile(`\r?\n[ \t]+`)

// ParseHeaders converts a raw RFC822 header block into a map keyed by
// lowercased header name. Continuation lines are unfolded first, with
// the fold (line break plus leading whitespace) removed. A duplicated
// header name keeps the last occurrence only.
func ParseHeaders(raw []byte) map[string]string {
	unfolded := foldedLine.ReplaceAllString(string(raw), "")

	result := make(map[string]string)
	for _, line := range strings.Split(unfolded, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		colon := strings.Index(line, ":")
		if colon <= 0 {
			continue
		}
		name := line[:colon]
		if strings.ContainsAny(name, " \t") {
			continue
		}
		result[strings.ToLower(name)] = strings.TrimSpace(line[colon+1:])
	}

	return result
}

// SynthesizeHeaders builds a deterministic raw header block from a
// header map. Webhook deliveries arrive pre-parsed, and the content tag
// is derived from the header block, so the block must be stable for
// identical input.
func SynthesizeHeaders(headers map[string]string) []byte {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(strings.ToLower(name))
		b.WriteString(": ")
		b.WriteString(headers[name])
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}
