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
	"testing"

	"github.com/stretchr/testify/assert"
)

const rawHeaders = "From: sender@example.com\r\n" +
	"To: mailbox@example.net\r\n" +
	"Subject: a subject that is\r\n" +
	" folded across lines\r\n" +
	"Date: Mon, 1 Jan 2024 10:00:00 +0000\r\n" +
	"X-Dup: first\r\n" +
	"X-Dup: second\r\n"

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders([]byte(rawHeaders))

	assert.Equal(t, "sender@example.com", h["from"])
	assert.Equal(t, "mailbox@example.net", h["to"])
	assert.Equal(t, "Mon, 1 Jan 2024 10:00:00 +0000", h["date"])
}

func TestParseHeadersUnfoldsContinuations(t *testing.T) {
	h := ParseHeaders([]byte(rawHeaders))

	// The fold, including its leading whitespace, is removed.
	assert.Equal(t, "a subject that isfolded across lines", h["subject"])
}

func TestParseHeadersDuplicateLastWins(t *testing.T) {
	h := ParseHeaders([]byte(rawHeaders))
	assert.Equal(t, "second", h["x-dup"])
}

func TestParseHeadersIdempotent(t *testing.T) {
	first := ParseHeaders([]byte(rawHeaders))
	second := ParseHeaders([]byte(rawHeaders))
	assert.Equal(t, first, second)
}

func TestParseHeadersIgnoresGarbage(t *testing.T) {
	h := ParseHeaders([]byte("not a header line\r\nFrom: a@b.example\r\n\r\n"))
	assert.Equal(t, map[string]string{"from": "a@b.example"}, h)
}

func TestSynthesizeHeadersStable(t *testing.T) {
	m := map[string]string{"From": "a@example.com", "subject": "Hi"}
	assert.Equal(t, SynthesizeHeaders(m), SynthesizeHeaders(m))

	h := ParseHeaders(SynthesizeHeaders(m))
	assert.Equal(t, "a@example.com", h["from"])
	assert.Equal(t, "Hi", h["subject"])
}
