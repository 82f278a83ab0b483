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

// Part is one decoded MIME part. Path follows the IMAP part-numbering
// convention: children of a multipart container are numbered 1..N and
// joined to the container's path with a dot, except at the tree root
// where the numbering starts with no prefix. The root container itself
// has an empty path.
type Part struct {
	Path         string
	MIMEType     string
	Subtype      string
	Params       map[string]string
	Filename     string
	IsAttachment bool
	IsMultipart  bool
	Body         []byte
}

// Envelope is the "live content" projection of a message: its headers
// plus the body parts the validator and transformer care about.
// Attachments and multipart boundary markers are excluded.
type Envelope struct {
	RawHeader []byte
	Headers   map[string]string
	HTML      []byte
	Plain     []byte
}
