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
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// mimeTypes is the fixed subtype table. Unmapped subtypes yield no
// usable type and the part is dropped from the live-content projection.
var mimeTypes = map[string]string{
	"plain":        "text/plain",
	"html":         "text/html",
	"jpeg":         "image/jpeg",
	"png":          "image/png",
	"webp":         "image/webp",
	"gif":          "image/gif",
	"svg":          "image/svg",
	"octet-stream": "application/octet-stream",
}

// Decode walks a raw message's MIME part tree, decoding base64 and
// quoted-printable transfer encodings, and returns the parts in
// traversal order. Unknown charsets are tolerated; the bytes come
// through undecoded rather than failing the message.
func Decode(raw []byte) ([]Part, error) {
	ent, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, err
	}

	var parts []Part
	if err := walk(ent, "", &parts); err != nil {
		return nil, err
	}
	return parts, nil
}

func walk(ent *message.Entity, path string, out *[]Part) error {
	part := decodePart(ent, path)

	if mr := ent.MultipartReader(); mr != nil {
		part.IsMultipart = true
		*out = append(*out, part)

		for i := 1; ; i++ {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
				return err
			}

			childPath := strconv.Itoa(i)
			if path != "" {
				childPath = path + "." + childPath
			}
			if err := walk(child, childPath, out); err != nil {
				return err
			}
		}
		return nil
	}

	if path == "" {
		// A single-part message is part 1 by convention.
		part.Path = "1"
	}
	body, err := io.ReadAll(ent.Body)
	if err != nil {
		return err
	}
	part.Body = body
	*out = append(*out, part)
	return nil
}

func decodePart(ent *message.Entity, path string) Part {
	part := Part{Path: path, Params: make(map[string]string)}

	mediaType, typeParams, err := ent.Header.ContentType()
	if err == nil {
		for attr, value := range typeParams {
			attr = strings.ToLower(attr)
			part.Params[attr] = value
			if attr == "name" {
				part.IsAttachment = true
				part.Filename = value
			}
		}
	}

	_, dispParams, err := ent.Header.ContentDisposition()
	if err == nil {
		for attr, value := range dispParams {
			attr = strings.ToLower(attr)
			part.Params[attr] = value
			if attr == "filename" {
				part.IsAttachment = true
				part.Filename = value
			}
		}
	}

	if slash := strings.Index(mediaType, "/"); slash >= 0 {
		subtype := strings.ToLower(mediaType[slash+1:])
		if mime, ok := mimeTypes[subtype]; ok {
			part.Subtype = subtype
			part.MIMEType = mime
		}
	}

	return part
}

// Project reduces a decoded part list to the live-content Envelope:
// attachments, boundary markers and parts with no usable type are
// skipped, and the surviving text parts populate the type-keyed slots.
func Project(rawHeader []byte, parts []Part) *Envelope {
	env := &Envelope{
		RawHeader: rawHeader,
		Headers:   ParseHeaders(rawHeader),
	}

	for _, part := range parts {
		if part.IsMultipart || part.IsAttachment || part.MIMEType == "" {
			continue
		}
		switch part.Subtype {
		case "plain":
			env.Plain = part.Body
		case "html":
			env.HTML = part.Body
		}
	}

	return env
}

// FindPart returns the part with the given dot-separated path.
func FindPart(parts []Part, path string) (Part, bool) {
	for _, part := range parts {
		if part.Path == path {
			return part, true
		}
	}
	return Part{}, false
}
