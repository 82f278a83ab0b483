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

package runner

import (
	"github.com/OllieJones/post-from-email/mailbox"
	"github.com/OllieJones/post-from-email/mailparse"
)

// FetchEnvelope pulls one message off a session and reduces it to the
// envelope the validator and transformer consume.
func FetchEnvelope(s mailbox.Session, seq int) (*mailparse.Envelope, error) {
	rawHeader, err := s.FetchHeader(seq)
	if err != nil {
		return nil, err
	}

	raw, err := s.FetchMessage(seq)
	if err != nil {
		return nil, err
	}

	parts, err := mailparse.Decode(raw)
	if err != nil {
		return nil, err
	}

	return mailparse.Project(rawHeader, parts), nil
}
