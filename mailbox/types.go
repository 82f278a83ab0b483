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

package mailbox

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/OllieJones/post-from-email/profile"
)

// Summary identifies one message in an open mailbox by its sequence
// number within the current session.
type Summary struct {
	Seq  int
	Size int
}

// Session is one open connection to a mailbox. A session serves exactly
// one mailbox at a time; all calls are sequential and blocking. An
// empty mailbox is a normal empty List result, not an error.
type Session interface {
	// Login opens the connection. Failures are *ConnectionError values
	// carrying a localized explanation and a remediation hint.
	Login() error

	// List returns the message summaries in listing order.
	List() ([]Summary, error)

	// FetchHeader returns the raw RFC822 header block of a message.
	FetchHeader(seq int) ([]byte, error)

	// FetchMessage returns the full raw message.
	FetchMessage(seq int) ([]byte, error)

	// FetchPart returns the raw bytes of one MIME part identified by a
	// dot-separated part path.
	FetchPart(seq int, path string) ([]byte, error)

	// Delete marks a message for deletion. It is a no-op returning
	// false unless the profile's disposition is "delete".
	Delete(seq int) bool

	// Close ends the session, expunging deletions unless the
	// disposition is "keep".
	Close() error
}

// Factory resolves a Session for a sanitized profile.
type Factory interface {
	NewSession(p *profile.Profile) (Session, error)
}

// SessionFactory is the production Factory: POP via go-pop3, IMAP via
// go-imap, chosen by the profile's protocol type.
type SessionFactory struct {
	DialTimeout   time.Duration
	TLSSkipVerify bool
}

func (f *SessionFactory) NewSession(p *profile.Profile) (Session, error) {
	switch p.Type {
	case profile.TypePOP:
		return newPOPSession(p, f), nil
	case profile.TypeIMAP:
		return newIMAPSession(p, f), nil
	}
	return nil, fmt.Errorf("unsupported mailbox protocol: %v", p.Type)
}

func (f *SessionFactory) tlsConfig() *tls.Config {
	if f.TLSSkipVerify {
		// #nosec G402
		return &tls.Config{InsecureSkipVerify: true}
	}
	return nil
}

func (f *SessionFactory) dialTimeout() time.Duration {
	if f.DialTimeout == 0 {
		return 30 * time.Second
	}
	return f.DialTimeout
}
