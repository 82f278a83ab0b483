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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExplain(t *testing.T) {
	for _, c := range []struct {
		errText string
		hint    string
	}{
		{"-ERR [AUTH] Authentication failed", "Check that the username and password are correct."},
		{"NO [AUTHENTICATIONFAILED] Invalid credentials (Failure)", "Check that the username and password are correct."},
		{"tls: first record does not look like a TLS handshake", "Check the secure-connection (SSL) setting and the port number."},
		{"dial tcp 192.0.2.1:995: connect: connection refused", "Check the server name and port number."},
		{"dial tcp: lookup mail.example.invalid: no such host", "Check the server name."},
		{"dial tcp 192.0.2.1:110: i/o timeout", "Check the server name, port number, and your network connection."},
	} {
		lines := Explain(c.errText)
		if assert.Len(t, lines, 2, c.errText) {
			assert.Equal(t, c.hint, lines[1], c.errText)
		}
	}

	assert.Empty(t, Explain("something entirely novel"))
}

func TestConnectionError(t *testing.T) {
	inner := errors.New("-ERR [AUTH] Authentication failed")
	err := &ConnectionError{Mailbox: "{mail.example.com:995/pop3}INBOX", Err: inner}

	assert.Contains(t, err.Error(), "Cannot open {mail.example.com:995/pop3}INBOX")
	assert.Contains(t, err.Error(), "The mail server rejected the login.")
	assert.Contains(t, err.Error(), "Check that the username and password are correct.")
	assert.ErrorIs(t, err, inner)
}

func TestConnectionErrorUnrecognized(t *testing.T) {
	inner := errors.New("kaboom")
	err := &ConnectionError{Mailbox: "{mail.example.com:143/imap}INBOX", Err: inner}
	assert.Equal(t, "Cannot open {mail.example.com:143/imap}INBOX: kaboom", err.Error())
}
