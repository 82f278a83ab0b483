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
	"strings"
)

// explanation localizes a known low-level protocol error and offers a
// remediation hint. Matching is case-insensitive substring.
type explanation struct {
	match       string
	explanation string
	hint        string
}

var explanations = []explanation{
	{
		match:       "authentication failed",
		explanation: "The mail server rejected the login.",
		hint:        "Check that the username and password are correct.",
	},
	{
		match:       "authenticationfailed",
		explanation: "The mail server rejected the login.",
		hint:        "Check that the username and password are correct.",
	},
	{
		match:       "invalid credentials",
		explanation: "The mail server rejected the login.",
		hint:        "Check that the username and password are correct.",
	},
	{
		match:       "tls",
		explanation: "SSL negotiation failed.",
		hint:        "Check the secure-connection (SSL) setting and the port number.",
	},
	{
		match:       "ssl",
		explanation: "SSL negotiation failed.",
		hint:        "Check the secure-connection (SSL) setting and the port number.",
	},
	{
		match:       "connection refused",
		explanation: "The mail server refused the connection.",
		hint:        "Check the server name and port number.",
	},
	{
		match:       "no such host",
		explanation: "The mail server could not be found.",
		hint:        "Check the server name.",
	},
	{
		match:       "timeout",
		explanation: "The mail server did not answer in time.",
		hint:        "Check the server name, port number, and your network connection.",
	},
}

// ConnectionError describes a login or network failure against one
// mailbox. Its Error text is human-readable and may use multiple lines:
// the raw protocol error first, then the localized explanation and a
// remediation hint when the error is recognized.
type ConnectionError struct {
	Mailbox string
	Err     error
}

func (e *ConnectionError) Error() string {
	lines := []string{"Cannot open " + e.Mailbox + ": " + e.Err.Error()}
	lines = append(lines, Explain(e.Err.Error())...)
	return strings.Join(lines, "\n")
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Explain passes a low-level error text through the lookup table,
// returning explanation and hint lines for the first known substring,
// or nothing when the error is unrecognized.
func Explain(errText string) []string {
	lower := strings.ToLower(errText)
	for _, entry := range explanations {
		if strings.Contains(lower, entry.match) {
			return []string{entry.explanation, entry.hint}
		}
	}
	return nil
}
