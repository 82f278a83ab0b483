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

package profile

import (
	"regexp"
	"strings"
	"time"
)

var hostnameLabel = regexp.MustCompile(`^[a-z0-9][-a-z0-9]*[a-z0-9]?$`)
var usernameBare = regexp.MustCompile(`^[a-zA-Z0-9][-.a-zA-Z0-9]*[a-zA-Z0-9]?$`)

// Timings are the recognized polling cadences. Anything else is
// normalized to "never".
var Timings = map[string]time.Duration{
	"hourly":     time.Hour,
	"twicedaily": 12 * time.Hour,
	"daily":      24 * time.Hour,
	"weekly":     7 * 24 * time.Hour,
}

// Template returns the default profile used to seed new mailbox
// configurations. There is no process-wide mutable default; callers get
// a fresh value each time.
func Template() Profile {
	return Profile{
		Type:        TypePOP,
		Port:        995,
		SSL:         true,
		RequireDKIM: true,
		Folder:      "INBOX",
		Disposition: DispositionDelete,
		Timing:      TimingNever,
	}
}

// PossiblePorts returns the allowed ports for the profile's protocol,
// or nil when the protocol is unknown.
func PossiblePorts(typ string) []int {
	switch typ {
	case TypePOP, TypeIMAP:
		return []int{110, 143, 993, 995, 1110, 2221}
	}
	return nil
}

// SanitizeHostname returns the hostname with each dot-separated label
// checked, or "" if any label contains invalid characters.
func SanitizeHostname(hostname string) string {
	if hostname == "" {
		return ""
	}
	labels := strings.Split(strings.ToLower(hostname), ".")
	for _, label := range labels {
		if !hostnameLabel.MatchString(label) {
			return ""
		}
	}
	return strings.Join(labels, ".")
}

// SanitizeUsername accepts either a bare account name or a full email
// address, returning "" if it contains invalid characters.
func SanitizeUsername(username string) string {
	if !strings.Contains(username, "@") {
		if usernameBare.MatchString(username) {
			return username
		}
		return ""
	}
	return SanitizeEmail(username)
}

// SanitizeEmail strips characters that cannot appear in an address and
// returns "" when what remains is not usable.
func SanitizeEmail(address string) string {
	address = strings.TrimSpace(address)
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return ""
	}
	local := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			strings.ContainsRune("!#$%&'*+/=?^_`{|}~.-", r) {
			return r
		}
		return -1
	}, address[:at])
	domain := SanitizeHostname(address[at+1:])
	if local == "" || domain == "" {
		return ""
	}
	return local + "@" + domain
}

// SanitizeEmailList cleans a list of addresses, dropping empty and
// invalid entries. Order is preserved.
func SanitizeEmailList(list []string) []string {
	var result []string
	for _, line := range list {
		if clean := SanitizeEmail(line); clean != "" {
			result = append(result, clean)
		}
	}
	return result
}

// ParseEmailList splits a newline-delimited address list, the form the
// editing UI stores, into a sanitized slice.
func ParseEmailList(list string) []string {
	list = strings.ReplaceAll(list, "\r\n", "\n")
	list = strings.ReplaceAll(list, "\r", "\n")
	return SanitizeEmailList(strings.Split(list, "\n"))
}

// Sanitize normalizes a profile in place and returns it:
//
//   - the port must be one of the allowed ports for the protocol, or it
//     is coerced to 0 (disabled);
//   - the disposition is always exactly "delete" or "keep";
//   - an unknown timing becomes "never";
//   - an empty folder becomes INBOX.
func (p Profile) Sanitize() Profile {
	if p.Type == "" {
		p.Type = TypePOP
	}

	p.Host = SanitizeHostname(p.Host)
	p.Address = SanitizeEmail(p.Address)
	p.Username = SanitizeUsername(p.Username)
	p.Allowlist = SanitizeEmailList(p.Allowlist)

	if p.Disposition != DispositionDelete && p.Disposition != DispositionKeep {
		if p.Disposition == "" {
			p.Disposition = DispositionDelete
		} else {
			p.Disposition = DispositionKeep
		}
	}

	if p.Timing != TimingNever {
		if _, ok := Timings[p.Timing]; !ok {
			p.Timing = TimingNever
		}
	}

	allowed := false
	for _, port := range PossiblePorts(p.Type) {
		if p.Port == port {
			allowed = true
			break
		}
	}
	if !allowed {
		p.Port = 0
	}

	if p.Folder == "" {
		p.Folder = "INBOX"
	}

	return p
}

// Enabled reports whether the cron poller should open this mailbox.
func (p *Profile) Enabled() bool {
	return p.Host != "" && p.Port != 0 && p.Timing != TimingNever
}
