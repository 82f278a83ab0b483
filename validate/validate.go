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

package validate

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/OllieJones/post-from-email/mailparse"
	"github.com/OllieJones/post-from-email/profile"
)

// Check validates a decoded message against a profile's acceptance
// rules. A structurally incomplete message (no headers, or no HTML
// body) short-circuits with a single MESSAGE_INCOMPLETE reason; the
// allowlist and signature checks never run on it.
func Check(env *mailparse.Envelope, p *profile.Profile) *Verdict {
	verdict := &Verdict{Allowed: NotApplicable, Signed: NotApplicable}

	if env == nil || len(env.Headers) == 0 || len(env.HTML) == 0 {
		verdict.Reasons = append(verdict.Reasons, Reason{
			Code:    CodeMessageIncomplete,
			Message: "The message does not contain both headers and an HTML body.",
		})
		return verdict
	}

	checkAllowlist(env, p, verdict)
	checkSignature(env, p, verdict)

	log.WithFields(log.Fields{
		"from":    env.Headers["from"],
		"allowed": verdict.Allowed,
		"signed":  verdict.Signed,
		"ok":      verdict.OK(),
	}).Debug("validate_check")

	return verdict
}

// checkAllowlist matches the From header against the profile's
// allowlist entries, case-insensitively. An entry matches when it
// occurs anywhere in the header, so both bare addresses and
// display-name forms pass. An empty allowlist disables the check.
func checkAllowlist(env *mailparse.Envelope, p *profile.Profile, verdict *Verdict) {
	if len(p.Allowlist) == 0 {
		return
	}

	from := strings.ToLower(env.Headers["from"])
	for _, entry := range p.Allowlist {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.Contains(from, entry) {
			verdict.Allowed = Passed
			return
		}
	}

	verdict.Allowed = Failed
	verdict.Reasons = append(verdict.Reasons, Reason{
		Code:    CodeFromNotInAllowlist,
		Message: fmt.Sprintf("The sender %q is not on the list of allowed senders.", env.Headers["from"]),
	})
}

// checkSignature verifies DKIM presence when the profile requires it.
// TODO: verify the signature cryptographically (emersion/go-msgauth)
// rather than trusting its presence.
func checkSignature(env *mailparse.Envelope, p *profile.Profile, verdict *Verdict) {
	if !p.RequireDKIM {
		return
	}

	if _, ok := env.Headers["dkim-signature"]; ok {
		verdict.Signed = Passed
		return
	}

	verdict.Signed = Failed
	verdict.Reasons = append(verdict.Reasons, Reason{
		Code:    CodeMissingSignature,
		Message: "The message does not carry a DKIM signature.",
	})
}
