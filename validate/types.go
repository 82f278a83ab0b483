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

// Reason codes. Stable identifiers, suitable for activity-log storage.
const (
	CodeMessageIncomplete  = "MESSAGE_INCOMPLETE"
	CodeFromNotInAllowlist = "FROM_NOT_IN_ALLOWLIST"
	CodeMissingSignature   = "MISSING_SIGNATURE"
	// CodeInvalidSignature is reserved for cryptographic DKIM
	// verification; presence checking never emits it.
	CodeInvalidSignature = "INVALID_SIGNATURE"
)

// Tri-state check results. NotApplicable means the profile did not ask
// for the check.
const (
	NotApplicable = -1
	Failed        = 0
	Passed        = 1
)

// Reason is one rejection with a stable code and a human-readable
// message.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Verdict is the outcome of validating one message against a profile.
type Verdict struct {
	// Allowed records the sender-allowlist check, tri-state.
	Allowed int `json:"allowed"`
	// Signed records the DKIM signature check, tri-state.
	Signed int `json:"signed"`

	Reasons []Reason `json:"reasons,omitempty"`
}

// OK reports whether the message passed every applicable check.
func (v *Verdict) OK() bool {
	return len(v.Reasons) == 0
}

// Messages flattens the rejection reasons to plain strings.
func (v *Verdict) Messages() []string {
	if len(v.Reasons) == 0 {
		return nil
	}
	out := make([]string, 0, len(v.Reasons))
	for _, r := range v.Reasons {
		out = append(out, r.Message)
	}
	return out
}
