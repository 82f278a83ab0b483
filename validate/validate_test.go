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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OllieJones/post-from-email/mailparse"
	"github.com/OllieJones/post-from-email/profile"
)

func envelope(from string, extra map[string]string) *mailparse.Envelope {
	headers := map[string]string{
		"from":    from,
		"subject": "Weekly News",
	}
	for k, v := range extra {
		headers[k] = v
	}
	return &mailparse.Envelope{
		Headers: headers,
		HTML:    []byte("<html><body>hi</body></html>"),
	}
}

func TestCheckNoRulesPasses(t *testing.T) {
	p := profile.Template()
	p.RequireDKIM = false
	v := Check(envelope("anyone@example.com", nil), &p)

	assert.True(t, v.OK())
	assert.Equal(t, NotApplicable, v.Allowed)
	assert.Equal(t, NotApplicable, v.Signed)
}

func TestCheckIncompleteMessage(t *testing.T) {
	p := profile.Template()
	p.Allowlist = []string{"news@example.com"}
	p.RequireDKIM = true

	v := Check(&mailparse.Envelope{Headers: map[string]string{"from": "a@b.c"}}, &p)

	assert.False(t, v.OK())
	// Structural failure short-circuits; the other checks never run.
	if assert.Len(t, v.Reasons, 1) {
		assert.Equal(t, CodeMessageIncomplete, v.Reasons[0].Code)
	}
	assert.Equal(t, NotApplicable, v.Allowed)
	assert.Equal(t, NotApplicable, v.Signed)
}

func TestCheckAllowlist(t *testing.T) {
	p := profile.Template()
	p.RequireDKIM = false
	p.Allowlist = []string{"news@example.com"}

	v := Check(envelope("Newsroom <News@Example.com>", nil), &p)
	assert.True(t, v.OK())
	assert.Equal(t, Passed, v.Allowed)

	v = Check(envelope("stranger@elsewhere.net", nil), &p)
	assert.False(t, v.OK())
	assert.Equal(t, Failed, v.Allowed)
	if assert.Len(t, v.Reasons, 1) {
		assert.Equal(t, CodeFromNotInAllowlist, v.Reasons[0].Code)
		assert.Contains(t, v.Reasons[0].Message, "stranger@elsewhere.net")
	}
}

func TestCheckSignature(t *testing.T) {
	p := profile.Template()
	p.RequireDKIM = true

	v := Check(envelope("a@b.c", map[string]string{"dkim-signature": "v=1; d=b.c; s=sel"}), &p)
	assert.True(t, v.OK())
	assert.Equal(t, Passed, v.Signed)

	v = Check(envelope("a@b.c", nil), &p)
	assert.False(t, v.OK())
	assert.Equal(t, Failed, v.Signed)
	if assert.Len(t, v.Reasons, 1) {
		assert.Equal(t, CodeMissingSignature, v.Reasons[0].Code)
	}
}

func TestCheckReasonsAggregate(t *testing.T) {
	p := profile.Template()
	p.Allowlist = []string{"news@example.com"}
	p.RequireDKIM = true

	v := Check(envelope("stranger@elsewhere.net", nil), &p)
	assert.False(t, v.OK())
	assert.Len(t, v.Reasons, 2)
	assert.Len(t, v.Messages(), 2)
}
