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

// Package runner drains mailboxes: one batch run walks the configured
// profiles sequentially, opens one session each, processes messages in
// listing order up to the batch cap, and records every attempt in the
// activity log.
package runner

import (
	log "github.com/sirupsen/logrus"

	"github.com/OllieJones/post-from-email/mailbox"
	"github.com/OllieJones/post-from-email/makepost"
	"github.com/OllieJones/post-from-email/postlog"
	"github.com/OllieJones/post-from-email/profile"
	"github.com/OllieJones/post-from-email/validate"
)

// DefaultBatchSize caps the messages processed per mailbox per run.
const DefaultBatchSize = 10

// Profile pairs a profile with its owning ID, the key for its
// activity log and item links.
type Profile struct {
	ID      int64
	Profile *profile.Profile
}

// Stats summarizes one run.
type Stats struct {
	Profiles int
	Messages int
	Items    int
	Failures int
}

// Runner wires the pipeline stages together.
type Runner struct {
	Factory   mailbox.Factory
	Transform *makepost.Transformer
	Log       *postlog.Logger

	// BatchSize caps messages per mailbox; zero means
	// DefaultBatchSize.
	BatchSize int
}

func (r *Runner) batchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return DefaultBatchSize
}

// Run processes every enabled profile in order. Profile-level failures
// are recorded and do not stop the run.
func (r *Runner) Run(profiles []Profile) Stats {
	var stats Stats
	for _, p := range profiles {
		if !p.Profile.Enabled() {
			log.WithField("profile", p.ID).Debug("runner_profile_disabled")
			continue
		}

		stats.Profiles++
		s := r.RunProfile(p.ID, p.Profile)
		stats.Messages += s.Messages
		stats.Items += s.Items
		stats.Failures += s.Failures
	}

	log.WithFields(log.Fields{
		"profiles": stats.Profiles,
		"messages": stats.Messages,
		"items":    stats.Items,
		"failures": stats.Failures,
	}).Info("runner_run_complete")
	return stats
}

// RunProfile drains one mailbox up to the batch cap. A connection
// failure is one log entry; the next scheduled run retries.
func (r *Runner) RunProfile(profileID int64, p *profile.Profile) Stats {
	var stats Stats

	session, err := r.Factory.NewSession(p)
	if err != nil {
		stats.Failures++
		r.logFailure(profileID, err)
		return stats
	}

	if err := session.Login(); err != nil {
		stats.Failures++
		r.logFailure(profileID, err)
		return stats
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.WithError(err).WithField("profile", profileID).Warn("runner_close_failed")
		}
	}()

	summaries, err := session.List()
	if err != nil {
		stats.Failures++
		r.logFailure(profileID, err)
		return stats
	}

	if limit := r.batchSize(); len(summaries) > limit {
		summaries = summaries[:limit]
	}

	for _, summary := range summaries {
		stats.Messages++
		if r.processMessage(profileID, p, session, summary.Seq) {
			stats.Items++
		} else {
			stats.Failures++
		}
	}
	return stats
}

// processMessage runs one message through the pipeline and writes
// exactly one log entry. It reports whether a content item was stored.
func (r *Runner) processMessage(profileID int64, p *profile.Profile, session mailbox.Session, seq int) bool {
	entry := postlog.Entry{
		Source:  postlog.SourcePOP,
		Valid:   validate.NotApplicable,
		Allowed: validate.NotApplicable,
		Signed:  validate.NotApplicable,
		ItemID:  -1,
	}
	defer func() {
		if err := r.Log.Add(profileID, entry); err != nil {
			log.WithError(err).WithField("profile", profileID).Warn("runner_log_failed")
		}
	}()

	env, err := FetchEnvelope(session, seq)
	if err != nil {
		entry.Valid = validate.Failed
		entry.Errors = append(entry.Errors, err.Error())
		return false
	}
	entry.From = env.Headers["from"]
	entry.Subject = env.Headers["subject"]

	verdict := validate.Check(env, p)
	entry.Valid = verdictValidity(verdict)
	entry.Allowed = verdict.Allowed
	entry.Signed = verdict.Signed
	entry.Errors = append(entry.Errors, verdict.Messages()...)

	if !verdict.OK() {
		log.WithFields(log.Fields{
			"profile": profileID,
			"seq":     seq,
			"from":    entry.From,
		}).Info("runner_message_rejected")
		// Disposition is honored for rejects too; a retry cannot
		// change the verdict.
		session.Delete(seq)
		return false
	}

	result, err := r.Transform.Process(env, p, profileID)
	if err != nil {
		// The message stays on the server; the next poll retries.
		entry.Errors = append(entry.Errors, err.Error())
		return false
	}
	entry.ItemID = result.ItemID

	// Deletion only after the content store confirmed the item.
	session.Delete(seq)
	return true
}

// verdictValidity folds a verdict into the log's tri-state Valid
// field: any rejection reason marks the attempt invalid.
func verdictValidity(v *validate.Verdict) int {
	if v.OK() {
		return validate.Passed
	}
	return validate.Failed
}

func (r *Runner) logFailure(profileID int64, err error) {
	log.WithError(err).WithField("profile", profileID).Warn("runner_profile_failed")

	entry := postlog.Entry{
		Source:  postlog.SourcePOP,
		Valid:   validate.NotApplicable,
		Allowed: validate.NotApplicable,
		Signed:  validate.NotApplicable,
		ItemID:  -1,
		Errors:  []string{err.Error()},
	}
	if err := r.Log.Add(profileID, entry); err != nil {
		log.WithError(err).WithField("profile", profileID).Warn("runner_log_failed")
	}
}
