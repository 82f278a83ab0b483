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
	"fmt"

	"github.com/knadh/go-pop3"
	log "github.com/sirupsen/logrus"

	"github.com/OllieJones/post-from-email/mailparse"
	"github.com/OllieJones/post-from-email/profile"
)

var errPartNotFound = errors.New("no such message part")
var errNotConnected = errors.New("session is not connected")

type popSession struct {
	profile *profile.Profile
	opt     pop3.Opt
	conn    *pop3.Conn

	// POP has no per-part fetch, so full messages are cached for the
	// lifetime of the session and parts are cut out locally.
	raw map[int][]byte
}

func newPOPSession(p *profile.Profile, f *SessionFactory) *popSession {
	return &popSession{
		profile: p,
		opt: pop3.Opt{
			Host:          p.Host,
			Port:          p.Port,
			DialTimeout:   f.dialTimeout(),
			TLSEnabled:    p.SSL,
			TLSSkipVerify: f.TLSSkipVerify,
		},
		raw: map[int][]byte{},
	}
}

func (s *popSession) mailboxName() string {
	return fmt.Sprintf("{%s:%d/pop3}%s", s.profile.Host, s.profile.Port, s.profile.Folder)
}

func (s *popSession) Login() error {
	conn, err := pop3.New(s.opt).NewConn()
	if err != nil {
		return &ConnectionError{Mailbox: s.mailboxName(), Err: err}
	}

	if err := conn.Auth(s.profile.Username, s.profile.Password); err != nil {
		_ = conn.Quit()
		return &ConnectionError{Mailbox: s.mailboxName(), Err: err}
	}

	log.WithFields(log.Fields{
		"host": s.profile.Host,
		"port": s.profile.Port,
		"user": s.profile.Username,
	}).Debug("pop_login")

	s.conn = conn
	return nil
}

func (s *popSession) List() ([]Summary, error) {
	if s.conn == nil {
		return nil, errNotConnected
	}

	ids, err := s.conn.List(0)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		summaries = append(summaries, Summary{Seq: id.ID, Size: id.Size})
	}
	return summaries, nil
}

func (s *popSession) FetchHeader(seq int) ([]byte, error) {
	if s.conn == nil {
		return nil, errNotConnected
	}

	buf, err := s.conn.Cmd("TOP", true, seq, 0)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *popSession) FetchMessage(seq int) ([]byte, error) {
	if raw, ok := s.raw[seq]; ok {
		return raw, nil
	}
	if s.conn == nil {
		return nil, errNotConnected
	}

	buf, err := s.conn.RetrRaw(seq)
	if err != nil {
		return nil, err
	}

	raw := buf.Bytes()
	s.raw[seq] = raw
	log.WithFields(log.Fields{"seq": seq, "size": len(raw)}).Trace("pop_fetch_message")
	return raw, nil
}

func (s *popSession) FetchPart(seq int, path string) ([]byte, error) {
	raw, err := s.FetchMessage(seq)
	if err != nil {
		return nil, err
	}

	parts, err := mailparse.Decode(raw)
	if err != nil {
		return nil, err
	}

	part, ok := mailparse.FindPart(parts, path)
	if !ok {
		return nil, errPartNotFound
	}
	return part.Body, nil
}

func (s *popSession) Delete(seq int) bool {
	if s.profile.Disposition != profile.DispositionDelete {
		return false
	}
	if s.conn == nil {
		return false
	}

	if err := s.conn.Dele(seq); err != nil {
		log.WithError(err).WithField("seq", seq).Warn("pop_delete_failed")
		return false
	}
	return true
}

func (s *popSession) Close() error {
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	s.raw = map[int][]byte{}

	// QUIT commits pending deletions; a keep profile never marks any,
	// but reset anyway so a server-side quirk can't expunge.
	if s.profile.Disposition == profile.DispositionKeep {
		_ = conn.Rset()
	}
	return conn.Quit()
}
