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
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	log "github.com/sirupsen/logrus"

	"github.com/OllieJones/post-from-email/profile"
)

type imapSession struct {
	profile *profile.Profile
	factory *SessionFactory
	client  *client.Client
	status  *imap.MailboxStatus
}

func newIMAPSession(p *profile.Profile, f *SessionFactory) *imapSession {
	return &imapSession{profile: p, factory: f}
}

func (s *imapSession) mailboxName() string {
	scheme := "imap"
	if s.profile.SSL {
		scheme = "imaps"
	}
	return fmt.Sprintf("{%s:%d/%s}%s", s.profile.Host, s.profile.Port, scheme, s.profile.Folder)
}

func (s *imapSession) Login() error {
	addr := net.JoinHostPort(s.profile.Host, strconv.Itoa(s.profile.Port))

	var c *client.Client
	var err error
	if s.profile.SSL {
		c, err = client.DialTLS(addr, s.factory.tlsConfig())
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return &ConnectionError{Mailbox: s.mailboxName(), Err: err}
	}

	if err := c.Login(s.profile.Username, s.profile.Password); err != nil {
		_ = c.Logout()
		return &ConnectionError{Mailbox: s.mailboxName(), Err: err}
	}

	status, err := c.Select(s.profile.Folder, false)
	if err != nil {
		_ = c.Logout()
		return &ConnectionError{Mailbox: s.mailboxName(), Err: err}
	}

	log.WithFields(log.Fields{
		"host":     s.profile.Host,
		"folder":   s.profile.Folder,
		"messages": status.Messages,
	}).Debug("imap_login")

	s.client = c
	s.status = status
	return nil
}

func (s *imapSession) List() ([]Summary, error) {
	if s.client == nil {
		return nil, errNotConnected
	}

	summaries := make([]Summary, 0, s.status.Messages)
	for seq := uint32(1); seq <= s.status.Messages; seq++ {
		summaries = append(summaries, Summary{Seq: int(seq)})
	}
	return summaries, nil
}

func (s *imapSession) fetchSection(seq int, section *imap.BodySectionName) ([]byte, error) {
	if s.client == nil {
		return nil, errNotConnected
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(seq))

	ch := make(chan *imap.Message, 1)
	if err := s.client.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, ch); err != nil {
		return nil, err
	}

	msg := <-ch
	if msg == nil {
		return nil, fmt.Errorf("no message with sequence number %d", seq)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, errPartNotFound
	}
	return io.ReadAll(body)
}

func (s *imapSession) FetchHeader(seq int) ([]byte, error) {
	// BODY.PEEK[HEADER] is the RFC 3501 equivalent of RFC822.HEADER;
	// go-imap's GetBody cannot match responses to the RFC822.HEADER alias.
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	return s.fetchSection(seq, section)
}

func (s *imapSession) FetchMessage(seq int) ([]byte, error) {
	section, err := imap.ParseBodySectionName(imap.FetchRFC822)
	if err != nil {
		panic(err)
	}
	return s.fetchSection(seq, section)
}

func (s *imapSession) FetchPart(seq int, path string) ([]byte, error) {
	var ints []int
	for _, piece := range strings.Split(path, ".") {
		n, err := strconv.Atoi(piece)
		if err != nil {
			return nil, fmt.Errorf("invalid part path %q", path)
		}
		ints = append(ints, n)
	}

	section := &imap.BodySectionName{BodyPartName: imap.BodyPartName{Path: ints}}
	return s.fetchSection(seq, section)
}

func (s *imapSession) Delete(seq int) bool {
	if s.profile.Disposition != profile.DispositionDelete {
		return false
	}
	if s.client == nil {
		return false
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(seq))

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := s.client.Store(seqset, item, flags, nil); err != nil {
		log.WithError(err).WithField("seq", seq).Warn("imap_delete_failed")
		return false
	}
	return true
}

func (s *imapSession) Close() error {
	if s.client == nil {
		return nil
	}
	c := s.client
	s.client = nil

	if s.profile.Disposition == profile.DispositionDelete {
		if err := c.Expunge(nil); err != nil {
			log.WithError(err).Warn("imap_expunge_failed")
		}
	}
	return c.Logout()
}
