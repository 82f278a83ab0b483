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

// Disposition controls what happens to a message on the server after
// it has been processed.
const (
	DispositionDelete = "delete"
	DispositionKeep   = "keep"
)

const (
	TypePOP  = "pop"
	TypeIMAP = "imap"
)

// TimingNever disables cron polling for a profile.
const TimingNever = "never"

// Profile describes one source mailbox: where to connect, how to
// authenticate, which senders to trust, and what to do with messages
// after they are turned into content items. Profiles are stored by the
// content store as opaque metadata; this package only reads and writes
// them as a value object.
type Profile struct {
	Type         string   `json:"type"`
	Address      string   `json:"address"`
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	Username     string   `json:"user"`
	Password     string   `json:"pass"`
	SSL          bool     `json:"ssl"`
	Folder       string   `json:"folder"`
	Disposition  string   `json:"disposition"`
	Timing       string   `json:"timing"`
	Allowlist    []string `json:"allowlist"`
	RequireDKIM  bool     `json:"dkim"`
	AllowWebhook bool     `json:"webhook"`

	// TemplateID is the content item whose categories, tags and author
	// created items inherit.
	TemplateID int64 `json:"template_id"`

	Debug bool `json:"debug"`
}
