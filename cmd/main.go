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

package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/OllieJones/post-from-email/cmd/run"
	"github.com/OllieJones/post-from-email/cmd/serve"
	"github.com/OllieJones/post-from-email/cmd/sweep"
)

func Main() {
	app := cli.App{
		Name:  "post-from-email",
		Usage: os.Args[0],
		Description: `Post From Email turns mail sent to a dedicated mailbox into
content items. It polls POP or IMAP mailboxes, validates the sender,
sanitizes the HTML, and stores the result for embedded display.
`,
	}

	run.RegisterCommand(&app)
	serve.RegisterCommand(&app)
	sweep.RegisterCommand(&app)

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
