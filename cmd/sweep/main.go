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

package sweep

import (
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/OllieJones/post-from-email/cmd/config"
)

func RegisterCommand(app *cli.App) *cli.App {
	cfg := &config.CliConfig{}
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "sweep",
		Usage:  "Remove expired cached documents",
		Flags:  cfg.Parameters(),
		Action: func(context *cli.Context) error { return sweep(context, cfg) },
	})
	return app
}

func sweep(_ *cli.Context, cfg *config.CliConfig) error {
	cfg.SetupLogging()

	conf := config.DefaultConfiguration()
	conf.ConfigPath = cfg.ConfigPath
	if err := conf.Resolve(); err != nil {
		return err
	}

	components, err := config.Build(cfg, &conf)
	if err != nil {
		return err
	}
	defer func() { _ = components.Close() }()

	if err := components.Sanitizer.Sweep(); err != nil {
		return err
	}

	log.WithField("cache_dir", components.CacheDir).Info("sweep_complete")
	return nil
}
