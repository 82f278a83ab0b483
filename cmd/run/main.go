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

package run

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/OllieJones/post-from-email/cmd/config"
)

func RegisterCommand(app *cli.App) *cli.App {
	cfg := &config.CliConfig{}
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Poll every enabled mailbox once",
		Flags:  cfg.Parameters(),
		Action: func(context *cli.Context) error { return run(context, cfg) },
	})
	return app
}

func run(_ *cli.Context, cfg *config.CliConfig) error {
	cfg.SetupLogging()

	conf := config.DefaultConfiguration()
	conf.ConfigPath = cfg.ConfigPath
	if err := conf.Resolve(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"config":     cfg.ConfigPath,
		"db":         cfg.DBPath,
		"cache_dir":  cfg.CacheDir,
		"batch_size": cfg.BatchSize,
		"profiles":   len(conf.Resolved),
		"log_level":  cfg.LogLevel,
		"log_format": cfg.LogFormat,
	}).Info("starting")

	components, err := config.Build(cfg, &conf)
	if err != nil {
		return err
	}
	defer func() { _ = components.Close() }()

	stats := components.Runner.Run(components.Profiles)
	if stats.Failures > 0 {
		return fmt.Errorf("%d of %d messages failed", stats.Failures, stats.Messages)
	}
	return nil
}
