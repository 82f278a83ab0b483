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

package config

import (
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func DefaultConfig() CliConfig {
	return CliConfig{
		ConfigPath: "config.json",
		DBPath:     "post-from-email.db",
		CacheDir:   "cache",
		Listen:     ":8080",
		LogLevel:   "info",
		LogFormat:  "text",
		BatchSize:  10,
	}
}

func (cfg *CliConfig) Parameters() []cli.Flag {
	def := DefaultConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to the profiles file, or '-' to read from stdin",
			EnvVars:     []string{"POST_FROM_EMAIL_CONFIG"},
			Destination: &cfg.ConfigPath,
			Value:       def.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "db",
			Usage:       "path to the content database",
			EnvVars:     []string{"POST_FROM_EMAIL_DB"},
			Destination: &cfg.DBPath,
			Value:       def.DBPath,
		},
		&cli.StringFlag{
			Name:        "cache-dir",
			Usage:       "directory for sanitized document files",
			EnvVars:     []string{"POST_FROM_EMAIL_CACHE_DIR"},
			Destination: &cfg.CacheDir,
			Value:       def.CacheDir,
		},
		&cli.StringFlag{
			Name:        "media-dir",
			Usage:       "directory for sideloaded media (default: <cache-dir>/media)",
			EnvVars:     []string{"POST_FROM_EMAIL_MEDIA_DIR"},
			Destination: &cfg.MediaDir,
		},
		&cli.StringFlag{
			Name:        "listen",
			Usage:       "address for the HTTP server",
			EnvVars:     []string{"POST_FROM_EMAIL_LISTEN"},
			Destination: &cfg.Listen,
			Value:       def.Listen,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "logging level",
			EnvVars:     []string{"POST_FROM_EMAIL_LOG_LEVEL"},
			Destination: &cfg.LogLevel,
			Value:       def.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "logging format (text/json)",
			EnvVars:     []string{"POST_FROM_EMAIL_LOG_FORMAT"},
			Destination: &cfg.LogFormat,
			Value:       def.LogFormat,
		},
		&cli.UintFlag{
			Name:        "batch-size",
			Usage:       "messages per mailbox per run",
			EnvVars:     []string{"POST_FROM_EMAIL_BATCH_SIZE"},
			Destination: &cfg.BatchSize,
			Value:       def.BatchSize,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "shorten cache lifetimes. for debugging only",
			EnvVars:     []string{"POST_FROM_EMAIL_DEBUG"},
			Destination: &cfg.Debug,
			Hidden:      true,
		},
	}
}

// SetupLogging applies the log-level and log-format settings.
func (cfg *CliConfig) SetupLogging() {
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
