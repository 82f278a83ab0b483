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
	"os"
	"path/filepath"
	"time"

	"github.com/OllieJones/post-from-email/mailbox"
	"github.com/OllieJones/post-from-email/makepost"
	"github.com/OllieJones/post-from-email/postlog"
	"github.com/OllieJones/post-from-email/profile"
	"github.com/OllieJones/post-from-email/runner"
	"github.com/OllieJones/post-from-email/sanitize"
	"github.com/OllieJones/post-from-email/store/boltstore"
)

// Components is the assembled pipeline every subcommand works with.
type Components struct {
	Store     *boltstore.Store
	Sanitizer *sanitize.Sanitizer
	Runner    *runner.Runner
	Log       *postlog.Logger

	Profiles   []runner.Profile
	ProfileMap map[int64]*profile.Profile

	// CacheDir and MediaDir are the directories the HTTP server
	// publishes.
	CacheDir string
	MediaDir string
}

// Build opens the database, creates the cache and media directories,
// and wires the pipeline from the resolved configuration.
func Build(cli *CliConfig, conf *Configuration) (*Components, error) {
	mediaDir := cli.MediaDir
	if mediaDir == "" {
		mediaDir = filepath.Join(cli.CacheDir, "media")
	}

	if err := os.MkdirAll(cli.CacheDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return nil, err
	}

	st, err := boltstore.Open(boltstore.Options{
		Path:         cli.DBPath,
		MediaDir:     mediaDir,
		MediaBaseURL: conf.BaseURL + "/media",
	})
	if err != nil {
		return nil, err
	}

	sanitizer := &sanitize.Sanitizer{
		Media:            st,
		Transients:       st,
		CacheDir:         cli.CacheDir,
		BaseURL:          conf.BaseURL + "/cache",
		ResizerScriptURL: conf.ResizerScriptURL,
		Debug:            cli.Debug,
	}

	transform := &makepost.Transformer{
		Content:  st,
		Meta:     st,
		Location: time.Local,
	}

	return &Components{
		Store:     st,
		Sanitizer: sanitizer,
		Runner: &runner.Runner{
			Factory:   &mailbox.SessionFactory{},
			Transform: transform,
			Log:       postlog.New(st),
			BatchSize: int(cli.BatchSize),
		},
		Log:        postlog.New(st),
		Profiles:   conf.Resolved,
		ProfileMap: conf.ResolvedMap,
		CacheDir:   cli.CacheDir,
		MediaDir:   mediaDir,
	}, nil
}

// Close releases the database.
func (c *Components) Close() error {
	return c.Store.Close()
}
