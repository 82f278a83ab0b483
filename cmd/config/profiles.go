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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/OllieJones/post-from-email/profile"
	"github.com/OllieJones/post-from-email/runner"
)

// Configuration is the profiles file: mailbox sources keyed by numeric
// ID, plus the public URL settings of the serving side.
type Configuration struct {
	ConfigPath string `json:"-"`

	Profiles map[string]*profile.Profile `json:"profiles,omitempty"`

	// BaseURL prefixes public cache and media URLs.
	BaseURL string `json:"base_url,omitempty"`
	// ResizerScriptURL is injected into sanitized documents.
	ResizerScriptURL string `json:"resizer_script_url,omitempty"`

	Resolved    []runner.Profile           `json:"-"`
	ResolvedMap map[int64]*profile.Profile `json:"-"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		ConfigPath: "config.json",
		BaseURL:    "http://localhost:8080",
	}
}

// Resolve reads and parses the profiles file, sanitizes each profile,
// and materializes the ID-ordered list the runner walks.
func (cfg *Configuration) Resolve() error {
	var err error
	var raw []byte

	if cfg.ConfigPath == "-" || cfg.ConfigPath == "" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(cfg.ConfigPath)
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, cfg); err != nil {
		return err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfiguration().BaseURL
	}

	cfg.Resolved = make([]runner.Profile, 0, len(cfg.Profiles))
	cfg.ResolvedMap = make(map[int64]*profile.Profile, len(cfg.Profiles))
	for key, p := range cfg.Profiles {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("profile key %q is not a numeric ID", key)
		}

		clean := p.Sanitize()
		cfg.Resolved = append(cfg.Resolved, runner.Profile{ID: id, Profile: &clean})
		cfg.ResolvedMap[id] = &clean
	}

	sort.Slice(cfg.Resolved, func(i, j int) bool {
		return cfg.Resolved[i].ID < cfg.Resolved[j].ID
	})
	return nil
}
