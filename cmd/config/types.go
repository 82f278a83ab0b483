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

// CliConfig carries the command-line settings shared by every
// subcommand.
type CliConfig struct {
	ConfigPath string
	DBPath     string
	CacheDir   string
	MediaDir   string
	Listen     string
	LogLevel   string
	LogFormat  string
	BatchSize  uint
	Debug      bool
}
