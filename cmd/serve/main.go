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

package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/OllieJones/post-from-email/cmd/config"
	"github.com/OllieJones/post-from-email/profile"
	"github.com/OllieJones/post-from-email/runner"
	"github.com/OllieJones/post-from-email/webhook"
)

// pollTick is how often the scheduler checks whether any profile's
// polling interval has elapsed.
const pollTick = time.Minute

const sweepInterval = time.Hour

func RegisterCommand(app *cli.App) *cli.App {
	cfg := &config.CliConfig{}
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "serve",
		Usage:  "Serve the ingress endpoints and poll mailboxes on schedule",
		Flags:  cfg.Parameters(),
		Action: func(context *cli.Context) error { return serve(context, cfg) },
	})
	return app
}

func serve(_ *cli.Context, cfg *config.CliConfig) error {
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
		"listen":     cfg.Listen,
		"base_url":   conf.BaseURL,
		"profiles":   len(conf.Resolved),
		"log_level":  cfg.LogLevel,
		"log_format": cfg.LogFormat,
	}).Info("starting")

	components, err := config.Build(cfg, &conf)
	if err != nil {
		return err
	}
	defer func() { _ = components.Close() }()

	hook := &webhook.Handler{
		Profiles:   components.ProfileMap,
		Transform:  components.Runner.Transform,
		Log:        components.Log,
		Sanitizer:  components.Sanitizer,
		Transients: components.Store,
	}

	mux := http.NewServeMux()
	hook.Register(mux)
	mux.Handle("/cache/", http.StripPrefix("/cache/", http.FileServer(http.Dir(components.CacheDir))))
	mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(components.MediaDir))))

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	doneChan := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		doneChan <- err
	}()

	stopChan := make(chan struct{})
	go schedule(components.Runner, components.Profiles, stopChan)
	go sweeper(components, stopChan)

	sigchan := make(chan os.Signal, 10)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)

	sigcount := 0
	for {
		select {
		case sig := <-sigchan:
			log.WithFields(log.Fields{"signal": sig, "count": sigcount}).Trace("caught_signal")

			sigcount += 1
			if sigcount > 1 {
				log.WithFields(log.Fields{"signal": sig}).Warn("received_interrupt_force_exit")
				os.Exit(1)
			}
			log.WithFields(log.Fields{"signal": sig}).Info("received_interrupt")

			close(stopChan)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := server.Shutdown(ctx)
			cancel()
			if err != nil {
				log.WithError(err).Warn("shutdown_failed")
			}
		case err := <-doneChan:
			log.Info("server_terminated")
			return err
		}
	}
}

// schedule polls each profile on its own cadence. Due times are kept in
// memory; a restart polls everything on the first tick.
func schedule(r *runner.Runner, profiles []runner.Profile, stop <-chan struct{}) {
	due := make(map[int64]time.Time, len(profiles))

	ticker := time.NewTicker(pollTick)
	defer ticker.Stop()

	for {
		now := time.Now()
		var batch []runner.Profile
		for _, p := range profiles {
			interval, ok := profile.Timings[p.Profile.Timing]
			if !ok || !p.Profile.Enabled() {
				continue
			}
			if now.Before(due[p.ID]) {
				continue
			}
			batch = append(batch, p)
			due[p.ID] = now.Add(interval)
		}

		if len(batch) > 0 {
			r.Run(batch)
		}

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// sweeper prunes expired cached documents.
func sweeper(components *config.Components, stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := components.Sanitizer.Sweep(); err != nil {
				log.WithError(err).Warn("sweep_failed")
			}
		}
	}
}
