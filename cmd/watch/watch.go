/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package watch provides the watch command for kiln.
package watch

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"bennypowers.dev/kiln/config"
	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/internal/metrics"
	"bennypowers.dev/kiln/livereload"
	kwatch "bennypowers.dev/kiln/watch"
)

// Cmd is the watch command.
var Cmd = &cobra.Command{
	Use:   "watch",
	Short: "Build, then rebuild on every change",
	Long: `Run a full build, then watch the source tree and rebuild what changes.
Removing a source removes its outputs. Editing a partial rebuilds every
file of the same type that includes it.

Settled changes in the destination tree are pushed to browsers through a
LiveReload server, which also serves Prometheus metrics on /metrics. Pass
an empty --livereload address to disable it.`,
	Example: `  kiln watch --source site --dest public
  kiln watch --livereload :35729 --debounce 500ms
  kiln watch --livereload ""`,
	RunE: run,
}

func init() {
	Cmd.Flags().String("livereload", "localhost:35729", "LiveReload and metrics listen address")
	Cmd.Flags().Duration("debounce", kwatch.DefaultWindow, "Window for coalescing destination changes")

	_ = viper.BindPFlag("livereload", Cmd.Flags().Lookup("livereload"))
	_ = viper.BindPFlag("debounce", Cmd.Flags().Lookup("debounce"))
}

func run(cmd *cobra.Command, args []string) error {
	osfs := fs.NewOSFileSystem()
	rec := metrics.New()
	env, err := config.Open(viper.GetViper(), osfs, cmd.ErrOrStderr(), rec)
	if err != nil {
		return err
	}
	log := env.Log
	ctx := cmd.Context()

	if _, err := env.Builder.Build(ctx); err != nil {
		log.WithError(err).Warn("initial build failed, watching anyway")
	}

	opts := kwatch.SessionOptions{Window: env.Config.Debounce, Log: log}
	g, ctx := errgroup.WithContext(ctx)

	if addr := env.Config.LiveReload; addr != "" {
		srv := livereload.New(log, rec.Handler())
		opts.Notifier = srv
		g.Go(func() error {
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return fmt.Errorf("livereload server: %w", err)
			}
			return nil
		})
	} else {
		opts.Notifier = kwatch.NotifierFunc(func(paths []string) {
			log.WithField("files", len(paths)).Info("output changed")
		})
	}

	session := kwatch.NewSession(env.Builder, opts)
	g.Go(func() error { return session.Run(ctx) })
	return g.Wait()
}
