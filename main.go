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

// Command kiln incrementally builds static assets from a source tree into a
// destination tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/kiln/cmd/build"
	"bennypowers.dev/kiln/cmd/clean"
	"bennypowers.dev/kiln/cmd/version"
	"bennypowers.dev/kiln/cmd/watch"
	"bennypowers.dev/kiln/config"
)

var (
	cfgFile        string
	cpuprofile     string
	cpuprofileFile *os.File
	rootCmd        = &cobra.Command{
		Use:   "kiln",
		Short: "Incrementally build static assets",
		Long: `kiln builds a destination tree from a source tree, running each file
through the transform pipeline mapped to its extension and skipping files
whose outputs are already up to date.

Settings come from flags, KILN_* environment variables (also read from a
.env file), and .kiln.yaml, in that order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(); err != nil {
				return err
			}
			if err := config.ReadFile(viper.GetViper(), cfgFile, "."); err != nil {
				return err
			}
			if cpuprofile != "" {
				f, err := os.Create(cpuprofile)
				if err != nil {
					return fmt.Errorf("could not create CPU profile: %w", err)
				}
				cpuprofileFile = f
				if err := pprof.StartCPUProfile(f); err != nil {
					closeErr := f.Close()
					return errors.Join(
						fmt.Errorf("could not start CPU profile: %w", err),
						closeErr,
					)
				}
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cpuprofileFile != nil {
				pprof.StopCPUProfile()
				if err := cpuprofileFile.Close(); err != nil {
					return fmt.Errorf("closing CPU profile: %w", err)
				}
			}
			return nil
		},
	}
)

func init() {
	config.SetDefaults(viper.GetViper())

	// Root flags (persistent across all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringP("source", "s", "src", "Source directory")
	flags.StringP("dest", "d", "dist", "Destination directory")
	flags.IntP("concurrency", "j", 0, "Files processed at once (default: number of CPUs)")
	flags.Bool("force", false, "Rebuild every file regardless of timestamps")
	flags.String("include-prefix", "_", "Basename prefix marking partials")
	flags.StringP("output", "o", "", "Report file (default: stdout)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (default: .kiln.yaml)")
	flags.StringVar(&cpuprofile, "cpuprofile", "", "Write CPU profile to file")

	for _, key := range []string{"source", "dest", "concurrency", "force", "include-prefix", "output", "log-level", "log-format"} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}

	// Add commands
	rootCmd.AddCommand(build.Cmd)
	rootCmd.AddCommand(clean.Cmd)
	rootCmd.AddCommand(watch.Cmd)
	rootCmd.AddCommand(version.Cmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
