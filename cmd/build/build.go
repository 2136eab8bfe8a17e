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

// Package build provides the build command for kiln.
package build

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	kbuild "bennypowers.dev/kiln/build"
	"bennypowers.dev/kiln/config"
	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/internal/output"
)

// Cmd is the build command.
var Cmd = &cobra.Command{
	Use:   "build [files...]",
	Short: "Build stale files from the source tree into the destination tree",
	Long: `Build every source file whose output is missing or older than the source,
or than any file it includes. Each file runs through the pipeline mapped to
its extension, and all files are attempted even when some fail.

With file arguments only those files are built. Paths are relative to the
source directory unless absolute.`,
	Example: `  # Build the whole tree
  kiln build --source site --dest public

  # Rebuild everything with 8 workers
  kiln build --force -j 8

  # Build specific files or a glob
  kiln build index.md css/site.css
  kiln build --glob "docs/**/*.md"

  # Machine-readable report
  kiln build --format json --output report.json`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("glob", "g", "", "Only build sources matching a doublestar pattern")
	Cmd.Flags().StringP("format", "f", "text", "Report format (text, json)")
}

func run(cmd *cobra.Command, args []string) error {
	glob, err := cmd.Flags().GetString("glob")
	if err != nil {
		return fmt.Errorf("error reading glob flag: %w", err)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}
	if glob != "" && len(args) > 0 {
		return errors.New("--glob cannot be combined with file arguments")
	}

	osfs := fs.NewOSFileSystem()
	env, err := config.Open(viper.GetViper(), osfs, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var result *kbuild.Result
	switch {
	case glob != "":
		result, err = env.Builder.BuildGlob(ctx, glob)
	case len(args) > 0:
		result, err = env.Builder.BuildFiles(ctx, args)
	default:
		result, err = env.Builder.Build(ctx)
	}
	if result != nil {
		if werr := output.Result(osfs, result, env.Config.Source, format); werr != nil {
			return errors.Join(err, werr)
		}
	}
	return err
}
