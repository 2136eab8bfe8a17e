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

// Package clean provides the clean command for kiln.
package clean

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/kiln/build"
	"bennypowers.dev/kiln/config"
	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/internal/output"
)

// Cmd is the clean command.
var Cmd = &cobra.Command{
	Use:   "clean [sources...]",
	Short: "Remove destination files that no source produces",
	Long: `Remove every file in the destination tree that no file in the source tree
could have produced, including compressed and source-map layers of removed
outputs. Clean refuses to run when the destination is inside the source tree.

With source arguments, remove the outputs of those sources instead.`,
	Example: `  kiln clean --dest public
  kiln clean css/old.css`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "text", "Report format (text, json)")
}

func run(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}

	osfs := fs.NewOSFileSystem()
	env, err := config.Open(viper.GetViper(), osfs, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}

	var result *build.Result
	if len(args) > 0 {
		result, err = env.Builder.CleanFiles(cmd.Context(), args)
	} else {
		result, err = env.Builder.Clean(cmd.Context())
	}
	if result != nil {
		if werr := output.Result(osfs, result, env.Config.Dest, format); werr != nil {
			return errors.Join(err, werr)
		}
	}
	return err
}
