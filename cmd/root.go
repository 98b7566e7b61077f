// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/avroingest/internal/dataset"
)

var (
	configFile string

	// helpRequested is set whenever help is printed, so Execute can exit
	// non-zero for -h and bare invocations.
	helpRequested bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "avroingest",
	Short: "Load Avro datasets into an embedded query engine",
	Long: `Read Avro object container files from local disk or object storage, apply
optional renames, SQL, unions and partitioning, and register the result
under a logical name for downstream stages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./avroingest.yaml)")

	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		helpRequested = true
		defaultHelp(c, args)
	})
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return dataset.NewConfigError("flags", err.Error())
	})

	rootCmd.AddCommand(debugCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitCode(err))
	}
	if helpRequested {
		os.Exit(1)
	}
}
