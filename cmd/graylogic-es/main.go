// Command graylogic-es validates and imports KNX entity store records
// without running the service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/gray-logic-entities/migrations"
)

// Version information - set at build time via ldflags
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "graylogic-es <command>",
		Short:         "Validate and import KNX entity store records",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "output as JSON")

	root.AddCommand(newValidateCmd(), newPlatformsCmd(), newImportCmd(), newHashPasswordCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
