package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"
)

func newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms [platform]",
		Short: "Describe the registered platform schemas",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := schema.Default().Describe()
			if len(args) == 1 {
				filtered := infos[:0]
				for _, info := range infos {
					if string(info.Platform) == args[0] {
						filtered = append(filtered, info)
					}
				}
				if len(filtered) == 0 {
					return fmt.Errorf("%w: %q", schema.ErrUnknownPlatform, args[0])
				}
				infos = filtered
			}

			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), infos)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\n", info.Platform)
				for _, f := range info.Fields {
					req := "optional"
					if f.Required {
						req = "required"
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Name, f.Kind, req, strings.Join(f.Allowed, ","))
				}
			}
			return tw.Flush()
		},
	}
}
