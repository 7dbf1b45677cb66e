package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/termrun/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Build()
			line := fmt.Sprintf("%s %s", info.Module, info.Version)
			if info.Revision != "" {
				rev := info.Revision
				if len(rev) > 12 {
					rev = rev[:12]
				}
				line += " (" + rev
				if info.Dirty {
					line += ", dirty"
				}
				line += ")"
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), line)
			return err
		},
	}
}
