// Package versioncmder
package versioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/utils"
)

type VersionCommander struct {
	short bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().BoolVarP(&cmder.short, "short", "s", false, "Print only the version number")

	return cmd
}

func (c *VersionCommander) run(cmd *cobra.Command) error {
	if c.short {
		fmt.Fprintln(cmd.OutOrStdout(), utils.Version)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), utils.VersionInfo())
	return nil
}
