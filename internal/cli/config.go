package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/bootonce/pkg/config"
)

func newConfigCmd(g *globals) *cobra.Command {
	var showPath bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: MsgConfigShort,
		Long:  MsgConfigLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showPath {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), config.DefaultPath())
				return err
			}
			data, err := config.Marshal(g.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&showPath, "path", false, "Print the user config file location instead")
	return cmd
}
