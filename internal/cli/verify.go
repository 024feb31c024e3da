package cli

import (
	"github.com/spf13/cobra"

	"github.com/arthur-debert/bootonce/pkg/logging"
	"github.com/arthur-debert/bootonce/pkg/verify"
)

func newVerifyCmd(g *globals) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:     "verify [LOGFILE]",
		Short:   MsgVerifyShort,
		Long:    MsgVerifyLong,
		Example: MsgVerifyExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := logging.LogFilePath()
			if len(args) == 1 {
				path = args[0]
			}

			res, checkErr := verify.CheckFile(path, verify.Options{
				Marker:   g.cfg.Diagnostics.InitMarker,
				Expected: g.cfg.Diagnostics.ExpectedCount,
				RunID:    runID,
			})

			r, err := g.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := r.RenderVerify(res); err != nil {
				return err
			}
			return checkErr
		},
	}

	cmd.Flags().String("marker", "", "Marker text to count (default [diagnostics] init_marker)")
	cmd.Flags().Int("expect", verify.DefaultExpected, "Expected number of marker lines")
	cmd.Flags().StringVar(&runID, "run-id", "", "Only count JSON lines from this run (see the run_id in run output)")

	return cmd
}
