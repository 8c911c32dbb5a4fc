package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexcodex/fitcoach/smoke"
)

func newSmokeCmd() *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run the end-to-end smoke suite against the configured stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			orc, cleanup, err := buildOrchestrator()
			if err != nil {
				return err
			}
			defer cleanup()

			runner := &smoke.Runner{Orchestrator: orc, Backend: orc.Backend, Only: only}
			outcomes := runner.Run(cmd.Context(), smoke.DefaultSuite())
			fmt.Fprintln(cmd.OutOrStdout(), smoke.Report(outcomes))
			if smoke.Failed(outcomes) {
				return errors.New("smoke suite failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&only, "scenario", "", "Run only the named scenario")
	return cmd
}
