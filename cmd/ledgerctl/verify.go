package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledgercore/jobs"
)

func newVerifyCommand(e *env) *cobra.Command {
	var institution string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay the journal and compare it with stored balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := e.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer ledger.Close()

			check := jobs.NewIntegrityJob(ledger.Institutions, ledger.Engine, e.logger, nil)
			found, err := check.Run(cmd.Context(), jobs.IntegrityPayload{InstitutionID: institution})
			out := cmd.OutOrStdout()
			for inst, diffs := range found {
				for _, d := range diffs {
					if err := printf(out, "%s\t%s\tstored=%s\treplayed=%s\n", inst, d.Code, d.Stored, d.Replayed); err != nil {
						return err
					}
				}
			}
			if err != nil && !errors.Is(err, jobs.ErrIntegrityViolation) {
				return err
			}
			if len(found) == 0 {
				return printf(out, "ledger consistent\n")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&institution, "institution", "", "limit the check to one institution")
	return cmd
}
