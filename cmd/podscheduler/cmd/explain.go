package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/armadaproject/podscheduler/internal/scheduler"
)

func explainCmd() *cobra.Command {
	args := &placementArgs{}
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explains how each offer fares against a pod instance's placement rule, without placing anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return explain(cmd, args)
		},
	}
	args.addFlags(cmd)
	return cmd
}

func explain(cmd *cobra.Command, args *placementArgs) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	pod, offers, err := args.load()
	if err != nil {
		return err
	}
	evaluator, cleanup, err := openEvaluator(cmd.Context(), config)
	if err != nil {
		return err
	}
	defer cleanup()

	outcomes, err := evaluator.Explain(pod, offers)
	if err != nil {
		return err
	}
	writeOutcomes(cmd.OutOrStdout(), outcomes)
	return nil
}

func writeOutcomes(out io.Writer, outcomes []*scheduler.OfferOutcome) {
	for _, outcome := range outcomes {
		fmt.Fprintf(out, "Offer %s on %s:\n%s\n", outcome.Offer.ID, outcome.Offer.Hostname, outcome.Outcome)
	}
}
