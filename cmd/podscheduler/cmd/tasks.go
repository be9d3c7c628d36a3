package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/armadaproject/podscheduler/internal/scheduler"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Lists the tasks in the state store with their latest status",
		RunE:  listTasks,
	}
	return cmd
}

func listTasks(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	persister, cleanup, err := scheduler.NewPersister(cmd.Context(), config, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer cleanup()
	store, err := scheduler.NewReadOnlyStateStore(persister, config.StateStore)
	if err != nil {
		return err
	}
	records, err := store.FetchRecords()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 1, 1, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tHOST\tID\tSTATE\tMESSAGE")
	for _, record := range records {
		host, id, state, message := "-", "-", "-", ""
		if record.Info != nil {
			host, id = record.Info.Hostname, string(record.Info.ID)
		}
		if record.Status != nil {
			state, message = record.Status.State.String(), record.Status.Message
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", record.Name, host, id, state, message)
	}
	return w.Flush()
}
