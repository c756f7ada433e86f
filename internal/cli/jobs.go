package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent print jobs and counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		list, err := a.store.ListRecentJobs(ctx, jobsLimit)
		if err != nil {
			return err
		}
		total, err := a.store.CountJobs(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILE\tCOPIES\tSTATUS\tCREATED\tERROR")
		for _, j := range list {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
				j.ID, j.Filename, j.Copies, j.Status,
				humanize.RelTime(j.CreatedAt, time.Now(), "ago", "from now"),
				j.Error.String)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s jobs in total\n", humanize.Comma(int64(total)))
		return nil
	},
}

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "l", 25, "number of jobs to show")
}
