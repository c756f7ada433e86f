package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or change the copies-per-job setting",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the copies-per-job setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.Copies(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "copies=%d\n", n)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <copies>",
	Short: "Change the copies-per-job setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("copies must be an integer >= 1, got %q", args[0])
		}
		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.SetCopies(cmd.Context(), n); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "copies=%d\n", n)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}
