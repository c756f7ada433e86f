package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"drop2print/internal/jobs"
)

var printCopies int

var printCmd = &cobra.Command{
	Use:   "print <file.pdf>...",
	Short: "Print local files and record them as jobs",
	Long: `Print stores a copy of each file in the upload directory, runs the print
command and records the job exactly like a web upload. The original files are
left untouched.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if printCopies < 0 {
			return fmt.Errorf("--copies must be at least 1")
		}
		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		failed := 0
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			job, err := a.jobs.Submit(cmd.Context(), jobs.Request{
				Filename: filepath.Base(path),
				Body:     f,
				Copies:   printCopies,
				Source:   jobs.SourceCLI,
			})
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s %s\n", job.ID, job.Filename, job.Status)
			if job.Error.Valid {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", job.Error.String)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d jobs failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	printCmd.Flags().IntVarP(&printCopies, "copies", "n", 0, "copies per file (default: stored setting)")
}
