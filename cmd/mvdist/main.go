package main

import (
	"fmt"
	"os"

	"gomvdist/internal/container"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. opts are applied to the container that
// every subcommand shares.
func newRootCmd(opts ...container.Option) *cobra.Command {
	app := &cliApp{opts: opts}

	rootCmd := &cobra.Command{
		Use:   "mvdist",
		Short: "Multivariate normal and Student-t rectangle probabilities",
		Long: `Compute rectangle probabilities and critical values of the multivariate
normal and Student-t distributions over linearly constrained regions.

Configuration is read from the environment (and a .env file if present):
- MVDIST_MAX_EVALUATIONS (default: 100000)
- MVDIST_ABS_TOLERANCE (default: 1e-5)
- MVDIST_REL_TOLERANCE (default: 0)
- MVDIST_BATCH_WORKERS (default: 4)
- PORT (default: 8080)
- LOG_LEVEL=ERROR|WARN|INFO|DEBUG|TRACE (default: INFO)`,
		SilenceUsage:      true,
		PersistentPreRunE: app.init,
	}
	rootCmd.PersistentFlags().StringVarP(&app.format, "output", "o", "yaml", "Output format: yaml|json")

	rootCmd.AddCommand(
		newProbCmd(app),
		newCritCmd(app),
		newCovCmd(app),
		newServeCmd(app),
	)
	return rootCmd
}
