package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/bufferlab/internal/compare"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Measure how a CPU-bound workload scales with workers",
	Long: `Compute the same factorial on pools of 1 to --max-workers goroutines
and report the elapsed time for each pool size. With enough CPUs the time
stays roughly flat as workers are added, since goroutines run in parallel.`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

func init() {
	flags := compareCmd.Flags()
	flags.Int64P("number", "n", 0, "factorial computed by each worker")
	flags.Int("max-workers", 0, "largest pool size measured")

	_ = viper.BindPFlag("compare.number", flags.Lookup("number"))
	_ = viper.BindPFlag("compare.max_workers", flags.Lookup("max-workers"))

	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, _ []string) error {
	env, err := newEnvironment(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	rep, err := compare.Run(cmd.Context(), compare.Config{
		Number:     env.cfg.Compare.Number,
		MaxWorkers: env.cfg.Compare.MaxWorkers,
	}, env.logger)
	if rep != nil && len(rep.Measurements) > 0 {
		if rerr := env.out.Compare(rep); rerr != nil {
			return rerr
		}
	}
	return err
}
