package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/bufferlab/internal/race"
)

var raceCmd = &cobra.Command{
	Use:   "race",
	Short: "Race a shared counter with and without a lock",
	Long: `Run incrementing and decrementing workers against one shared counter,
first without synchronization and then with a shared lock.

Without the lock, read-modify-write updates interleave and some are lost,
so the final value drifts from the expected one. With the lock the result
is exact, at the cost of the time reported as lock overhead.

Use --trials to repeat only the unlocked run and count how often it diverges.`,
	Args: cobra.NoArgs,
	RunE: runRace,
}

func init() {
	flags := raceCmd.Flags()
	flags.IntP("iterations", "n", 0, "updates per worker")
	flags.Int("incrementers", 0, "number of incrementing workers")
	flags.Int("decrementers", 0, "number of decrementing workers")
	flags.Bool("race-window", true, "yield inside unlocked updates to widen the race")
	flags.Int("trials", 0, "repeat the unlocked run this many times instead")
	flags.Int("join-timeout-ms", 0, "bound each pool join (0 waits forever)")

	_ = viper.BindPFlag("race.iterations", flags.Lookup("iterations"))
	_ = viper.BindPFlag("race.incrementers", flags.Lookup("incrementers"))
	_ = viper.BindPFlag("race.decrementers", flags.Lookup("decrementers"))
	_ = viper.BindPFlag("race.race_window", flags.Lookup("race-window"))
	_ = viper.BindPFlag("race.trials", flags.Lookup("trials"))
	_ = viper.BindPFlag("pool.join_timeout_ms", flags.Lookup("join-timeout-ms"))

	rootCmd.AddCommand(raceCmd)
}

func runRace(cmd *cobra.Command, _ []string) error {
	env, err := newEnvironment(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	cfg := env.cfg
	h, err := race.New(race.Config{
		Iterations:   cfg.Race.Iterations,
		Incrementers: cfg.Race.Incrementers,
		Decrementers: cfg.Race.Decrementers,
		JoinTimeout:  cfg.Pool.JoinTimeout(),
		RaceWindow:   cfg.Race.RaceWindow,
	}, race.WithLogger(env.logger), race.WithBus(env.bus), race.WithPoolObserver(env.metrics))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if cfg.Race.Trials > 0 {
		sum, err := h.Trials(ctx, cfg.Race.Trials)
		if sum != nil && sum.Trials > 0 {
			if rerr := env.out.Trials(sum); rerr != nil {
				return rerr
			}
		}
		return err
	}

	res, err := h.Run(ctx)
	if res != nil {
		if rerr := env.out.Race(res); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return err
	}
	for _, p := range []race.PhaseResult{res.Unlocked, res.Locked} {
		if p.Err != nil {
			return fmt.Errorf("%s phase did not complete cleanly", p.Name)
		}
	}
	return nil
}
