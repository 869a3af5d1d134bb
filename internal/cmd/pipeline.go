package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/bufferlab/internal/pipeline"
	"github.com/Iron-Ham/bufferlab/internal/report"
	"github.com/Iron-Ham/bufferlab/internal/tui"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Move items from producers to consumers through a bounded buffer",
	Long: `Start a pool of producers and a pool of consumers sharing one bounded
buffer. Producers put pairs of numbers, consumers multiply them. Producers
block while the buffer is full and consumers block while it is empty.

When every producer has finished the buffer is closed; consumers drain what
is left and stop. The summary checks that every item was consumed once.

A capacity of 1 makes the buffer a strict hand-off slot. Use --watch on a
terminal to see buffer occupancy live.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

var pipelineWatch bool

func init() {
	flags := pipelineCmd.Flags()
	flags.Int("capacity", 0, "buffer capacity")
	flags.IntP("producers", "p", 0, "number of producers")
	flags.IntP("consumers", "w", 0, "number of consumers")
	flags.IntP("items", "n", 0, "items put by each producer")
	flags.Int64("max-value", 0, "upper bound for generated numbers")
	flags.Uint64("seed", 0, "seed for generated numbers")
	flags.Int("produce-delay-ms", 0, "pause after each put")
	flags.Int("consume-delay-ms", 0, "pause after each get")
	flags.Int("join-timeout-ms", 0, "bound each stage join (0 waits forever)")
	flags.BoolVar(&pipelineWatch, "watch", false, "show a live view of the buffer (terminal only)")

	_ = viper.BindPFlag("buffer.capacity", flags.Lookup("capacity"))
	_ = viper.BindPFlag("pipeline.producers", flags.Lookup("producers"))
	_ = viper.BindPFlag("pipeline.consumers", flags.Lookup("consumers"))
	_ = viper.BindPFlag("pipeline.items_per_producer", flags.Lookup("items"))
	_ = viper.BindPFlag("pipeline.max_value", flags.Lookup("max-value"))
	_ = viper.BindPFlag("pipeline.seed", flags.Lookup("seed"))
	_ = viper.BindPFlag("pipeline.produce_delay_ms", flags.Lookup("produce-delay-ms"))
	_ = viper.BindPFlag("pipeline.consume_delay_ms", flags.Lookup("consume-delay-ms"))

	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	env, err := newEnvironment(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	cfg := env.cfg
	joinTimeout := cfg.Pool.JoinTimeout()
	if cmd.Flags().Changed("join-timeout-ms") {
		ms, _ := cmd.Flags().GetInt("join-timeout-ms")
		joinTimeout = msDuration(ms)
	}

	r, err := pipeline.New(pipeline.Config{
		Capacity:         cfg.Buffer.Capacity,
		Producers:        cfg.Pipeline.Producers,
		Consumers:        cfg.Pipeline.Consumers,
		ItemsPerProducer: cfg.Pipeline.ItemsPerProducer,
		MaxValue:         cfg.Pipeline.MaxValue,
		Seed:             cfg.Pipeline.Seed,
		ProduceDelay:     cfg.Pipeline.ProduceDelay(),
		ConsumeDelay:     cfg.Pipeline.ConsumeDelay(),
		JoinTimeout:      joinTimeout,
	},
		pipeline.WithLogger(env.logger),
		pipeline.WithBus(env.bus),
		pipeline.WithBufferObserver(env.metrics),
		pipeline.WithPoolObserver(env.metrics),
	)
	if err != nil {
		return err
	}

	var sum *pipeline.Summary
	if pipelineWatch && env.format == report.FormatText && isTerminal(cmd) {
		title := fmt.Sprintf("%d producer(s) → buffer[%d] → %d consumer(s)",
			cfg.Pipeline.Producers, cfg.Buffer.Capacity, cfg.Pipeline.Consumers)
		sum, err = tui.Watch(cmd.Context(), title, r.Stats, func(ctx context.Context) (*pipeline.Summary, error) {
			return r.Run(ctx)
		})
	} else {
		if pipelineWatch {
			env.logger.Warn("--watch needs a terminal and text output; running without the live view")
		}
		sum, err = r.Run(cmd.Context())
	}

	if sum != nil {
		if rerr := env.out.Pipeline(sum); rerr != nil {
			return rerr
		}
	}
	return err
}

// isTerminal reports whether the command writes to an interactive terminal.
func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
