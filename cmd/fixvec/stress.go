package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"runtime"
	"time"

	"github.com/plus3/fixvec/indexed"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type stressConfig struct {
	Duration       time.Duration
	Workers        int
	Entries        int
	OpsPerRound    int
	RemoveRatio    float64
	ClearEvery     int
	CheckEvery     int
	Seed           uint64
	GCPauseMetrics bool
}

// payload remembers the index it was pushed under so lookups can prove the
// index still refers to it.
type payload struct {
	Index  int
	Worker int
	Round  int
}

type workerResult struct {
	Rounds  int64
	Ops     int64
	Samples []time.Duration
	Stats   indexed.Stats
}

func newStressCommand() *cobra.Command {
	cfg := stressConfig{}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Hammer stores with random pushes, removals and lookups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			report, err := runStress(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\n--- Stress Test Report ---")
			if err := report.Generate(out); err != nil {
				return fmt.Errorf("failed to generate report: %w", err)
			}
			fmt.Fprintln(out, "--- End of Report ---")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&cfg.Duration, "duration", 10*time.Second, "The total duration the test should run for.")
	flags.IntVar(&cfg.Workers, "workers", runtime.GOMAXPROCS(0), "Number of workers, each owning its own store.")
	flags.IntVar(&cfg.Entries, "entries", 10000, "The initial number of values pushed into each store.")
	flags.IntVar(&cfg.OpsPerRound, "ops", 1000, "Operations per timed round.")
	flags.Float64Var(&cfg.RemoveRatio, "remove-ratio", 0.5, "Probability that an operation removes instead of pushes.")
	flags.IntVar(&cfg.ClearEvery, "clear-every", 500, "Alternately Clear and Reset each store every N rounds (0 disables).")
	flags.IntVar(&cfg.CheckEvery, "check-every", 50, "Verify Len against a full iteration every N rounds.")
	flags.Uint64Var(&cfg.Seed, "seed", uint64(os.Getpid()), "Random seed.")
	flags.BoolVar(&cfg.GCPauseMetrics, "gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	return cmd
}

func (c stressConfig) validate() error {
	switch {
	case c.Duration <= 0:
		return fmt.Errorf("--duration must be positive")
	case c.Workers <= 0:
		return fmt.Errorf("--workers must be positive")
	case c.Entries < 0:
		return fmt.Errorf("--entries must not be negative")
	case c.OpsPerRound <= 0:
		return fmt.Errorf("--ops must be positive")
	case c.RemoveRatio < 0 || c.RemoveRatio > 1:
		return fmt.Errorf("--remove-ratio must be within [0, 1]")
	case c.ClearEvery < 0 || c.CheckEvery < 0:
		return fmt.Errorf("--clear-every and --check-every must not be negative")
	}
	return nil
}

func runStress(ctx context.Context, cfg stressConfig, logger *slog.Logger) (*Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	report := &Report{
		Duration:       cfg.Duration,
		Workers:        cfg.Workers,
		Entries:        cfg.Entries,
		OpsPerRound:    cfg.OpsPerRound,
		RemoveRatio:    cfg.RemoveRatio,
		GCPauseMetrics: cfg.GCPauseMetrics,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	logger.Info("starting stress test",
		"duration", cfg.Duration,
		"workers", cfg.Workers,
		"entries", cfg.Entries,
		"seed", cfg.Seed,
	)

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	results := make([]workerResult, cfg.Workers)
	g, ctx := errgroup.WithContext(ctx)
	startTime := time.Now()
	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			res, err := runWorker(ctx, w, cfg, logger)
			results[w] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.TotalTime = time.Since(startTime)

	for _, res := range results {
		report.TotalRounds += res.Rounds
		report.TotalOps += res.Ops
		report.RoundTime.Samples = append(report.RoundTime.Samples, res.Samples...)
		report.Final.NextIndex += res.Stats.NextIndex
		report.Final.Occupied += res.Stats.Occupied
		report.Final.Empty += res.Stats.Empty
		report.Final.Blocks += res.Stats.Blocks
	}
	if report.Final.NextIndex > 0 {
		report.Final.FillRatio = float64(report.Final.Occupied) / float64(report.Final.NextIndex)
	}
	report.RoundTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)

	logger.Info("stress test finished",
		"rounds", report.TotalRounds,
		"ops", report.TotalOps,
		"elapsed", report.TotalTime,
	)
	return report, nil
}

func runWorker(ctx context.Context, id int, cfg stressConfig, logger *slog.Logger) (workerResult, error) {
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(id)))
	store := indexed.New[payload]()
	live := make([]int, 0, cfg.Entries)
	var res workerResult

	push := func(round int) error {
		want := store.NextIndex()
		got := store.Push(payload{Index: want, Worker: id, Round: round})
		if got != want {
			return fmt.Errorf("worker %d: push assigned index %d, expected %d", id, got, want)
		}
		live = append(live, got)
		return nil
	}

	populate := func() error {
		for i := 0; i < cfg.Entries; i++ {
			if err := push(0); err != nil {
				return err
			}
		}
		return nil
	}

	if err := populate(); err != nil {
		return res, err
	}

	for round := 1; ; round++ {
		select {
		case <-ctx.Done():
			res.Stats = store.Stats()
			return res, nil
		default:
		}

		start := time.Now()
		for op := 0; op < cfg.OpsPerRound; op++ {
			if len(live) > 0 && rng.Float64() < cfg.RemoveRatio {
				k := rng.IntN(len(live))
				index := live[k]
				live[k] = live[len(live)-1]
				live = live[:len(live)-1]

				v, ok := store.Remove(index)
				if !ok || v.Index != index {
					return res, fmt.Errorf("worker %d: remove(%d) returned %+v, %v", id, index, v, ok)
				}
				if _, ok := store.Remove(index); ok {
					return res, fmt.Errorf("worker %d: second remove(%d) returned a value", id, index)
				}
			} else if err := push(round); err != nil {
				return res, err
			}

			if len(live) > 0 {
				index := live[rng.IntN(len(live))]
				v, ok := store.Get(index)
				if !ok || v.Index != index {
					return res, fmt.Errorf("worker %d: get(%d) returned %+v, %v", id, index, v, ok)
				}
			}
		}
		res.Samples = append(res.Samples, time.Since(start))
		res.Rounds++
		res.Ops += int64(cfg.OpsPerRound)

		if cfg.CheckEvery > 0 && round%cfg.CheckEvery == 0 {
			if err := checkStore(store, len(live)); err != nil {
				return res, fmt.Errorf("worker %d round %d: %w", id, round, err)
			}
		}

		if cfg.ClearEvery > 0 && round%cfg.ClearEvery == 0 {
			before := store.NextIndex()
			if (round/cfg.ClearEvery)%2 == 1 {
				store.Clear()
				if store.NextIndex() != before {
					return res, fmt.Errorf("worker %d: clear moved next index from %d to %d", id, before, store.NextIndex())
				}
			} else {
				store.Reset()
				if store.NextIndex() != 0 {
					return res, fmt.Errorf("worker %d: reset left next index at %d", id, store.NextIndex())
				}
			}
			live = live[:0]
			logger.Debug("store emptied", "worker", id, "round", round, "next_index", store.NextIndex())
			if err := populate(); err != nil {
				return res, err
			}
		}
	}
}

// checkStore verifies that Len agrees with a full traversal and that the
// traversal is strictly ascending.
func checkStore(store *indexed.Store[payload], expected int) error {
	count := 0
	last := -1
	for i, v := range store.All() {
		if i <= last {
			return fmt.Errorf("iteration yielded index %d after %d", i, last)
		}
		if v.Index != i {
			return fmt.Errorf("index %d holds value pushed as %d", i, v.Index)
		}
		last = i
		count++
	}
	if count != store.Len() || count != expected {
		return fmt.Errorf("iteration yielded %d entries, Len is %d, expected %d", count, store.Len(), expected)
	}
	return nil
}
