package main

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/momentics/lockedalloc/allocator"
	"github.com/momentics/lockedalloc/api"
	"github.com/momentics/lockedalloc/control"
)

var (
	stressWorkers       int
	stressIterations    int
	stressMaxSize       int
	stressHeld          int
	stressPoolStep      int
	stressPoolSize      int
	stressRequireLocked bool
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVarP(&stressWorkers, "workers", "w", 8, "Concurrent workers")
	cmd.Flags().IntVarP(&stressIterations, "iterations", "n", 10000, "Operations per worker")
	cmd.Flags().IntVar(&stressMaxSize, "max-size", 4096, "Largest allocation in bytes")
	cmd.Flags().IntVar(&stressHeld, "held", 32, "Buffers each worker keeps live at most")
	cmd.Flags().IntVar(&stressPoolStep, "pool-step", allocator.DefaultPoolStep, "Pools added per growth")
	cmd.Flags().IntVar(&stressPoolSize, "pool-size", 0, "Arena size in bytes (0 = default)")
	cmd.Flags().BoolVar(&stressRequireLocked, "require-locked", false, "Fail instead of using unlocked memory")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a concurrent allocate/free workload",
		Long: `The stress command starts several workers that allocate and free
buffers of random size, checking every buffer is zeroed on issue and keeps
its contents until freed. It then reports allocator statistics and the fill
rate of the pools.

LOCKEDALLOC_* environment variables override the flags.

Example:
  lockedallocctl stress
  lockedallocctl stress --workers 16 --iterations 50000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
	return cmd
}

type stressResult struct {
	Elapsed time.Duration  `json:"elapsed_ns"`
	Ops     int            `json:"ops"`
	Stats   map[string]any `json:"stats"`
}

func runStress() error {
	if stressWorkers <= 0 || stressIterations <= 0 || stressMaxSize <= 0 || stressHeld <= 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "workers, iterations, max-size and held must be positive").
			WithContext("workers", stressWorkers).
			WithContext("iterations", stressIterations).
			WithContext("max_size", stressMaxSize).
			WithContext("held", stressHeld)
	}

	opts := []allocator.Option{
		allocator.WithPoolStep(stressPoolStep),
		allocator.WithPoolSize(stressPoolSize),
		allocator.WithLogger(newLogger()),
	}
	if stressRequireLocked {
		opts = append(opts, allocator.WithRequireLocked())
	}
	cfg := allocator.DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	cfg, err := allocator.ConfigFromEnv(cfg)
	if err != nil {
		return err
	}
	a, err := allocator.NewWithConfig(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl := control.NewController(a)
	printVerbose("Running %d workers x %d operations\n", stressWorkers, stressIterations)

	start := time.Now()
	errs := make([]error, stressWorkers)
	var wg sync.WaitGroup
	for w := 0; w < stressWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			errs[id] = stressWorker(a, id)
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	res := stressResult{
		Elapsed: elapsed,
		Ops:     stressWorkers * stressIterations,
		Stats:   ctrl.Stats(),
	}
	if jsonOut {
		return printJSON(res)
	}

	st := a.Stats()
	fr := a.FillRate()
	printInfo("\nStress Results:\n")
	printInfo("  Operations:     %d in %s\n", res.Ops, elapsed.Round(time.Millisecond))
	printInfo("  Allocations:    %d\n", st.Allocations)
	printInfo("  Frees:          %d\n", st.Frees)
	printInfo("  Grows:          %d\n", st.Grows)
	printInfo("  Retirements:    %d\n", st.Retirements)
	printInfo("  Active pools:   %d (%d spare)\n", st.ActivePools, st.SparePools)
	printInfo("  Locked:         %s\n", formatBytes(st.LockedBytes))
	printInfo("  Quota refusals: %d\n", st.QuotaRefusal)
	printInfo("\nFill Rate:\n")
	printInfo("  High density:   %.1f%%\n", fr.HighDensity*100)
	printInfo("  Low density:    %.1f%%\n", fr.LowDensity*100)
	printInfo("  Free bytes:     %s\n", formatBytes(fr.FreeBytes))
	return nil
}

func stressWorker(a *allocator.Allocator, id int) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	mark := byte(id%255 + 1)
	held := make([]*allocator.Buffer, 0, stressHeld)
	defer func() {
		for _, b := range held {
			b.Free()
		}
	}()

	for i := 0; i < stressIterations; i++ {
		if len(held) < stressHeld && (len(held) == 0 || rng.Intn(2) == 0) {
			b, err := a.Allocate(1 + rng.Intn(stressMaxSize))
			if err != nil {
				return errors.Wrapf(err, "worker %d", id)
			}
			data := b.Bytes()
			for j := range data {
				if data[j] != 0 {
					return errors.Newf("worker %d: buffer not zeroed at byte %d", id, j)
				}
				data[j] = mark
			}
			held = append(held, b)
			continue
		}
		k := rng.Intn(len(held))
		for j, v := range held[k].Bytes() {
			if v != mark {
				return errors.Newf("worker %d: buffer overwritten at byte %d", id, j)
			}
		}
		held[k].Free()
		held[k] = held[len(held)-1]
		held = held[:len(held)-1]
	}
	return nil
}
