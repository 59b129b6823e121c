package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskrt/taskrt"
)

var (
	cfgPath            string
	workerThreads      int
	maxBlockingThreads int
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskrtctl",
		Short: "Start and exercise a taskrt runtime from the command line",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "",
		"runtime config file path (TOML); defaults are used if omitted")
	root.AddCommand(newRunCmd(), newInitConfigCmd())
	return root
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "write a default runtime config to the given path",
		RunE: func(_ *cobra.Command, args []string) error {
			path := "taskrt.toml"
			if len(args) > 0 {
				path = args[0]
			}
			return taskrt.SaveConfig(path, taskrt.DefaultConfig())
		},
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "start a runtime and run a small built-in workload to demonstrate it",
		RunE:  runDemo,
	}
	cmd.Flags().IntVar(&workerThreads, "worker-threads", 0, "worker OS thread count (0 = default)")
	cmd.Flags().IntVar(&maxBlockingThreads, "max-blocking-threads", 0, "blocking pool ceiling (0 = default)")
	return cmd
}

func runDemo(_ *cobra.Command, _ []string) error {
	opts := loadOpts()
	rt, err := taskrt.Build(opts...)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer rt.Shutdown(10 * time.Second)

	rt.BlockOn(func(ctx *taskrt.Context) any {
		jh := taskrt.SpawnFunc(ctx, func() int {
			sum := 0
			for i := 1; i <= 100; i++ {
				sum += i
			}
			return sum
		})
		v, err := jh.Wait(ctx.Std())
		if err != nil {
			fmt.Printf("demo task failed: %v\n", err)
			return nil
		}
		fmt.Printf("demo task result: %d\n", v)
		return nil
	})
	return nil
}

func loadOpts() []taskrt.Option {
	var opts []taskrt.Option
	if cfgPath != "" {
		cfg, err := taskrt.LoadConfig(cfgPath)
		if err == nil {
			opts = append(opts, taskrt.WithConfig(cfg))
		}
	}
	if workerThreads > 0 {
		opts = append(opts, taskrt.WithWorkerThreads(workerThreads))
	}
	if maxBlockingThreads > 0 {
		opts = append(opts, taskrt.WithMaxBlockingThreads(maxBlockingThreads))
	}
	return opts
}
