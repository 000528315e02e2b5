package main

import (
	"github.com/spf13/cobra"

	"github.com/momentics/lockedalloc/osmem"
	"github.com/momentics/lockedalloc/pool"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Report page size, pool size and the lockable memory limit",
		Long: `The info command reports the platform values the allocator sizes
itself from: the OS page size, the standard pool arena size derived from it,
and the current lockable-memory limit of the process.

Example:
  lockedallocctl info
  lockedallocctl info --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
	return cmd
}

type hostInfo struct {
	PageSize     int    `json:"page_size"`
	PoolSize     int    `json:"pool_size"`
	MemlockLimit uint64 `json:"memlock_limit,omitempty"`
	MemlockError string `json:"memlock_error,omitempty"`
}

func collectInfo() hostInfo {
	page := osmem.New().PageSize()
	info := hostInfo{PageSize: page, PoolSize: pool.PoolSize(page)}
	limit, err := osmem.LockLimit()
	if err != nil {
		info.MemlockError = err.Error()
	} else {
		info.MemlockLimit = limit
	}
	return info
}

func runInfo() error {
	info := collectInfo()
	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nHost Information:\n")
	printInfo("  Page size:      %d bytes\n", info.PageSize)
	printInfo("  Pool size:      %s\n", formatBytes(uint64(info.PoolSize)))
	if info.MemlockError != "" {
		printInfo("  Memlock limit:  unavailable (%s)\n", info.MemlockError)
	} else {
		printInfo("  Memlock limit:  %s\n", formatBytes(info.MemlockLimit))
	}
	return nil
}
