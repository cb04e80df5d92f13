package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/app/bootstrap"
	"github.com/psdstocks-cloud/creo-cache/internal/contracts"
	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("cache backend unhealthy")

type openFunc func(ctx context.Context, configPath string) (*bootstrap.Core, error)

type cli struct {
	open       openFunc
	configPath string
	core       *bootstrap.Core
}

func newRootCmd(open openFunc) *cobra.Command {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect, clear and warm the shared cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			core, err := c.open(cmd.Context(), c.configPath)
			if err != nil {
				return err
			}
			c.core = core
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if c.core != nil {
				c.core.Close(context.WithoutCancel(cmd.Context()))
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "configs/default.yaml", "path to the YAML config file")

	root.AddCommand(c.healthCmd(), c.statsCmd(), c.warmCmd(), c.clearCmd(), c.runsCmd())
	return root
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the backend; exits 1 when unhealthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := c.core.Service.Health(cmd.Context())
			if err := printJSON(cmd, status); err != nil {
				return err
			}
			if status.Status == domain.HealthUnhealthy {
				return c.fail(cmd, fmt.Errorf("%w: %s", errUnhealthy, status.Error))
			}
			return nil
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print combined local and edge statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := c.core.Service.Stats(cmd.Context())
			if err != nil {
				return c.fail(cmd, err)
			}
			return printJSON(cmd, stats)
		},
	}
}

func (c *cli) warmCmd() *cobra.Command {
	var trigger string
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Run every configured warm job once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.core.Service.Warm(cmd.Context(), trigger)
			if err != nil && !errors.Is(err, domain.ErrCancelled) {
				return c.fail(cmd, err)
			}
			if printErr := printJSON(cmd, report); printErr != nil {
				return printErr
			}
			if err != nil {
				return c.fail(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", domain.TriggerManual, "trigger recorded on the run (manual, deploy, scheduled)")
	return cmd
}

func (c *cli) clearCmd() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry in the namespace, counters included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return c.fail(cmd, fmt.Errorf("clear affects every consumer of the cache; pass --yes: %w", domain.ErrInvalidInput))
			}
			clearedAt, err := c.core.Service.Clear(cmd.Context(), "cachectl")
			if err != nil {
				return c.fail(cmd, err)
			}
			return printJSON(cmd, contracts.MessageResponse{
				Message:   "cache cleared",
				Timestamp: clearedAt.Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm clearing the namespace")
	return cmd
}

func (c *cli) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recent warm runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				run, err := c.core.Service.WarmRun(cmd.Context(), args[0])
				if err != nil {
					return c.fail(cmd, err)
				}
				return printJSON(cmd, run)
			}
			runs, err := c.core.Service.WarmRuns(cmd.Context(), limit)
			if err != nil {
				return c.fail(cmd, err)
			}
			return printJSON(cmd, runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	return cmd
}

// fail closes the core before returning, since cobra skips PostRun on error.
func (c *cli) fail(cmd *cobra.Command, err error) error {
	if c.core != nil {
		c.core.Close(context.WithoutCancel(cmd.Context()))
		c.core = nil
	}
	return err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
