package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/agenkit/huddle-go/dataset"
)

func newPrepareCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Normalize item names, add missing main courses and assign seating times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			cfg, logger := a.cfg, a.logger

			ds, err := dataset.Load(cfg.Input)
			if err != nil {
				return err
			}
			menu, err := loadMenu(cfg.Menu)
			if err != nil {
				return err
			}

			p := dataset.NewPreparer(menu, cfg.Seed, logger)
			renamed := dataset.NormalizeItems(ds)
			added := p.EnsureMainCourse(ds)
			slots := p.AssignTimeSlots(ds)

			if err := dataset.Save(cfg.Output, ds); err != nil {
				return err
			}
			logger.Info("dataset prepared", "renamed", renamed, "mains_added", added, "output", cfg.Output)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Renamed items: %d\n", renamed)
			fmt.Fprintf(out, "Main courses added: %d\n", added)
			fmt.Fprintln(out, "Time slots:")
			for _, s := range slots {
				fmt.Fprintf(out, "  %s  %3d reservations  %3d people\n", s.Slot, s.Reservations, s.People)
			}
			printElapsed(cmd, "Prepared "+cfg.Output, start)
			return nil
		},
	}

	cmd.Flags().StringVar(&a.flags.Menu, "menu", a.flags.Menu, "menu file listing the main courses (built-in menu when empty)")
	cmd.Flags().Uint64Var(&a.flags.Seed, "seed", a.flags.Seed, "random seed for main course and slot choice")
	return cmd
}

func loadMenu(path string) (dataset.Menu, error) {
	if path == "" {
		return dataset.DefaultMenu(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return dataset.Menu{}, fmt.Errorf("open menu: %w", err)
	}
	defer f.Close()
	return dataset.ParseMenu(f)
}
