package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"
)

func newRunCommand(flags *rootFlags) *cobra.Command {
	var noStart bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured agents until they stop",
		Long: `Run builds the bus, spawns every configured agent and drives them until
all have stopped, the configured timeout expires or the process receives
SIGINT/SIGTERM. Agents start IDLE; unless --no-start is given each one is
sent RESUME once the group is up. A summary table is printed on exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if noStart {
				cfg.AutoStart = false
			}
			logger, err := NewLogger(cfg.Log)
			if err != nil {
				return err
			}

			rt, err := Build(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(context.Background()); err != nil {
					logger.Warn().Err(err).Msg("shutdown")
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info().Str("store", cfg.Bus.Store).Msg("agents starting")
			runErr := rt.Run(ctx)
			printSummary(cmd.OutOrStdout(), rt)
			return runErr
		},
	}
	cmd.Flags().BoolVar(&noStart, "no-start", false, "leave agents IDLE until they receive RESUME")
	return cmd
}

func printSummary(w io.Writer, rt *Runtime) {
	tbl := table.New("AGENT", "ID", "KIND", "STATE", "CYCLES", "SENT").WithWriter(w).WithPadding(2)
	for _, a := range rt.Group.Agents() {
		tbl.AddRow(a.Name(), a.ID(), rt.Kind(a.Name()), a.State(), a.Cycles(), a.Sent())
	}
	tbl.Print()
	_, _ = fmt.Fprintf(w, "\nblocks placed: %d\n", rt.World.Placed())
}
