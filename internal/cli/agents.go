package cli

import (
	"io"
	"strings"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/trickstertwo/xagent"
	"github.com/trickstertwo/xagent/config"
	"github.com/trickstertwo/xagent/internal/demo"
)

func newAgentsCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the configured agents and the commands they accept",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			printAgents(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printAgents(w io.Writer, cfg *config.Config) {
	tbl := table.New("AGENT", "ID", "KIND", "TICK", "COMMANDS").WithWriter(w).WithPadding(2)
	for _, a := range cfg.Agents {
		tick := "default"
		if a.TickInterval > 0 {
			tick = a.TickInterval.String()
		}
		tbl.AddRow(a.Name, a.ID, a.Kind, tick, strings.Join(commandsFor(a.Kind), ", "))
	}
	tbl.Print()
}

func commandsFor(kind string) []string {
	out := append([]string(nil), xagent.GenericCommands...)
	if kind == config.KindScout {
		out = append(out, (&demo.Scout{}).Commands()...)
	}
	return out
}
