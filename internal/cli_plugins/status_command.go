package cliplugins

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"mcastguard/internal/platform/wifi"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// StatusCommand показывает беспроводные интерфейсы, флаг ALLMULTI и журнал аренд
type StatusCommand struct {
	cmd *cobra.Command
	app *AppContext
}

func NewStatusCommand(app *AppContext) *StatusCommand {
	return &StatusCommand{app: app}
}

func (s *StatusCommand) Meta() *cobra.Command {
	if s.cmd != nil {
		return s.cmd
	}
	s.cmd = &cobra.Command{
		Use:   "status",
		Short: "Show wireless interfaces and recorded multicast leases",
		Args:  cobra.NoArgs,
	}
	return s.cmd
}

func (s *StatusCommand) Execute(_ context.Context, cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	on := color.New(color.FgGreen).SprintFunc()
	off := color.New(color.FgYellow).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	names, err := wifi.WirelessInterfaces(s.app.Config.Wifi.SysClassNet)
	if err != nil {
		return fmt.Errorf("list wireless interfaces: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INTERFACE\tALLMULTI")
	if len(names) == 0 {
		fmt.Fprintln(tw, "-\tno wireless interfaces")
	}
	for _, name := range names {
		state, err := s.app.flags().AllMulti(name)
		switch {
		case err != nil:
			fmt.Fprintf(tw, "%s\t%s\n", name, bad(err.Error()))
		case state:
			fmt.Fprintf(tw, "%s\t%s\n", name, on("on"))
		default:
			fmt.Fprintf(tw, "%s\t%s\n", name, off("off"))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	return s.printLeases(out, on, bad)
}

func (s *StatusCommand) printLeases(out io.Writer, live, stale func(a ...interface{}) string) error {
	leases, err := s.app.Journal().ListLeases()
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	if len(leases) == 0 {
		fmt.Fprintln(out, "no recorded leases")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LEASE\tINTERFACE\tTAG\tPID\tSINCE\tSTATE")
	for _, lease := range leases {
		state := live("live")
		if !wifi.ProcessAlive(lease.PID) {
			state = stale("stale")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			lease.ID,
			lease.Interface,
			lease.Tag,
			lease.PID,
			lease.AcquiredAt.Format(time.RFC3339),
			state,
		)
	}
	return tw.Flush()
}
