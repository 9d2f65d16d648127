package cliplugins

import (
	"context"
	"fmt"
	"strings"

	"mcastguard/internal/platform/wifi"

	"github.com/spf13/cobra"
)

// RecoverCommand убирает аренды процессов, завершившихся без освобождения multicast
type RecoverCommand struct {
	cmd *cobra.Command
	app *AppContext
}

func NewRecoverCommand(app *AppContext) *RecoverCommand {
	return &RecoverCommand{app: app}
}

func (r *RecoverCommand) Meta() *cobra.Command {
	if r.cmd != nil {
		return r.cmd
	}
	r.cmd = &cobra.Command{
		Use:   "recover",
		Short: "Restore interfaces left in multicast mode by crashed processes",
		Args:  cobra.NoArgs,
	}
	return r.cmd
}

func (r *RecoverCommand) Execute(_ context.Context, cmd *cobra.Command, _ []string) error {
	report, err := wifi.Recover(r.app.Journal(), r.app.flags(), nil, r.app.Log)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "stale leases: %d, live leases: %d\n", len(report.Stale), report.Live)
	if len(report.Restored) > 0 {
		fmt.Fprintf(out, "restored: %s\n", strings.Join(report.Restored, ", "))
	}

	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	return nil
}
