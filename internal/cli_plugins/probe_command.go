package cliplugins

import (
	"context"
	"fmt"

	"mcastguard/internal/lifecycle"
	"mcastguard/internal/probe"

	"github.com/spf13/cobra"
)

// ProbeCommand захватывает multicast и проверяет, что пакеты группы доходят
type ProbeCommand struct {
	cmd *cobra.Command
	app *AppContext
}

func NewProbeCommand(app *AppContext) *ProbeCommand {
	return &ProbeCommand{app: app}
}

func (p *ProbeCommand) Meta() *cobra.Command {
	if p.cmd != nil {
		return p.cmd
	}
	p.cmd = &cobra.Command{
		Use:   "probe",
		Short: "Check multicast loopback on the Wi-Fi interface",
		Args:  cobra.NoArgs,
	}
	p.cmd.Flags().StringP("group", "g", "", "multicast group host:port (overrides config)")
	p.cmd.Flags().Duration("timeout", 0, "probe timeout (overrides config)")
	p.cmd.Flags().Bool("no-lock", false, "probe without acquiring the multicast capability")
	return p.cmd
}

func (p *ProbeCommand) Execute(ctx context.Context, cmd *cobra.Command, _ []string) error {
	cfg := probe.Config{
		Group:     p.app.Config.Probe.Group,
		Interface: p.app.Config.Wifi.Interface,
		Tag:       p.app.Config.Lock.Tag,
		Interval:  p.app.Config.Probe.Interval,
		Timeout:   p.app.Config.Probe.Timeout,
	}
	if v, _ := cmd.Flags().GetString("group"); v != "" {
		cfg.Group = v
	}
	if v, _ := cmd.Flags().GetDuration("timeout"); v > 0 {
		cfg.Timeout = v
	}
	noLock, _ := cmd.Flags().GetBool("no-lock")

	prober := probe.NewProber(cfg, p.app.Log)

	var result probe.Result
	run := func(ctx context.Context) error {
		var err error
		result, err = prober.Run(ctx)
		return err
	}

	var err error
	if noLock {
		err = run(ctx)
	} else {
		err = lifecycle.Run(ctx, p.app.NewGuard(nil, nil), run)
	}
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	out := cmd.OutOrStdout()
	if !result.Reachable {
		fmt.Fprintf(out, "%s: no multicast loopback after %d probes\n", result.Group, result.Sent)
		return fmt.Errorf("multicast not reachable on %s", result.Group)
	}
	fmt.Fprintf(out, "%s: multicast ok, %d probes, latency %s\n", result.Group, result.Sent, result.Latency)
	return nil
}
