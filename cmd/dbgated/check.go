package main

import (
	"fmt"
	"text/tabwriter"

	"dbgate/internal/db"
	"dbgate/internal/services/query/probe"
	"dbgate/internal/services/query/registry"

	"github.com/spf13/cobra"
)

func runCheck(cmd *cobra.Command, _ []string) error {
	st, err := loadSettings()
	if err != nil {
		return err
	}
	cfgs, err := loadConfigs()
	if err != nil {
		return err
	}

	reg := registry.New(cfgs, db.Opener(st.Pool), nil)
	defer func() { _ = reg.Close() }()

	res := probe.New(reg, st.ProbeTimeout).ProbeAll(cmd.Context())

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENVIRONMENT\tDRIVER\tADDRESS\tSTATUS\tMESSAGE")
	failed := 0
	for _, n := range reg.Names() {
		cfg, _ := reg.Config(n)
		o := res[n]
		status := "ok"
		if !o.Success {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n, cfg.Driver, cfg.Addr(), status, o.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d environments unreachable", failed, len(res))
	}
	return nil
}
