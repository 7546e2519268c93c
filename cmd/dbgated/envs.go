package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"dbgate/internal/env"

	"github.com/spf13/cobra"
)

func runEnvs(cmd *cobra.Command, _ []string) error {
	cfgs, verr := loadConfigs()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENVIRONMENT\tDRIVER\tHOST\tPORT\tUSER\tPASSWORD\tDATABASE\tTLS")
	for _, n := range env.All() {
		c := cfgs[n].Redacted()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			n, c.Driver, dash(c.Host), strconv.Itoa(c.Port), dash(c.User), dash(c.Password), dash(c.Database), c.TLS)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if verr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), verr)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
