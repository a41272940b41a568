package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/WidgetHost/internal/domain/registry"
)

var (
	scanDir  string
	scanJSON bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Validate installed widget manifests",
	Long:  `Scans the widgets directory and reports which manifests load and why the others were rejected. Nothing is launched.`,
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanDir, "widgets", "", "Widgets directory (overrides WIDGETS_DIR)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the result as JSON")
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if scanDir != "" {
		cfg.Widgets.Dir = scanDir
	}

	res, err := registry.Scan(cmd.Context(), cfg.Widgets.Dir)
	if err != nil {
		return err
	}

	if scanJSON {
		out, err := sonic.ConfigStd.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVERSION\tDIR")
	for _, d := range res.Accepted {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Label(), d.Version, d.Dir)
	}
	w.Flush()

	if len(res.Rejected) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%d manifest(s) rejected:\n", len(res.Rejected))
		for _, r := range res.Rejected {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", r.Path, r.Reason)
		}
	}
	return nil
}
