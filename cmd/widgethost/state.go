package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
	"github.com/GriffinCanCode/WidgetHost/internal/store"
)

var (
	stateDB      string
	stateRunning bool
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show persisted widget state",
	Long:  `Lists the persisted instance records and global settings from the state database. The host does not need to be running.`,
	RunE:  runState,
}

func init() {
	stateCmd.Flags().StringVar(&stateDB, "db", "", "State database path (overrides STATE_DB_PATH)")
	stateCmd.Flags().BoolVar(&stateRunning, "running", false, "Only show instances that will be restored")
}

func runState(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if stateDB != "" {
		cfg.State.DBPath = stateDB
	}

	db, err := store.New(cfg.State.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	settings, err := db.Settings(ctx, types.Settings{
		AutoRestore: cfg.State.AutoRestore,
		MaxWidgets:  cfg.Widgets.MaxInstances,
	})
	if err != nil {
		return err
	}
	records, err := db.ListStates(ctx, stateRunning)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "auto restore: %t\nmax widgets:  %d\n\n", settings.AutoRestore, settings.MaxWidgets)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tWIDGET\tPOSITION\tSIZE\tRUNNING\tLAST ACTIVE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%d,%d\t%dx%d\t%t\t%s\n",
			r.InstanceID, r.WidgetID,
			r.Position.X, r.Position.Y,
			r.Size.Width, r.Size.Height,
			r.IsRunning, r.LastActive.Format(time.RFC3339))
	}
	return w.Flush()
}
