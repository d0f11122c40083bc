package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent local activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if len(store.State.Activity) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No activity yet.")
			return nil
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"When", "Action", "Details"})
		for i := len(store.State.Activity) - 1; i >= 0; i-- {
			a := store.State.Activity[i]
			t.AppendRow(table.Row{a.At.Local().Format(time.DateTime), a.Action, a.Details})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activityCmd)
}
