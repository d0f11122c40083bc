package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kliiq/kliiq/internal/client"
)

var statePath string

var rootCmd = &cobra.Command{
	Use:   "kliiq",
	Short: "Build one-click Windows app installers",
	Long: `kliiq picks apps from the catalog and writes a single .cmd file that installs
them with winget. Packs and devices are synced with your Kliiq account when
KLIIQ_TOKEN is set.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "local state file (default <config dir>/kliiq/state.json)")
}

func openStore() (*client.Store, error) {
	path := statePath
	if path == "" {
		var err error
		if path, err = client.DefaultStorePath(); err != nil {
			return nil, err
		}
	}
	store := client.NewStore(path)
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

// remember appends to the local activity log. Failing to persist it never
// fails the command.
func remember(cmd *cobra.Command, action, details string) {
	store, err := openStore()
	if err == nil {
		store.Record(action, details)
		err = store.Save()
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not update activity log: %v\n", err)
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}
