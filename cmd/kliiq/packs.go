package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kliiq/kliiq/internal/client"
)

var (
	packsCreateApp  string
	packsInstallDir string
)

// withPackStore runs fn against a pack store seeded from the local snapshot,
// then saves what the store ended up with for the next run.
func withPackStore(cmd *cobra.Command, fn func(*client.PackStore) error) error {
	api, err := client.NewFromEnv()
	if err != nil {
		return err
	}
	packs := client.NewPackStore(api)

	cached := false
	if local, err := openStore(); err == nil {
		cached = packs.Restore(local.State.Packs)
	}

	err = fn(packs)
	if cached && errors.Is(err, client.ErrPackNotFound) {
		// the pack may have been created elsewhere since the snapshot
		if err = packs.Refresh(cmd.Context()); err == nil {
			cached = false
			err = fn(packs)
		}
	}

	if snap := packs.Snapshot(); snap != nil {
		// reopen so activity recorded by fn is kept
		local, serr := openStore()
		if serr == nil {
			local.State.Packs = snap
			serr = local.Save()
		}
		if serr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not cache packs: %v\n", serr)
		}
	}

	if cached && isLimitErr(err) {
		return fmt.Errorf("%w (checked against cached account state; run 'kliiq packs list' to refresh)", err)
	}
	return err
}

func isLimitErr(err error) bool {
	return errors.Is(err, client.ErrPackLimit) ||
		errors.Is(err, client.ErrTooManyApps) ||
		errors.Is(err, client.ErrDeleteQuota)
}

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "Manage the packs saved to your account",
}

var packsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your packs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPackStore(cmd, func(store *client.PackStore) error {
			if err := store.Refresh(cmd.Context()); err != nil {
				return err
			}

			packs := store.Packs()
			usage := store.Usage()
			if len(packs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No packs yet. Create one with 'kliiq packs create <name>'.")
			} else {
				t := newTable(cmd.OutOrStdout())
				t.AppendHeader(table.Row{"ID", "Name", "Apps", "Updated"})
				for _, p := range packs {
					t.AppendRow(table.Row{p.ID, p.Name, strings.Join(p.AppIDs, ", "), p.UpdatedAt.Local().Format(time.DateTime)})
				}
				t.Render()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan %s: %s packs, %s deletes used\n",
				usage.Plan, quota(usage.Packs, usage.Limits.MaxPacks), quota(usage.PackDeletes, usage.Limits.MaxPackDeletes))
			return nil
		})
	},
}

func quota(used, limit int) string {
	if limit <= 0 {
		return fmt.Sprintf("%d", used)
	}
	return fmt.Sprintf("%d/%d", used, limit)
}

var packsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a pack",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPackStore(cmd, func(store *client.PackStore) error {
			pack, err := store.Create(cmd.Context(), strings.Join(args, " "), packsCreateApp)
			if err != nil {
				return err
			}
			remember(cmd, "pack.create", pack.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "Created pack %q (%s)\n", pack.Name, pack.ID)
			return nil
		})
	},
}

var packsAddCmd = &cobra.Command{
	Use:   "add <pack-id> <app-id>...",
	Short: "Add apps to a pack",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPackStore(cmd, func(store *client.PackStore) error {
			for _, appID := range args[1:] {
				pack, err := store.AddApp(cmd.Context(), args[0], appID)
				if err != nil {
					return fmt.Errorf("add %s: %w", appID, err)
				}
				remember(cmd, "pack.add_app", appID)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d apps\n", pack.Name, len(pack.AppIDs))
			}
			return nil
		})
	},
}

var packsRemoveCmd = &cobra.Command{
	Use:   "remove <pack-id> <app-id>",
	Short: "Remove an app from a pack",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPackStore(cmd, func(store *client.PackStore) error {
			pack, err := store.RemoveApp(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			remember(cmd, "pack.remove_app", args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d apps\n", pack.Name, len(pack.AppIDs))
			return nil
		})
	},
}

var packsRenameCmd = &cobra.Command{
	Use:   "rename <pack-id> <name>",
	Short: "Rename a pack",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPackStore(cmd, func(store *client.PackStore) error {
			pack, err := store.Rename(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			remember(cmd, "pack.rename", pack.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed pack to %q\n", pack.Name)
			return nil
		})
	},
}

var packsDeleteCmd = &cobra.Command{
	Use:   "delete <pack-id>",
	Short: "Delete a pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPackStore(cmd, func(store *client.PackStore) error {
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			remember(cmd, "pack.delete", args[0])
			fmt.Fprintln(cmd.OutOrStdout(), "Pack deleted")
			return nil
		})
	},
}

var packsInstallerCmd = &cobra.Command{
	Use:   "installer <pack-id>",
	Short: "Write the installer for a pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := client.NewFromEnv()
		if err != nil {
			return err
		}
		script, err := api.PackInstaller(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		path, err := writeScript(script, packsInstallDir)
		if err != nil {
			return err
		}
		remember(cmd, "installer.pack", script.Filename)
		fmt.Fprintf(cmd.OutOrStdout(), "Installer written to %s (%d apps)\n", path, len(script.Apps))
		return nil
	},
}

func init() {
	packsCreateCmd.Flags().StringVar(&packsCreateApp, "app", "", "seed the pack with this app id")
	packsInstallerCmd.Flags().StringVarP(&packsInstallDir, "output", "o", ".", "directory to write the installer to")

	packsCmd.AddCommand(packsListCmd, packsCreateCmd, packsAddCmd, packsRemoveCmd,
		packsRenameCmd, packsDeleteCmd, packsInstallerCmd)
	rootCmd.AddCommand(packsCmd)
}
