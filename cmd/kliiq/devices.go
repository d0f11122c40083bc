package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kliiq/kliiq/internal/client"
	"github.com/kliiq/kliiq/internal/models"
)

var devicesRegisterName string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage the devices linked to your account",
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your devices, host first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := client.NewFromEnv()
		if err != nil {
			return err
		}
		devices, err := api.ListDevices(cmd.Context())
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No devices registered. Run 'kliiq devices register'.")
			return nil
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"ID", "Name", "Platform", "Host", "Last seen"})
		for _, d := range devices {
			host := ""
			if d.IsHost {
				host = "yes"
			}
			t.AppendRow(table.Row{d.ID, d.Name, d.Platform, host, d.LastSeenAt.Local().Format(time.DateTime)})
		}
		t.Render()
		return nil
	},
}

var devicesRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register this machine with your account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := client.NewFromEnv()
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}

		device, err := api.RegisterDevice(cmd.Context(), models.RegisterDeviceRequest{
			DeviceKey: store.State.DeviceKey,
			Name:      devicesRegisterName,
		})
		if err != nil {
			return err
		}

		store.State.DeviceID = device.ID
		store.Record("device.register", device.Name)
		if err := store.Save(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Registered %q (%s)", device.Name, device.Platform)
		if device.IsHost {
			fmt.Fprint(cmd.OutOrStdout(), " as host")
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

var devicesHostCmd = &cobra.Command{
	Use:   "host <device-id>",
	Short: "Make a device the host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := client.NewFromEnv()
		if err != nil {
			return err
		}
		isHost := true
		device, err := api.UpdateDevice(cmd.Context(), args[0], models.UpdateDeviceRequest{IsHost: &isHost})
		if err != nil {
			return err
		}
		remember(cmd, "device.host", device.Name)
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now the host\n", device.Name)
		return nil
	},
}

var devicesRemoveCmd = &cobra.Command{
	Use:   "remove <device-id>",
	Short: "Unlink a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := client.NewFromEnv()
		if err != nil {
			return err
		}
		if err := api.DeleteDevice(cmd.Context(), args[0]); err != nil {
			return err
		}
		remember(cmd, "device.remove", args[0])
		fmt.Fprintln(cmd.OutOrStdout(), "Device removed")
		return nil
	},
}

func init() {
	devicesRegisterCmd.Flags().StringVar(&devicesRegisterName, "name", "", "device name (derived from this machine when empty)")
	devicesCmd.AddCommand(devicesListCmd, devicesRegisterCmd, devicesHostCmd, devicesRemoveCmd)
	rootCmd.AddCommand(devicesCmd)
}
