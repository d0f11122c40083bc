package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kliiq/kliiq/internal/catalog"
	"github.com/kliiq/kliiq/internal/installer"
)

var (
	generateApps   []string
	generateOutput string
)

var generateCmd = &cobra.Command{
	Use:   "generate [app-id...]",
	Short: "Write an installer for the selected catalog apps",
	Long: `generate resolves the given winget ids against the catalog and writes a
.cmd installer that installs them in the given order. No account is needed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := append(append([]string{}, generateApps...), args...)

		cat := catalog.Default()
		var unknown []string
		for _, id := range ids {
			if !cat.Contains(id) {
				unknown = append(unknown, id)
			}
		}
		if len(unknown) > 0 {
			return fmt.Errorf("unknown app: %s (see 'kliiq catalog')", strings.Join(unknown, ", "))
		}

		script, err := installer.Generate(cat.Resolve(ids))
		if err != nil {
			return err
		}

		path, err := writeScript(script, generateOutput)
		if err != nil {
			return err
		}
		remember(cmd, "installer.generate", script.Filename)
		fmt.Fprintf(cmd.OutOrStdout(), "Installer written to %s (%d apps)\n", path, len(script.Apps))
		return nil
	},
}

func writeScript(script *installer.Script, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, script.Filename)
	if err := os.WriteFile(path, []byte(script.Content), 0o644); err != nil {
		return "", fmt.Errorf("write installer: %w", err)
	}
	return path, nil
}

func init() {
	generateCmd.Flags().StringSliceVarP(&generateApps, "app", "a", nil, "catalog app id, repeatable")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", ".", "directory to write the installer to")
	rootCmd.AddCommand(generateCmd)
}
