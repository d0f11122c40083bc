package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kliiq/kliiq/internal/catalog"
)

var catalogCategory string

var catalogCmd = &cobra.Command{
	Use:   "catalog [search]",
	Short: "List or search the app catalog",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.Default()

		var entries []catalog.Entry
		if len(args) > 0 {
			entries = cat.Search(strings.Join(args, " "))
		} else {
			entries = cat.All()
		}
		if catalogCategory != "" {
			filtered := entries[:0:0]
			for _, e := range entries {
				if strings.EqualFold(e.Category, catalogCategory) {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No apps found.")
			return nil
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"ID", "Name", "Category", "Version", "Size"})
		for _, e := range entries {
			t.AppendRow(table.Row{e.ID, e.Name, e.Category, e.Version, e.Size})
		}
		t.Render()
		return nil
	},
}

var catalogCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List catalog categories",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cat := catalog.Default()
		for _, c := range cat.Categories() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d apps\n", c, len(cat.ListByCategory(c)))
		}
	},
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogCategory, "category", "c", "", "only show apps in this category")
	catalogCmd.AddCommand(catalogCategoriesCmd)
	rootCmd.AddCommand(catalogCmd)
}
