package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/user/soldprice-service/internal/catalog"
	"github.com/user/soldprice-service/internal/entity"
	"github.com/user/soldprice-service/pkg/config"
)

func newCatalogCmd(envFile *string) *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate the catalog files and print the item-variants in sweep order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(files) == 0 {
				cfg, err := config.Load(*envFile)
				if err != nil {
					return err
				}
				files = cfg.CatalogPaths()
			}
			cat, err := catalog.Load(files)
			if err != nil {
				return err
			}
			renderUnits(os.Stdout, cat.Units())
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "catalog files (default CATALOG_FILES)")
	return cmd
}

func renderUnits(w io.Writer, units []entity.CatalogItem) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Collection", "Set", "No.", "Name", "Variant", "Rarity", "Search"})
	for i, u := range units {
		t.AppendRow(table.Row{
			i + 1,
			u.CollectionName,
			u.CollectionDisplayName,
			fmt.Sprintf("%03d/%d", u.ItemSequence, u.CollectionTotal),
			u.DisplayName,
			u.Variant.String(),
			string(u.Rarity),
			u.SearchText(),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(units)})
	t.Render()
}
