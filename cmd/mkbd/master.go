package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gunturawaludins/mkbd-new/internal/masterdata"
)

func newMasterCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master",
		Short: "Inspect issuer reference workbooks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats <master.xlsx>",
		Short: "Load a reference workbook and print its statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := masterdata.NewRegistry(args[0], c.logger)
			if res := registry.LoadFile(args[0]); !res.Success {
				return fmt.Errorf("load master data: %s", strings.Join(res.Errors, "; "))
			}
			return printJSON(cmd.OutOrStdout(), registry.Stats())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <master.xlsx> <code>...",
		Short: "Print the reference entries for instrument codes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := masterdata.NewRegistry(args[0], c.logger)
			if res := registry.LoadFile(args[0]); !res.Success {
				return fmt.Errorf("load master data: %s", strings.Join(res.Errors, "; "))
			}
			entries := make([]masterdata.Entry, 0, len(args)-1)
			var missing []string
			for _, code := range args[1:] {
				if e, ok := registry.Lookup(code); ok {
					entries = append(entries, e)
				} else {
					missing = append(missing, code)
				}
			}
			if err := printJSON(cmd.OutOrStdout(), entries); err != nil {
				return err
			}
			if len(missing) > 0 {
				return fmt.Errorf("codes not found: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	})
	return cmd
}
