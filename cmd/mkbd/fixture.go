package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gunturawaludins/mkbd-new/internal/fixtures"
)

func newFixtureCmd(c *cli) *cobra.Command {
	var masterPath string
	cmd := &cobra.Command{
		Use:   "fixture <out.xlsx>",
		Short: "Write the reference MKBD workbook used by the tests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fixtures.WriteWorkbook(args[0]); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			c.logger.Info("fixture written", "path", args[0])

			if masterPath != "" {
				data, err := fixtures.MasterWorkbook()
				if err != nil {
					return fmt.Errorf("build master workbook: %w", err)
				}
				if err := os.WriteFile(masterPath, data, 0o644); err != nil {
					return fmt.Errorf("write master workbook: %w", err)
				}
				c.logger.Info("master fixture written", "path", masterPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&masterPath, "master", "", "Also write a matching issuer reference workbook")
	return cmd
}
