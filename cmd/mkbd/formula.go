package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
	"github.com/gunturawaludins/mkbd-new/internal/formula"
)

func newFormulaCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formula",
		Short: "Evaluate column formulas",
	}

	var cells []string
	test := &cobra.Command{
		Use:   "test <formula>",
		Short: "Preview a formula against one sample row",
		Example: `  mkbd formula test "[Nilai Pasar] * 0.2" --row "Nilai Pasar=1500000"
  mkbd formula test "[a] + [b]" -r a=1 -r "b=33.3%"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := parseRow(cells)
			if err != nil {
				return err
			}
			res := formula.Test(args[0], sample)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				c.logger.Debug("formula rejected", "formula", args[0], "error", res.Error)
				return errors.New(res.Error)
			}
			return nil
		},
	}
	// not StringToString: it splits values on commas
	test.Flags().StringArrayVarP(&cells, "row", "r", nil, "Sample cell as column=value (repeatable)")
	cmd.AddCommand(test)
	return cmd
}

// parseRow splits column=value pairs on the first '='. Values stay strings;
// the evaluator reads their numeric prefix as it does for stored cells.
func parseRow(cells []string) (dataprocessing.Row, error) {
	row := make(dataprocessing.Row, len(cells))
	for _, cell := range cells {
		k, v, ok := strings.Cut(cell, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --row %q: want column=value", cell)
		}
		row[strings.TrimSpace(k)] = v
	}
	return row, nil
}
