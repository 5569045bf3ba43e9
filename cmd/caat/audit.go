package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pivoten/caat/internal/columns"
	"github.com/pivoten/caat/internal/financials/audit"
)

func (c *cli) newDuplicatesCmd() *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "duplicates <file>",
		Short: "Find rows repeating an identifying key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.loadTable(args[0], sheet)
			if err != nil {
				return err
			}
			result, err := c.services.Audit.Duplicates(t)
			if err != nil {
				return err
			}
			return c.finish(result, filepath.Base(args[0]))
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet to read")
	return cmd
}

func (c *cli) newUnusualCmd() *cobra.Command {
	var sheet, amount, id, date string
	defaults := audit.DefaultUnusualOptions()

	cmd := &cobra.Command{
		Use:   "unusual <file>",
		Short: "Flag amounts above a fixed or statistical limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.loadTable(args[0], sheet)
			if err != nil {
				return err
			}
			if amount == "" {
				return suggestColumn("amount", columns.Amount, columns.SuggestAmount(t), t)
			}

			opts := c.services.Config.UnusualOptions()
			opts.AmountColumn = amount
			opts.IDColumn = id
			opts.DateColumn = date
			result, err := c.services.Audit.UnusualAmounts(t, opts)
			if err != nil {
				return err
			}
			return c.finish(result, filepath.Base(args[0]))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sheet, "sheet", "", "worksheet to read")
	flags.StringVar(&amount, "amount", "", "amount column")
	flags.StringVar(&id, "id", "", "identifier column used to group findings")
	flags.StringVar(&date, "date", "", "date column")
	flags.String("method", string(defaults.Method), "limit method (fixed|statistical)")
	flags.Float64("threshold", defaults.FixedThreshold, "fixed threshold")
	flags.Int("k", defaults.K, fmt.Sprintf("standard deviations above the mean (%d-%d)", audit.MinK, audit.MaxK))
	c.bind(flags, "unusual.method", "method")
	c.bind(flags, "unusual.fixed_threshold", "threshold")
	c.bind(flags, "unusual.k", "k")
	return cmd
}

func (c *cli) newReconcileCmd() *cobra.Command {
	var sheetA, sheetB, key, amountA, amountB, dateA, dateB string

	cmd := &cobra.Command{
		Use:   "reconcile <fileA> <fileB>",
		Short: "Match two tables on a key and report differences",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loadTable(args[0], sheetA)
			if err != nil {
				return err
			}
			b, err := c.loadTable(args[1], sheetB)
			if err != nil {
				return err
			}

			// With no shared column the test itself reports insufficient data
			if len(columns.CommonColumns(a, b)) > 0 {
				if key == "" {
					return suggestColumn("key", columns.Identifier, columns.SuggestKey(a, b), a)
				}
				if amountA == "" {
					return suggestColumn("amount-a", columns.Amount, columns.SuggestAmount(a), a)
				}
				if amountB == "" {
					return suggestColumn("amount-b", columns.Amount, columns.SuggestAmount(b), b)
				}
			}

			opts := c.services.Config.ReconcileOptions()
			opts.KeyColumn = key
			opts.AmountColumnA = amountA
			opts.AmountColumnB = amountB
			opts.DateColumnA = dateA
			opts.DateColumnB = dateB
			result, err := c.services.Audit.Reconcile(a, b, opts)
			if err != nil {
				return err
			}
			source := fmt.Sprintf("%s / %s", filepath.Base(args[0]), filepath.Base(args[1]))
			return c.finish(result, source)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sheetA, "sheet-a", "", "worksheet to read from file A")
	flags.StringVar(&sheetB, "sheet-b", "", "worksheet to read from file B")
	flags.StringVar(&key, "key", "", "key column present in both files")
	flags.StringVar(&amountA, "amount-a", "", "amount column of file A")
	flags.StringVar(&amountB, "amount-b", "", "amount column of file B")
	flags.StringVar(&dateA, "date-a", "", "date column of file A")
	flags.StringVar(&dateB, "date-b", "", "date column of file B")
	flags.Float64("tolerance", 0, "absolute amount difference tolerated")
	c.bind(flags, "reconciliation.tolerance", "tolerance")
	return cmd
}

func (c *cli) newBenfordCmd() *cobra.Command {
	var sheet, amount string
	defaults := audit.DefaultBenfordOptions()

	cmd := &cobra.Command{
		Use:   "benford <file>",
		Short: "Compare first significant digits with Benford's law",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.loadTable(args[0], sheet)
			if err != nil {
				return err
			}
			if amount == "" {
				return suggestColumn("amount", columns.Amount, columns.SuggestBenfordAmount(t), t)
			}

			opts := c.services.Config.BenfordOptions()
			opts.AmountColumn = amount
			result, err := c.services.Audit.Benford(t, opts)
			if err != nil {
				return err
			}
			return c.finish(result, filepath.Base(args[0]))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sheet, "sheet", "", "worksheet to read")
	flags.StringVar(&amount, "amount", "", "amount column")
	flags.Float64("min-value", defaults.MinValue, "ignore absolute amounts below this value")
	flags.Float64("deviation", defaults.DeviationThresholdPP, "deviation in percentage points that flags a digit")
	flags.Int("min-observations", defaults.MinObservationsAdvisory, "sample size below which a warning is shown")
	c.bind(flags, "benford.min_value", "min-value")
	c.bind(flags, "benford.deviation_threshold_pp", "deviation")
	c.bind(flags, "benford.min_observations_advisory", "min-observations")
	return cmd
}
