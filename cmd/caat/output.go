package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/pivoten/caat/internal/columns"
	"github.com/pivoten/caat/internal/financials/audit"
	"github.com/pivoten/caat/internal/logger"
	"github.com/pivoten/caat/internal/reports"
	"github.com/pivoten/caat/internal/table"
)

// finish exports and prints a result. A result that could not run (for
// example no duplicate key applies) makes the command fail after printing.
func (c *cli) finish(result *audit.AuditResult, source string) error {
	var artifacts *reports.Artifacts
	if c.report {
		var err error
		artifacts, err = c.services.Reports.Export(result, c.services.Config.Settings.OutputDir, source)
		if err != nil {
			return err
		}
	}

	if c.jsonOut {
		if err := c.printJSON(result); err != nil {
			return err
		}
		if artifacts != nil {
			for _, f := range artifacts.Files() {
				fmt.Fprintln(c.errOut, f)
			}
		}
	} else {
		c.printSummary(result, artifacts)
	}

	logger.WriteInfo("Main", "test finished",
		zap.String("run_id", result.RunID),
		zap.String("test", result.Test),
		zap.Bool("success", result.Success),
		zap.Int("findings", result.FindingsCount()),
	)
	if !result.Success {
		return errors.New(result.Error)
	}
	return nil
}

func (c *cli) printSummary(result *audit.AuditResult, artifacts *reports.Artifacts) {
	bold := color.New(color.Bold)
	bold.Fprintln(c.out, result.Title)
	switch {
	case !result.Success:
		color.New(color.FgRed).Fprintln(c.out, result.Error)
		if result.Message != "" {
			fmt.Fprintln(c.out, result.Message)
		}
	case result.Message != "":
		color.New(color.FgGreen).Fprintln(c.out, result.Message)
	}

	if len(result.Metrics) > 0 {
		fmt.Fprintln(c.out)
		tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		for _, m := range result.Metrics {
			fmt.Fprintf(tw, "  %s\t%s\n", m.Label, reports.FormatMetric(m.Value))
		}
		tw.Flush()
	}

	for _, notice := range result.Notices {
		color.New(color.FgYellow).Fprintf(c.out, "! %s\n", notice)
	}

	for _, section := range result.Narrative {
		fmt.Fprintln(c.out)
		bold.Fprintln(c.out, section.Heading)
		for _, b := range section.Bullets {
			fmt.Fprintf(c.out, "  - %s\n", b)
		}
	}

	if artifacts != nil {
		fmt.Fprintln(c.out)
		for _, f := range artifacts.Files() {
			fmt.Fprintf(c.out, "%s %s\n", color.GreenString("written"), f)
		}
	}
}

// suggestColumn builds the error shown when a required column flag is
// missing. The suggestion is only printed; the user confirms it by re-running.
func suggestColumn(flag string, role columns.Role, r columns.Resolution, t *table.Table) error {
	if r.Found() {
		return fmt.Errorf("--%s is required; suggested %s column: %q (%s), re-run with --%s %q",
			flag, role, r.Column, r.Rule, flag, r.Column)
	}
	return fmt.Errorf("--%s is required; no %s column could be suggested, available columns: %s",
		flag, role, strings.Join(t.ColumnNames(), ", "))
}
