package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pivoten/caat/internal/columns"
	"github.com/pivoten/caat/internal/pdf"
	"github.com/pivoten/caat/internal/table"
)

const previewRows = 5

func (c *cli) newSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets <file>",
		Short: "List the worksheets of an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := c.services.Ingest.SheetNamesFile(args[0])
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(names)
			}
			if len(names) == 0 {
				fmt.Fprintln(c.out, "no worksheets (single-table file)")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(c.out, name)
			}
			return nil
		},
	}
}

// inspection is what inspect prints in JSON mode
type inspection struct {
	File             string                        `json:"file"`
	Rows             int                           `json:"rows"`
	Columns          []columnInfo                  `json:"columns"`
	Suggestions      map[string]columns.Resolution `json:"suggestions"`
	BenfordCandidate []string                      `json:"benfordCandidates"`
}

type columnInfo struct {
	Name    string `json:"name"`
	Numeric bool   `json:"numeric"`
}

func inspectTable(file string, t *table.Table) *inspection {
	info := &inspection{
		File: file,
		Rows: t.Len(),
		Suggestions: map[string]columns.Resolution{
			string(columns.Identifier): columns.ResolveTable(t, columns.Identifier),
			string(columns.Amount):     columns.SuggestAmount(t),
			string(columns.Date):       columns.ResolveTable(t, columns.Date),
		},
		BenfordCandidate: columns.AmountCandidates(t),
	}
	for _, col := range t.Columns() {
		info.Columns = append(info.Columns, columnInfo{Name: col.Name, Numeric: col.IsNumeric()})
	}
	return info
}

func (c *cli) newInspectCmd() *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show row count, columns, role suggestions and a preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.loadTable(args[0], sheet)
			if err != nil {
				return err
			}
			info := inspectTable(args[0], t)
			if c.jsonOut {
				return c.printJSON(info)
			}

			bold := color.New(color.Bold)
			bold.Fprintf(c.out, "%s\n", info.File)
			fmt.Fprintf(c.out, "rows: %d, columns: %d\n\n", info.Rows, len(info.Columns))

			bold.Fprintln(c.out, "Suggested columns")
			for _, role := range []columns.Role{columns.Identifier, columns.Amount, columns.Date} {
				r := info.Suggestions[string(role)]
				if !r.Found() {
					fmt.Fprintf(c.out, "  %-10s -\n", role)
					continue
				}
				fmt.Fprintf(c.out, "  %-10s %s (%s)\n", role, color.CyanString(r.Column), r.Rule)
			}
			if len(info.BenfordCandidate) > 0 {
				fmt.Fprintf(c.out, "  %-10s %s\n", "numeric", strings.Join(info.BenfordCandidate, ", "))
			}
			fmt.Fprintln(c.out)

			bold.Fprintln(c.out, "Preview")
			return writePreview(c.out, t.Head(previewRows))
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet to read")
	return cmd
}

func writePreview(w io.Writer, t *table.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	names := t.ColumnNames()
	for i := range names {
		names[i] = pdf.TruncateText(names[i], 24)
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))
	for _, row := range t.StringRows() {
		for i := range row {
			row[i] = pdf.TruncateText(row[i], 24)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
