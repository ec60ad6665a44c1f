package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/akeren/launch-waitlist/config"
	"github.com/akeren/launch-waitlist/domain/waitlist"
	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/internal/sheet"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

// spreadsheetFlags are built per command; urfave flags carry parse state.
func spreadsheetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "path to an .xlsx or .csv file",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "sheet",
			Usage: "worksheet name (defaults to the first sheet)",
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import-og",
		Usage: "mark every email in a spreadsheet as a verified OG member",
		Flags: spreadsheetFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := loggerFrom(ctx)

			table, err := sheet.ReadFile(cmd.String("file"), cmd.String("sheet"))
			if err != nil {
				return fmt.Errorf("read %s: %w", cmd.String("file"), err)
			}

			db, err := config.NewDatabase(logger, config.NewDBConfig())
			if err != nil {
				return fmt.Errorf("connect to database for import: %w", err)
			}
			defer config.CloseDatabase(db, logger)

			return runImport(ctx, db, logger, table, stdout(cmd))
		},
	}
}

func runImport(ctx context.Context, db *gorm.DB, logger *log.Logger, table *sheet.Table, w io.Writer) error {
	rows := waitlist.RowsFromTable(table)
	fmt.Fprintf(w, "Found %d rows in %s\n", len(rows), sheetLabel(table))

	importer := waitlist.NewImporter(waitlist.NewWaitlistRepository(db), logger)
	summary, err := importer.Import(ctx, rows)

	for _, f := range summary.Failures {
		fmt.Fprintf(w, "  line %d (%s): %v\n", f.Line, f.Email, f.Err)
	}
	fmt.Fprintf(w, "Imported: %d\nUpdated: %d\nSkipped: %d\nFailed: %d\n",
		summary.Imported, summary.Updated, summary.Skipped, summary.Failed)

	if err != nil {
		return fmt.Errorf("count OG members: %w", err)
	}
	fmt.Fprintf(w, "Total OG members: %d\n", summary.TotalOG)
	return nil
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "print the header row and first data row of a spreadsheet",
		Flags: spreadsheetFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			table, err := sheet.ReadFile(cmd.String("file"), cmd.String("sheet"))
			if err != nil {
				return fmt.Errorf("read %s: %w", cmd.String("file"), err)
			}
			printInspection(stdout(cmd), table)
			return nil
		},
	}
}

func printInspection(w io.Writer, table *sheet.Table) {
	fmt.Fprintf(w, "Sheet: %s\n", sheetLabel(table))
	fmt.Fprintf(w, "Headers: %s\n", strings.Join(table.Headers, ", "))
	fmt.Fprintf(w, "Rows: %d\n", len(table.Rows))

	if len(table.Rows) == 0 {
		return
	}
	fmt.Fprintln(w, "First row:")
	for _, h := range table.Headers {
		if h == "" {
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", h, table.Rows[0][h])
	}
}

func sheetLabel(table *sheet.Table) string {
	if table.Sheet == "" {
		return "csv"
	}
	return table.Sheet
}
