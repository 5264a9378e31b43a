package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/export"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/quote"
	"github.com/sells-group/quote-cli/internal/refdata"
)

var (
	quoteData        string
	quoteInput       string
	quoteSheet       string
	quoteOut         []string
	quoteConcurrency int
	quoteNoStore     bool
	quoteOnline      string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote every row of a shipment template",
	Long: "Reads the shipment template (XLSX or CSV), quotes each row against the reference workbook " +
		"and writes the results. The output format follows the file extension: .xlsx, .json or .geojson.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("quote"); err != nil {
			return err
		}
		ctx := cmd.Context()

		rows, err := readShipments(ctx, quoteInput, quoteSheet)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return eris.Errorf("quote: no shipment rows in %s", quoteInput)
		}

		e, err := initEngine(ctx, engineOptions{DataPath: quoteData, UseStore: !quoteNoStore, Online: quoteOnline})
		if err != nil {
			return err
		}
		defer e.Close()

		concurrency := quoteConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Quote.Concurrency
		}
		batch, err := e.Assembler.Run(ctx, filepath.Base(quoteInput), rows, concurrency)
		if err != nil {
			return err
		}

		report := export.NewReport(rows, batch)
		for _, out := range quoteOut {
			if err := export.Save(out, report); err != nil {
				return err
			}
		}

		if e.Store != nil {
			if err := e.Store.RecordRun(ctx, batch.Summary); err != nil {
				zap.L().Warn("quote: record run failed", zap.String("run_id", batch.Summary.ID), zap.Error(err))
			}
		}

		printBatch(os.Stdout, batch, quoteOut)
		return nil
	},
}

// readShipments reads the template by extension.
func readShipments(ctx context.Context, path, sheet string) ([]model.ShipmentRow, error) {
	if path == "" {
		return nil, eris.New("shipment template is required (--input)")
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "quote: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return refdata.ReadShipmentsCSV(ctx, f)
	}
	return refdata.ReadShipmentsXLSX(path, sheet)
}

func printBatch(w io.Writer, b *quote.Batch, outputs []string) {
	s := b.Summary
	fmt.Fprintf(w, "Run %s: %d rows, %d flagged, total %.2f EUR (%s)\n",
		s.ID, s.Rows, s.Flagged, s.TotalCostEUR, b.Elapsed().Round(time.Millisecond))

	if counts := quote.CountFlags(b.Results); len(counts) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FLAG\tROWS")
		for _, c := range counts {
			fmt.Fprintf(tw, "%s\t%d\n", c.Code, c.Rows)
		}
		tw.Flush() //nolint:errcheck
	}
	for _, out := range outputs {
		fmt.Fprintf(w, "Wrote %s\n", out)
	}
}

func init() {
	quoteCmd.Flags().StringVar(&quoteData, "data", "", "reference workbook (MAIN PORTS, HORSE-PUERTO, COSTPERKM, ...)")
	quoteCmd.Flags().StringVar(&quoteInput, "input", "", "shipment template (.xlsx or .csv)")
	quoteCmd.Flags().StringVar(&quoteSheet, "sheet", "", "template sheet name (default Input)")
	quoteCmd.Flags().StringSliceVar(&quoteOut, "out", []string{"quotes.xlsx"}, "output files (.xlsx, .json, .geojson)")
	quoteCmd.Flags().IntVar(&quoteConcurrency, "concurrency", 0, "rows quoted in parallel (default from config)")
	quoteCmd.Flags().BoolVar(&quoteNoStore, "no-store", false, "skip stored aliases and run history")
	quoteCmd.Flags().StringVar(&quoteOnline, "online", "", "online geocoding allow-list override (0, 1 or cn,in,...)")
	_ = quoteCmd.MarkFlagRequired("data")
	_ = quoteCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(quoteCmd)
}
