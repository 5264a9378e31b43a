// Package fetcher reads tabular input: XLSX workbooks and delimited text.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // first row goes to HeaderCh instead of the row channel
	HeaderCh   chan<- []string // optional
	Comment    rune
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV parses r on a goroutine and sends rows to the returned channel.
// Both channels are closed when parsing stops; at most one error is sent.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		send := func(ch chan<- []string, rec []string) bool {
			select {
			case ch <- rec:
				return true
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return false
			}
		}

		for line := 0; ; line++ {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "csv: context cancelled")
				return
			}
			rec, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			if opts.TrimSpace {
				for i := range rec {
					rec[i] = strings.TrimSpace(rec[i])
				}
			}
			if line == 0 && opts.HasHeader {
				if opts.HeaderCh != nil && !send(opts.HeaderCh, rec) {
					return
				}
				continue
			}
			if !send(rowCh, rec) {
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV collects every row of r, header included.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	opts.HasHeader = false
	rowCh, errCh := StreamCSV(ctx, r, opts)
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return rows, err
	}
	return rows, nil
}
