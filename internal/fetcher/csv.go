// Package fetcher downloads remote open-data resources and decodes CSV and JSON bodies.
package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions configures header-driven CSV decoding.
// A struct field with no matching header column is always an error.
type CSVOptions struct {
	TrimSpace bool // trim whitespace around every field value
}

// ForEachCSV decodes r row by row into T using the header row to map
// columns onto `csv:"..."` struct tags, calling fn for every row in order.
// Decoding stops at the first error from the reader, the decoder, or fn.
func ForEachCSV[T any](ctx context.Context, r io.Reader, opts CSVOptions, fn func(T) error) error {
	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1 // allow variable fields

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		if err == io.EOF {
			return eris.New("csv: missing header row")
		}
		return eris.Wrap(err, "csv: read header")
	}
	dec.DisallowMissingColumns = true
	if opts.TrimSpace {
		dec.Map = func(field, _ string, _ any) string {
			return strings.TrimSpace(field)
		}
	}

	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		var row T
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				return nil
			}
			return eris.Wrapf(err, "csv: decode row %d", n)
		}

		if err := fn(row); err != nil {
			return err
		}
	}
}

// skipBOM drops a leading UTF-8 byte order mark, which some open-data
// portals prepend to CSV exports and which would otherwise corrupt the
// first header name.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
