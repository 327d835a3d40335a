// Package voterstats loads per-division voter registration and turnout totals
// from the city's open-data CSV exports.
package voterstats

import (
	"context"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ward-stats/internal/division"
	"github.com/sells-group/ward-stats/internal/fetcher"
)

// Registration maps a division code to its registered-voter total. Totals
// are kept as the source text.
type Registration map[division.Code]string

type registrationRow struct {
	Ward     string `csv:"Ward"`
	Division string `csv:"Division"`
	Total    string `csv:"Total"`
}

// LoadRegistration downloads the registration CSV at url and keys each row
// by its zero-padded ward and division. A repeated code keeps the last row.
func LoadRegistration(ctx context.Context, f fetcher.Fetcher, url string) (Registration, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "voterstats: download registration")
	}
	defer body.Close() //nolint:errcheck

	return ParseRegistration(ctx, body)
}

// ParseRegistration builds a Registration from CSV content.
func ParseRegistration(ctx context.Context, r io.Reader) (Registration, error) {
	out := make(Registration)
	err := fetcher.ForEachCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true}, func(row registrationRow) error {
		out[division.NewCode(row.Ward, row.Division)] = row.Total
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "voterstats: parse registration")
	}
	return out, nil
}
