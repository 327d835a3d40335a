package voterstats

import (
	"context"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ward-stats/internal/division"
	"github.com/sells-group/ward-stats/internal/fetcher"
)

// Turnout maps a precinct code to the summed voter count across every row
// that carries it.
type Turnout map[division.Code]int

type turnoutRow struct {
	PrecinctCode string `csv:"Precinct Code"`
	VoterCount   string `csv:"Voter Count"`
}

// LoadTurnout downloads the turnout CSV at url and sums voter counts per
// precinct code. Codes are used exactly as published, without padding.
func LoadTurnout(ctx context.Context, f fetcher.Fetcher, url string) (Turnout, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "voterstats: download turnout")
	}
	defer body.Close() //nolint:errcheck

	return ParseTurnout(ctx, body)
}

// ParseTurnout builds a Turnout from CSV content.
func ParseTurnout(ctx context.Context, r io.Reader) (Turnout, error) {
	out := make(Turnout)
	err := fetcher.ForEachCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true}, func(row turnoutRow) error {
		n, err := strconv.Atoi(row.VoterCount)
		if err != nil {
			return eris.Wrapf(err, "precinct %s: voter count %q", row.PrecinctCode, row.VoterCount)
		}
		out[division.Code(row.PrecinctCode)] += n
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "voterstats: parse turnout")
	}
	return out, nil
}
