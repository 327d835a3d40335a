package division

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/ward-stats/internal/fetcher"
)

// Property names read from and written to boundary features.
const (
	PropDivisionNum         = "DIVISION_NUM"
	PropWardNum             = "WARD_NUM"
	PropRegistrationTotal   = "REGISTRATION_TOTAL"
	PropTurnoutTotal        = "TURNOUT_TOTAL"
	PropPollingPlaceAddress = "POLLING_PLACE_ADDRESS"
)

// ErrNoDivisionNum is returned when a feature lacks a string DIVISION_NUM.
var ErrNoDivisionNum = eris.New("division: feature has no string " + PropDivisionNum)

// FeatureCollection is a GeoJSON feature collection. Members other than
// "features" are kept verbatim and written back unchanged.
type FeatureCollection struct {
	Features []*Feature

	members map[string]json.RawMessage
}

// Feature is a GeoJSON feature whose properties may be augmented in place.
// Geometry and any other members are passed through untouched.
type Feature struct {
	Properties map[string]any

	members map[string]json.RawMessage
}

// UnmarshalJSON decodes a feature collection, keeping unknown members.
func (fc *FeatureCollection) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return eris.Wrap(err, "division: decode feature collection")
	}
	raw, ok := members["features"]
	if !ok {
		return eris.New("division: feature collection has no features member")
	}
	delete(members, "features")

	var features []*Feature
	if err := json.Unmarshal(raw, &features); err != nil {
		return eris.Wrap(err, "division: decode features")
	}

	fc.Features = features
	fc.members = members
	return nil
}

// MarshalJSON encodes the collection with its original members.
func (fc *FeatureCollection) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(fc.members)+1)
	for k, v := range fc.members {
		out[k] = v
	}
	features := fc.Features
	if features == nil {
		features = []*Feature{}
	}
	out["features"] = features
	return marshalNoEscape(out)
}

// UnmarshalJSON decodes a feature. Property numbers are kept as json.Number
// so they re-encode exactly as they were read.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return eris.Wrap(err, "division: decode feature")
	}

	props := make(map[string]any)
	if raw, ok := members["properties"]; ok && !isNull(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&props); err != nil {
			return eris.Wrap(err, "division: decode feature properties")
		}
	}
	delete(members, "properties")

	f.Properties = props
	f.members = members
	return nil
}

// MarshalJSON encodes the feature with its original members.
func (f *Feature) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.members)+1)
	for k, v := range f.members {
		out[k] = v
	}
	out["properties"] = f.Properties
	return marshalNoEscape(out)
}

// DivisionCode returns the feature's DIVISION_NUM property.
func (f *Feature) DivisionCode() (Code, error) {
	v, ok := f.Properties[PropDivisionNum].(string)
	if !ok {
		return "", ErrNoDivisionNum
	}
	return Code(v), nil
}

// Geometry decodes the feature geometry. A null or absent geometry yields nil.
func (f *Feature) Geometry() (geom.T, error) {
	raw, ok := f.members["geometry"]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "division: decode geometry")
	}
	return g, nil
}

// Extent returns the bounding box of every feature geometry in the
// collection. Null features and null geometries are skipped.
func (fc *FeatureCollection) Extent() (*geom.Bounds, error) {
	bounds := geom.NewBounds(geom.XY)
	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		g, err := f.Geometry()
		if err != nil {
			return nil, eris.Wrapf(err, "division: feature %d", i)
		}
		if g == nil {
			continue
		}
		bounds.Extend(g)
	}
	return bounds, nil
}

// Load downloads and decodes the boundary feature collection at url.
func Load(ctx context.Context, f fetcher.Fetcher, url string) (*FeatureCollection, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "division: download boundaries")
	}
	defer body.Close() //nolint:errcheck

	fc, err := fetcher.DecodeJSONObject[FeatureCollection](body)
	if err != nil {
		return nil, eris.Wrap(err, "division: decode boundaries")
	}
	return fc, nil
}

// Write serializes fc as JSON to path, truncating any existing file.
func Write(path string, fc *FeatureCollection) error {
	data, err := marshalNoEscape(fc)
	if err != nil {
		return eris.Wrap(err, "division: encode boundaries")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "division: write %s", path)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
