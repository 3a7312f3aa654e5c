package artifacts

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"shiftplanner.ebus.dev/internal/models"
)

var profileHeader = []string{"point_number", "latitude", "longitude", "altitude", "cumulative_distance"}

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

var ErrCorruptProfile = errors.New("corrupt profile artifact")

// EncodeProfile writes the profile as CSV records and compresses them with zstd.
// Floats use the shortest representation that parses back to the same value.
func EncodeProfile(p models.ElevationProfile) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(profileHeader); err != nil {
		return nil, err
	}
	for _, pt := range p.Points {
		rec := []string{
			strconv.Itoa(pt.PointNumber),
			formatFloat(pt.Latitude),
			formatFloat(pt.Longitude),
			formatFloat(pt.Altitude),
			formatFloat(pt.CumulativeDistance),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("writing profile csv: %w", err)
	}
	return encoder.EncodeAll(buf.Bytes(), nil), nil
}

// DecodeProfile reverses EncodeProfile.
func DecodeProfile(shapeID string, data []byte) (models.ElevationProfile, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return models.ElevationProfile{}, fmt.Errorf("%w: %v", ErrCorruptProfile, err)
	}

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = len(profileHeader)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return models.ElevationProfile{}, fmt.Errorf("%w: reading header: %v", ErrCorruptProfile, err)
	}
	for i, name := range profileHeader {
		if header[i] != name {
			return models.ElevationProfile{}, fmt.Errorf("%w: unexpected column %q", ErrCorruptProfile, header[i])
		}
	}

	profile := models.ElevationProfile{ShapeID: shapeID}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.ElevationProfile{}, fmt.Errorf("%w: %v", ErrCorruptProfile, err)
		}
		pt, err := parsePoint(rec)
		if err != nil {
			return models.ElevationProfile{}, fmt.Errorf("%w: line %d: %v", ErrCorruptProfile, len(profile.Points)+2, err)
		}
		profile.Points = append(profile.Points, pt)
	}
	return profile, nil
}

func parsePoint(rec []string) (models.ProfilePoint, error) {
	var (
		pt  models.ProfilePoint
		err error
	)
	if pt.PointNumber, err = strconv.Atoi(rec[0]); err != nil {
		return pt, err
	}
	floats := []*float64{&pt.Latitude, &pt.Longitude, &pt.Altitude, &pt.CumulativeDistance}
	for i, dst := range floats {
		if *dst, err = strconv.ParseFloat(rec[i+1], 64); err != nil {
			return pt, err
		}
	}
	return pt, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
