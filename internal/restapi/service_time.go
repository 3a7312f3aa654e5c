package restapi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"shiftplanner.ebus.dev/internal/clock"
)

// serviceTime is seconds since service midnight. In JSON it is either a
// number or an "HH:MM:SS" string; hours past 24 are allowed.
type serviceTime int64

func (t *serviceTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		secs, err := clock.ParseServiceTime(s)
		if err != nil {
			return err
		}
		*t = serviceTime(secs)
		return nil
	}
	var secs int64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("service time must be seconds or HH:MM:SS: %w", err)
	}
	*t = serviceTime(secs)
	return nil
}
